package catalog

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// WorkbookLayout describes which columns of a catalog sheet hold which field.
// Columns are letters ("A", "B", ...).
type WorkbookLayout struct {
	SheetName      string
	CourseColumn   string
	TopicColumn    string
	SubTopicColumn string
	IDColumn       string
	NameColumn     string
	URLColumn      string
	StartRow       int // 1-based; rows above are headers
}

// DefaultWorkbookLayout returns the layout written by the catalog export:
// Course | Topic | SubTopic | Material ID | Material Name | URL, one header row.
func DefaultWorkbookLayout() WorkbookLayout {
	return WorkbookLayout{
		SheetName:      "Catalog",
		CourseColumn:   "A",
		TopicColumn:    "B",
		SubTopicColumn: "C",
		IDColumn:       "D",
		NameColumn:     "E",
		URLColumn:      "F",
		StartRow:       2,
	}
}

// LoadWorkbook reads the workbook at path. See ReadWorkbook.
func LoadWorkbook(path string, layout WorkbookLayout) ([]Entry, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()
	return readEntries(f, layout)
}

// ReadWorkbook reads one material per row and groups rows into catalog
// entries, one per (course, topic, subtopic) in first-seen order. Rows without
// a material id only declare their course, topic or subtopic.
func ReadWorkbook(r io.Reader, layout WorkbookLayout) ([]Entry, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()
	return readEntries(f, layout)
}

func readEntries(f *excelize.File, layout WorkbookLayout) ([]Entry, error) {
	sheet := layout.SheetName
	if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		sheet = f.GetSheetName(0)
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}

	cols := make(map[string]int)
	for field, letter := range map[string]string{
		"course":   layout.CourseColumn,
		"topic":    layout.TopicColumn,
		"subtopic": layout.SubTopicColumn,
		"id":       layout.IDColumn,
		"name":     layout.NameColumn,
		"url":      layout.URLColumn,
	} {
		n, err := excelize.ColumnNameToNumber(letter)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", field, err)
		}
		cols[field] = n - 1
	}

	var entries []Entry
	seen := make(map[subTopicKey]int)
	start := layout.StartRow - 1
	if start < 0 {
		start = 0
	}
	for i := start; i < len(rows); i++ {
		row := rows[i]
		cell := func(field string) string {
			c := cols[field]
			if c >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[c])
		}

		course := cell("course")
		if course == "" {
			continue
		}
		key := subTopicKey{course, cell("topic"), cell("subtopic")}
		if key.topic == "" {
			key.subTopic = ""
		}

		ei, ok := seen[key]
		if !ok {
			ei = len(entries)
			entries = append(entries, Entry{CourseName: key.course, Topic: key.topic, SubTopic: key.subTopic})
			seen[key] = ei
		}

		id := cell("id")
		if id == "" || key.subTopic == "" {
			continue
		}
		entries[ei].Materials = append(entries[ei].Materials, Material{
			ID:   id,
			Name: cell("name"),
			URL:  cell("url"),
		})
	}

	return entries, nil
}

// WriteWorkbook exports a catalog to w in the default layout.
func WriteWorkbook(w io.Writer, c *Catalog) error {
	layout := DefaultWorkbookLayout()
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), layout.SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	header := []any{"Course", "Topic", "SubTopic", "Material ID", "Material Name", "URL"}
	if err := f.SetSheetRow(layout.SheetName, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	row := layout.StartRow
	write := func(values []any) error {
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return err
		}
		row++
		return f.SetSheetRow(layout.SheetName, cell, &values)
	}

	for _, e := range c.Entries() {
		if len(e.Materials) == 0 {
			if err := write([]any{e.CourseName, e.Topic, e.SubTopic}); err != nil {
				return fmt.Errorf("write row %d: %w", row, err)
			}
			continue
		}
		for _, m := range e.Materials {
			if err := write([]any{e.CourseName, e.Topic, e.SubTopic, m.ID, m.Name, m.URL}); err != nil {
				return fmt.Errorf("write row %d: %w", row, err)
			}
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
