package catalog_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/p-n-ai/pai-learn/internal/catalog"
)

func TestLoader_LoadsCourseYAML(t *testing.T) {
	dir := setupTestCatalog(t)

	loader, err := catalog.NewLoader(dir)
	if err != nil {
		t.Fatalf("NewLoader() error = %v", err)
	}

	entries, err := loader.FetchCatalog(context.Background(), "intern-1")
	if err != nil {
		t.Fatalf("FetchCatalog() error = %v", err)
	}

	c := catalog.Normalize(entries)
	if len(c.Courses) != 2 {
		t.Fatalf("courses = %d, want 2", len(c.Courses))
	}
	// Lexical file order: 01-go.yaml before 02-sql.yaml.
	if c.Courses[0].Name != "Go Basics" || c.Courses[1].Name != "SQL" {
		t.Errorf("course order = [%s %s], want [Go Basics SQL]", c.Courses[0].Name, c.Courses[1].Name)
	}

	m, ok := c.Material("Go Basics", "Syntax", "Variables", 1)
	if !ok {
		t.Fatal("Material(Go Basics/Syntax/Variables/1) not found")
	}
	if m.ID != "go-2" || m.URL != "/uploads/go-2.pdf" {
		t.Errorf("material = %+v, want go-2 at /uploads/go-2.pdf", m)
	}

	if _, _, ok := c.Topic("SQL", "Joins"); !ok {
		t.Error("empty topic SQL/Joins should be present")
	}
}

func TestLoader_SkipsNonCourseYAML(t *testing.T) {
	dir := setupTestCatalog(t)
	os.WriteFile(filepath.Join(dir, "settings.yaml"), []byte("theme: dark\n"), 0o644)
	os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("course: [unterminated\n"), 0o644)

	loader, err := catalog.NewLoader(dir)
	if err != nil {
		t.Fatalf("NewLoader() error = %v", err)
	}

	entries, _ := loader.FetchCatalog(context.Background(), "")
	if got := len(catalog.Normalize(entries).Courses); got != 2 {
		t.Errorf("courses = %d, want 2 (non-course YAML skipped)", got)
	}
}

func TestLoader_EmptyDir(t *testing.T) {
	loader, err := catalog.NewLoader(t.TempDir())
	if err != nil {
		t.Fatalf("NewLoader() error = %v", err)
	}

	entries, _ := loader.FetchCatalog(context.Background(), "")
	if len(entries) != 0 {
		t.Errorf("entries = %d, want 0 for empty dir", len(entries))
	}
}

func TestLoader_Reload(t *testing.T) {
	dir := t.TempDir()
	loader, err := catalog.NewLoader(dir)
	if err != nil {
		t.Fatalf("NewLoader() error = %v", err)
	}

	os.WriteFile(filepath.Join(dir, "course.yaml"), []byte("course: Late\n"), 0o644)
	if err := loader.Reload(); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}

	entries, _ := loader.FetchCatalog(context.Background(), "")
	if len(entries) != 1 || entries[0].CourseName != "Late" {
		t.Errorf("entries = %+v, want one entry for course Late", entries)
	}
}

func TestWorkbook_RoundTrip(t *testing.T) {
	want := catalog.Normalize(sampleEntries())

	var buf bytes.Buffer
	if err := catalog.WriteWorkbook(&buf, want); err != nil {
		t.Fatalf("WriteWorkbook() error = %v", err)
	}

	entries, err := catalog.ReadWorkbook(&buf, catalog.DefaultWorkbookLayout())
	if err != nil {
		t.Fatalf("ReadWorkbook() error = %v", err)
	}

	got := catalog.Normalize(entries)
	if !reflect.DeepEqual(got.Courses, want.Courses) {
		t.Errorf("workbook catalog = %+v, want %+v", got.Courses, want.Courses)
	}
}

func TestLoader_ReadsWorkbooks(t *testing.T) {
	dir := t.TempDir()
	f, err := os.Create(filepath.Join(dir, "catalog.xlsx"))
	if err != nil {
		t.Fatal(err)
	}
	if err := catalog.WriteWorkbook(f, catalog.Normalize(sampleEntries())); err != nil {
		t.Fatalf("WriteWorkbook() error = %v", err)
	}
	f.Close()

	loader, err := catalog.NewLoader(dir)
	if err != nil {
		t.Fatalf("NewLoader() error = %v", err)
	}

	entries, _ := loader.FetchCatalog(context.Background(), "")
	if _, ok := catalog.Normalize(entries).Material("C1", "T1", "S2", 0); !ok {
		t.Error("workbook material C1/T1/S2/0 not loaded")
	}
}

func setupTestCatalog(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	coursesDir := filepath.Join(dir, "courses")
	os.MkdirAll(coursesDir, 0o755)

	os.WriteFile(filepath.Join(coursesDir, "01-go.yaml"), []byte(`
course: Go Basics
topics:
  - name: Syntax
    subtopics:
      - name: Variables
        materials:
          - id: go-1
            name: "Declaring variables"
            url: /uploads/go-1.pdf
          - id: go-2
            name: "Constants"
            url: /uploads/go-2.pdf
      - name: Loops
        materials:
          - id: go-3
            name: "for"
            url: /uploads/go-3.pdf
`), 0o644)

	os.WriteFile(filepath.Join(coursesDir, "02-sql.yaml"), []byte(`
course: SQL
topics:
  - name: Joins
`), 0o644)

	return dir
}
