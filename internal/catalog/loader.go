package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Source supplies the flat catalog records visible to a learner.
type Source interface {
	FetchCatalog(ctx context.Context, learnerID string) ([]Entry, error)
}

// Reloader is a Source that can re-read its backing files.
type Reloader interface {
	Reload() error
}

// courseDoc is the on-disk YAML layout of one course.
type courseDoc struct {
	Course string `yaml:"course"`
	Topics []struct {
		Name      string `yaml:"name"`
		SubTopics []struct {
			Name      string     `yaml:"name"`
			Materials []Material `yaml:"materials"`
		} `yaml:"subtopics"`
	} `yaml:"topics"`
}

// Loader loads and caches catalog records from a directory of YAML course
// documents and XLSX workbooks. Files are read in lexical path order, which
// fixes course order.
type Loader struct {
	rootDir string
	entries []Entry
	mu      sync.RWMutex
}

// NewLoader creates a new catalog loader and loads all content.
func NewLoader(rootDir string) (*Loader, error) {
	l := &Loader{rootDir: rootDir}

	if err := l.Reload(); err != nil {
		return nil, err
	}
	return l, nil
}

// FetchCatalog returns the loaded records. Every learner sees the same catalog.
func (l *Loader) FetchCatalog(_ context.Context, _ string) ([]Entry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Entry{}, l.entries...), nil
}

// Reload re-reads the catalog directory.
func (l *Loader) Reload() error {
	var entries []Entry
	err := filepath.Walk(l.rootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}

		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			loaded, err := loadCourseYAML(path)
			if err != nil {
				return err
			}
			entries = append(entries, loaded...)
		case ".xlsx":
			loaded, err := LoadWorkbook(path, DefaultWorkbookLayout())
			if err != nil {
				slog.Warn("skipping unreadable catalog workbook", "path", path, "error", err)
				return nil
			}
			entries = append(entries, loaded...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("loading catalog: %w", err)
	}

	l.mu.Lock()
	l.entries = entries
	l.mu.Unlock()

	slog.Info("catalog loaded", "dir", l.rootDir, "entries", len(entries))
	return nil
}

func loadCourseYAML(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var doc courseDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		slog.Warn("skipping invalid catalog YAML", "path", path, "error", err)
		return nil, nil
	}
	if doc.Course == "" {
		return nil, nil // Not a course document
	}

	entries := []Entry{{CourseName: doc.Course}}
	for _, t := range doc.Topics {
		entries = append(entries, Entry{CourseName: doc.Course, Topic: t.Name})
		for _, s := range t.SubTopics {
			entries = append(entries, Entry{
				CourseName: doc.Course,
				Topic:      t.Name,
				SubTopic:   s.Name,
				Materials:  s.Materials,
			})
		}
	}
	return entries, nil
}
