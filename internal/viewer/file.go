package viewer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// File serves a local paged document: a single file or a directory whose
// supported files are read in name order.
type File struct {
	Static
	loaded string
}

// NewFile returns an unloaded file source. The document is read on Navigate.
func NewFile() *File {
	return &File{}
}

func (f *File) Navigate(ctx context.Context, location string) error {
	path, err := localPath(location)
	if err != nil {
		return err
	}
	if path != f.loaded {
		pages, err := LoadPages(path)
		if err != nil {
			return err
		}
		f.Static = Static{base: "file://" + filepath.ToSlash(path), pages: pages}
		f.loaded = path
	}
	return f.Static.Navigate(ctx, location)
}

func localPath(location string) (string, error) {
	loc := location
	if i := strings.LastIndex(loc, pageFragment); i >= 0 {
		loc = loc[:i]
	}
	loc = strings.TrimPrefix(loc, "file://")
	if loc == "" {
		return "", fmt.Errorf("empty file location %q", location)
	}
	return filepath.Abs(filepath.FromSlash(loc))
}

// LoadPages reads path into pages of paragraphs.
func LoadPages(path string) ([][]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if !info.IsDir() {
		l, err := ForFile(path)
		if err != nil {
			return nil, err
		}
		return loadNonEmpty(l, path)
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", path, err)
	}
	var pages [][]string
	for _, e := range entries {
		if e.IsDir() || !IsSupported(e.Name()) {
			continue
		}
		l, _ := ForFile(e.Name())
		p, err := l.Load(filepath.Join(path, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", e.Name(), err)
		}
		pages = append(pages, p...)
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("%s: no pages found", path)
	}
	return pages, nil
}

func loadNonEmpty(l Loader, path string) ([][]string, error) {
	pages, err := l.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", filepath.Base(path), err)
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("%s: no pages found", path)
	}
	return pages, nil
}
