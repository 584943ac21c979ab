package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jmylchreest/coursesched/internal/logger"
)

// Corpus is a directory of per-course JSON files named
// "{course_code} - {course_name}.json".
type Corpus struct {
	dir string
}

// Entry pairs a corpus file name with its decoded course.
type Entry struct {
	File   string
	Course *Course
}

// LoadOptions narrows which corpus files Load reads.
type LoadOptions struct {
	// Limit keeps only the first Limit files in name order. Zero means all.
	Limit int
	// CodePrefix keeps only files whose name starts with it.
	CodePrefix string
}

// NewCorpus returns a corpus rooted at dir.
func NewCorpus(dir string) *Corpus {
	return &Corpus{dir: dir}
}

// Dir returns the corpus directory.
func (c *Corpus) Dir() string {
	return c.dir
}

// FileName returns the corpus file name for a course. Path separators in the
// code or name are replaced so the file always lands in the corpus directory.
func FileName(c *Course) string {
	r := strings.NewReplacer("/", "-", "\\", "-")
	return r.Replace(c.Code) + " - " + r.Replace(c.Name) + ".json"
}

// Files lists the JSON files in the corpus, sorted by name.
func (c *Corpus) Files() ([]string, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return nil, fmt.Errorf("read corpus directory: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Read decodes one corpus file.
func (c *Corpus) Read(name string) (*Course, error) {
	data, err := os.ReadFile(filepath.Join(c.dir, name)) //#nosec G304 -- names come from Files
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	var course Course
	if err := json.Unmarshal(data, &course); err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	return &course, nil
}

// Load reads the corpus files selected by opts. Files that cannot be read or
// decoded are logged and skipped.
func (c *Corpus) Load(opts LoadOptions) ([]Entry, error) {
	names, err := c.Files()
	if err != nil {
		return nil, err
	}
	if opts.CodePrefix != "" {
		filtered := names[:0]
		for _, n := range names {
			if strings.HasPrefix(n, opts.CodePrefix) {
				filtered = append(filtered, n)
			}
		}
		names = filtered
	}
	if opts.Limit > 0 && len(names) > opts.Limit {
		names = names[:opts.Limit]
	}

	entries := make([]Entry, 0, len(names))
	for _, name := range names {
		course, err := c.Read(name)
		if err != nil {
			logger.Error("skipping corpus file", "file", name, "error", err)
			continue
		}
		entries = append(entries, Entry{File: name, Course: course})
	}
	logger.Debug("corpus loaded", "dir", c.dir, "files", len(names), "courses", len(entries))
	return entries, nil
}

// Write stores a course under its canonical file name and returns that name.
func (c *Corpus) Write(course *Course) (string, error) {
	if strings.TrimSpace(course.Code) == "" {
		return "", errors.New("course has no code")
	}
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return "", fmt.Errorf("create corpus directory: %w", err)
	}
	data, err := json.MarshalIndent(course, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", course.Code, err)
	}
	name := FileName(course)
	if err := os.WriteFile(filepath.Join(c.dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	return name, nil
}

// Rewrite stores course under its canonical name and removes the file it was
// read from when that name differs.
func (c *Corpus) Rewrite(file string, course *Course) (string, error) {
	name, err := c.Write(course)
	if err != nil {
		return "", err
	}
	if file == "" || file == name {
		return name, nil
	}
	if err := os.Remove(filepath.Join(c.dir, filepath.Base(file))); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return name, fmt.Errorf("remove %s: %w", file, err)
	}
	logger.Debug("renamed corpus file", "from", file, "to", name)
	return name, nil
}

// IsJunkFile reports whether a corpus file name belongs to a record with no
// course code or to a program listing.
func IsJunkFile(name string) bool {
	return strings.HasPrefix(name, " -") || strings.Contains(strings.ToLower(name), "program")
}

// Clean removes junk files from the corpus and returns their names. With
// dryRun set nothing is removed.
func (c *Corpus) Clean(dryRun bool) ([]string, error) {
	names, err := c.Files()
	if err != nil {
		return nil, err
	}
	var removed []string
	for _, name := range names {
		if !IsJunkFile(name) {
			continue
		}
		if !dryRun {
			if err := os.Remove(filepath.Join(c.dir, name)); err != nil {
				return removed, fmt.Errorf("remove %s: %w", name, err)
			}
		}
		logger.Info("removed corpus file", "file", name, "dry_run", dryRun)
		removed = append(removed, name)
	}
	return removed, nil
}
