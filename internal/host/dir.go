// Package host reads Paratext-style project directories: Settings.xml,
// BookNames.xml and one USFM file per book. It supplies the settings,
// book names and verse text the check runner asks a host for.
package host

import (
	"bytes"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/darren8c/biblica-paratext-translator-plugin/core/canon"
	"github.com/darren8c/biblica-paratext-translator-plugin/core/checks"
	"github.com/darren8c/biblica-paratext-translator-plugin/core/errors"
	"github.com/darren8c/biblica-paratext-translator-plugin/core/xml"
	"github.com/darren8c/biblica-paratext-translator-plugin/internal/validation"
)

// File names inside a project directory.
const (
	SettingsFile  = "Settings.xml"
	BookNamesFile = "BookNames.xml"
)

var usfmExts = map[string]bool{".sfm": true, ".usfm": true}

// Dir is one project directory, read once when opened.
type Dir struct {
	root     string
	name     string
	settings map[string]string
	books    map[int]*book
}

// Open reads the project at root. A missing or malformed Settings.xml
// leaves the project with no settings; a USFM file without a usable \id is
// skipped. Both are logged.
func Open(root string, log *slog.Logger) (*Dir, error) {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	info, err := os.Stat(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errors.NewNotFound("project", root)
		}
		return nil, errors.NewIO("stat", root, err)
	}
	if !info.IsDir() {
		return nil, errors.NewValidation("project_dir", root+" is not a directory")
	}

	d := &Dir{root: root, name: filepath.Base(root), books: make(map[int]*book)}
	d.settings = readSettings(filepath.Join(root, SettingsFile), log)
	if name := d.settings["Name"]; name != "" {
		d.name = name
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, errors.NewIO("list", root, err)
	}
	for _, e := range entries {
		if e.IsDir() || !usfmExts[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		path := filepath.Join(root, e.Name())
		b, err := readBook(path)
		if err != nil {
			log.Warn("skipping USFM file", "path", path, "error", err)
			continue
		}
		num := canon.NumFromCode(b.code)
		if num == 0 {
			log.Warn("skipping USFM file with unknown book code", "path", path, "code", b.code)
			continue
		}
		if _, dup := d.books[num]; dup {
			log.Warn("duplicate book file, keeping the first", "path", path, "code", b.code)
			continue
		}
		d.books[num] = b
	}
	log.Debug("project opened", "project", d.name, "books", len(d.books), "settings", len(d.settings))
	return d, nil
}

func readSettings(path string, log *slog.Logger) map[string]string {
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Warn("cannot read project settings", "path", path, "error", err)
		}
		return map[string]string{}
	}
	doc, err := xml.Parse(data)
	if err != nil {
		log.Warn("malformed project settings", "path", path, "error", err)
		return map[string]string{}
	}
	return doc.ChildValues()
}

func readBook(path string) (*book, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NewIO("open", path, err)
	}
	defer f.Close()
	return parseUSFM(f, path)
}

// Name is the project's short name: the Name setting, else the directory
// name.
func (d *Dir) Name() string { return d.name }

// Root is the project directory.
func (d *Dir) Root() string { return d.root }

// Setting returns a Settings.xml value. The project argument is ignored; a
// Dir holds a single project.
func (d *Dir) Setting(_, key string) (string, bool) {
	v, ok := d.settings[key]
	return v, ok
}

// BookNames opens BookNames.xml.
func (d *Dir) BookNames(string) (io.ReadCloser, error) {
	data, err := os.ReadFile(filepath.Join(d.root, BookNamesFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errors.NewNotFound("book names", d.name)
		}
		return nil, errors.NewIO("read", filepath.Join(d.root, BookNamesFile), err)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Books returns the numbers of the books that have a USFM file, ascending.
func (d *Dir) Books() []int {
	nums := make([]int, 0, len(d.books))
	for n := range d.books {
		nums = append(nums, n)
	}
	sort.Ints(nums)
	return nums
}

// LastChapter is the highest \c in a book, or 0 when the book has no file.
func (d *Dir) LastChapter(num int) int {
	if b, ok := d.books[num]; ok {
		return b.lastChapter
	}
	return 0
}

// LastVerse is the highest \v in a chapter.
func (d *Dir) LastVerse(num, chapter int) int {
	if b, ok := d.books[num]; ok {
		return b.lastVerse[chapter]
	}
	return 0
}

// VerseText returns a verse's text, or "" for a verse the file skips.
func (d *Dir) VerseText(loc checks.VerseLocation) (string, error) {
	b, ok := d.books[loc.Book]
	if !ok {
		return "", errors.NewNotFound("book", canon.CodeFromNum(loc.Book))
	}
	return b.verses[chapterVerse{loc.Chapter, loc.Verse}], nil
}

// Root serves every project directory under one parent directory, opening
// each on first use.
type Root struct {
	dir string
	log *slog.Logger

	mu   sync.Mutex
	open map[string]*Dir
}

// NewRoot serves the projects under dir.
func NewRoot(dir string, log *slog.Logger) *Root {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Root{dir: dir, log: log, open: make(map[string]*Dir)}
}

// Dir returns the parent directory.
func (r *Root) Dir() string { return r.dir }

// Project opens the project directory called name.
func (r *Root) Project(name string) (*Dir, error) {
	if err := validation.ValidateName(name); err != nil {
		return nil, errors.NewValidation("project", err.Error())
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.open[name]; ok {
		return d, nil
	}
	d, err := Open(filepath.Join(r.dir, name), r.log.With("project", name))
	if err != nil {
		return nil, err
	}
	r.open[name] = d
	return d, nil
}

// Reload forgets a project so the next use reads it from disk again.
func (r *Root) Reload(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.open, name)
}

// Projects lists the project directories, sorted.
func (r *Root) Projects() ([]string, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, errors.NewIO("list", r.dir, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// Setting reads a setting of the named project. Unopenable projects have
// no settings.
func (r *Root) Setting(project, key string) (string, bool) {
	d, err := r.Project(project)
	if err != nil {
		return "", false
	}
	return d.Setting(project, key)
}

// BookNames opens the named project's BookNames.xml.
func (r *Root) BookNames(project string) (io.ReadCloser, error) {
	d, err := r.Project(project)
	if err != nil {
		return nil, err
	}
	return d.BookNames(project)
}
