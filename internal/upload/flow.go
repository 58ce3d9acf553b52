// Package upload implements the single-file selection step that feeds image
// analysis: size validation, type detection and a local preview.
package upload

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/medscan-console/internal/domain"
	"github.com/sirupsen/logrus"
)

// File is a candidate for upload
type File struct {
	Name string
	Size int64
	Open func() (io.ReadCloser, error)
}

// BytesFile wraps in-memory content as a File
func BytesFile(name string, data []byte) File {
	return File{
		Name: name,
		Size: int64(len(data)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

// Selection is an accepted file ready for analysis
type Selection struct {
	File    File
	MIME    string
	Kind    Kind
	Preview string // PNG data URL, empty for non-images
}

// State is a snapshot of the flow
type State struct {
	Selected *Selection
	Error    string
}

// Flow validates and previews one file at a time
type Flow struct {
	mu           sync.Mutex
	maxSizeMB    int
	previewMaxPx int
	onFileSelect func(Selection)
	logger       *logrus.Logger
	state        State
}

// NewFlow creates an upload flow; onFileSelect is invoked only for accepted files
func NewFlow(cfg domain.UploadConfig, onFileSelect func(Selection), logger *logrus.Logger) *Flow {
	if cfg.MaxSizeMB <= 0 {
		cfg.MaxSizeMB = 50
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Flow{
		maxSizeMB:    cfg.MaxSizeMB,
		previewMaxPx: cfg.PreviewMaxPx,
		onFileSelect: onFileSelect,
		logger:       logger,
	}
}

// SelectPath selects a file from the local filesystem
func (f *Flow) SelectPath(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return domain.NewValidationError("file", "Please select a file, not a directory")
	}
	return f.Select(File{
		Name: filepath.Base(path),
		Size: info.Size(),
		Open: func() (io.ReadCloser, error) { return os.Open(path) },
	})
}

// Select replaces the current selection. Any previous preview and error are
// discarded first; an oversized or empty file is rejected without reading it.
func (f *Flow) Select(file File) error {
	f.mu.Lock()
	f.state = State{}
	f.mu.Unlock()

	limit := int64(f.maxSizeMB) * 1024 * 1024
	if file.Size > limit {
		return f.reject(domain.NewValidationError("file", fmt.Sprintf("File size must be less than %dMB", f.maxSizeMB)))
	}
	if file.Size == 0 {
		return f.reject(domain.NewValidationError("file", "File is empty"))
	}

	sel, err := f.inspect(file)
	if err != nil {
		f.mu.Lock()
		f.state.Error = err.Error()
		f.mu.Unlock()
		return err
	}

	f.mu.Lock()
	f.state.Selected = sel
	f.mu.Unlock()

	f.logger.WithFields(logrus.Fields{
		"filename": file.Name,
		"size":     file.Size,
		"mime":     sel.MIME,
		"preview":  sel.Preview != "",
	}).Debug("File selected")

	if f.onFileSelect != nil {
		f.onFileSelect(*sel)
	}
	return nil
}

func (f *Flow) reject(verr *domain.ValidationError) error {
	f.mu.Lock()
	f.state.Error = verr.Message
	f.mu.Unlock()
	return verr
}

func (f *Flow) inspect(file File) (*Selection, error) {
	if file.Open == nil {
		return nil, fmt.Errorf("file %s has no content", file.Name)
	}

	rc, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", file.Name, err)
	}
	defer rc.Close()

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(rc, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, fmt.Errorf("failed to read %s: %w", file.Name, err)
	}
	head = head[:n]

	mime, kind := Detect(file.Name, head)
	sel := &Selection{File: file, MIME: mime, Kind: kind}

	if kind == KindImage {
		preview, err := thumbnail(io.MultiReader(bytes.NewReader(head), rc), f.previewMaxPx)
		if err != nil {
			// Formats the decoder does not know still upload, just without a preview
			f.logger.WithError(err).WithField("filename", file.Name).Debug("No preview available")
		} else {
			sel.Preview = preview
		}
	}
	return sel, nil
}

// Clear discards the selection, preview and error
func (f *Flow) Clear() {
	f.mu.Lock()
	f.state = State{}
	f.mu.Unlock()
}

// State returns a snapshot of the flow
func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.state
	if s.Selected != nil {
		sel := *s.Selected
		s.Selected = &sel
	}
	return s
}
