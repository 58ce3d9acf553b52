package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/medscan-console/internal/domain"
	"github.com/sirupsen/logrus"
)

// FileStorage keeps the envelope in a JSON file readable only by the owner
type FileStorage struct {
	path    string
	watcher *fsnotify.Watcher
}

// NewFileStorage creates a file storage, creating the parent directory if needed
func NewFileStorage(path string) (*FileStorage, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}
	return &FileStorage{path: path}, nil
}

// Path returns the session file location
func (f *FileStorage) Path() string { return f.path }

// Load implements Storage
func (f *FileStorage) Load(ctx context.Context) (*domain.Session, error) {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	return decodeEnvelope(data)
}

// Save implements Storage. The file is replaced atomically.
func (f *FileStorage) Save(ctx context.Context, session domain.Session) error {
	data, err := encodeEnvelope(session)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".session-*")
	if err != nil {
		return fmt.Errorf("failed to create temp session file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to set session file mode: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write session file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close session file: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("failed to replace session file: %w", err)
	}
	return nil
}

// Delete implements Storage
func (f *FileStorage) Delete(ctx context.Context) error {
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove session file: %w", err)
	}
	return nil
}

// Watch reports changes made to the session file by other processes.
// onChange receives the freshly loaded session, or nil when it was removed.
// The watcher stops when ctx is cancelled or the storage is closed.
func (f *FileStorage) Watch(ctx context.Context, logger *logrus.Logger, onChange func(*domain.Session)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	// The file itself is replaced on every save, so watch its directory
	if err := w.Add(filepath.Dir(f.path)); err != nil {
		w.Close()
		return fmt.Errorf("failed to watch session directory: %w", err)
	}
	f.watcher = w

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(f.path) {
					continue
				}
				if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
					!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
					continue
				}
				sess, err := f.Load(ctx)
				if err != nil {
					logger.WithError(err).Warn("Ignoring unreadable session file change")
					continue
				}
				onChange(sess)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.WithError(err).Warn("Session file watcher error")
			}
		}
	}()

	return nil
}

// Close implements Storage
func (f *FileStorage) Close() error {
	if f.watcher != nil {
		return f.watcher.Close()
	}
	return nil
}
