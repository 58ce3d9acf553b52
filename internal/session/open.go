package session

import (
	"context"
	"fmt"

	"github.com/medscan-console/internal/domain"
	"github.com/sirupsen/logrus"
)

// Open builds the configured storage backend, restores the persisted session
// and, for the file backend with watching enabled, keeps the store in sync
// with changes made by other processes until ctx is cancelled.
func Open(ctx context.Context, cfg domain.SessionConfig, logger *logrus.Logger) (*Store, error) {
	var (
		storage Storage
		file    *FileStorage
		err     error
	)

	switch cfg.Backend {
	case "memory":
		storage = NewMemoryStorage()
	case "file", "":
		file, err = NewFileStorage(cfg.Path)
		storage = file
	case "sqlite":
		storage, err = NewSQLiteStorage(cfg.Path, cfg.Key)
	case "redis":
		storage, err = NewRedisStorage(ctx, cfg.RedisURL, cfg.Key)
	default:
		return nil, fmt.Errorf("unknown session backend: %s", cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s session storage: %w", cfg.Backend, err)
	}

	store := NewStore(storage, logger)
	logger = store.logger
	if err := store.Restore(ctx); err != nil {
		storage.Close()
		return nil, err
	}

	if file != nil && cfg.Watch {
		if err := file.Watch(ctx, store.logger, store.Sync); err != nil {
			logger.WithError(err).Warn("Session file watching disabled")
		}
	}

	logger.WithFields(logrus.Fields{
		"backend":       cfg.Backend,
		"authenticated": store.IsAuthenticated(),
	}).Debug("Session store opened")
	return store, nil
}
