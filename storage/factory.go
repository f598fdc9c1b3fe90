package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/kbukum/meetingflow/logger"
)

// Factory creates a BlobStore from config.
type Factory func(ctx context.Context, cfg Config, log *logger.Logger) (BlobStore, error)

var (
	factoriesMu sync.RWMutex
	factories   = make(map[string]Factory)
)

// RegisterFactory registers a backend. Implementation packages call this
// from init, so import them for side effects:
//
//	import _ "github.com/kbukum/meetingflow/storage/s3"
func RegisterFactory(name string, f Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[name] = f
}

// New creates the BlobStore selected by cfg.Provider.
func New(ctx context.Context, cfg Config, log *logger.Logger) (BlobStore, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	factoriesMu.RLock()
	f, ok := factories[cfg.Provider]
	factoriesMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("storage: unsupported provider %q (not registered)", cfg.Provider)
	}

	l := log.WithComponent("storage")
	l.Info("initializing storage", logger.Fields("provider", cfg.Provider))
	return f(ctx, cfg, l)
}
