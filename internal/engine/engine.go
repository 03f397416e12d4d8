// Package engine wires a config.Config to a concrete kv.Engine and MVCC
// instance and hands out sessions, grounded on the teacher's apply
// coordinator (internal/apply) which likewise sits between the CLI and
// the core subsystems it drives.
package engine

import (
	"kvsql/internal/config"
	"kvsql/internal/kv"
	"kvsql/internal/mvcc"
	"kvsql/internal/session"
)

// Engine owns the storage backend for one kvsql database instance.
type Engine struct {
	store kv.Engine
	mvcc  *mvcc.MVCC
}

// Open builds the kv.Engine named by cfg and wraps it in MVCC.
func Open(cfg *config.Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var store kv.Engine
	switch cfg.Storage.Backend {
	case "disk":
		d, err := kv.Open(cfg.Storage.Path, cfg.Storage.CompactOnOpen)
		if err != nil {
			return nil, err
		}
		store = d
	default:
		store = kv.NewMemoryKV()
	}
	return &Engine{store: store, mvcc: mvcc.New(store)}, nil
}

// NewSession returns a fresh, independent session over this engine.
func (e *Engine) NewSession() *session.Session {
	return session.New(e.mvcc)
}

// Close releases the underlying storage backend (the file lock and
// handle, for a disk-backed engine).
func (e *Engine) Close() error {
	return e.store.Close()
}
