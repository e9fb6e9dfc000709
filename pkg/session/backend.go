package session

import (
	"encoding/json"
	"fmt"
	"sync"

	"chainvote/pkg/config"
	"chainvote/pkg/security"
	"chainvote/pkg/utils"
)

// Backend persists the flat key/value session record
type Backend interface {
	Load() (map[string]string, error)
	Save(values map[string]string) error
}

// NewBackend builds the backend selected by cfg
func NewBackend(cfg config.SessionConfig) (Backend, error) {
	switch cfg.Backend {
	case BackendMemory:
		return NewMemoryBackend(), nil
	case BackendFile:
		var sealer *security.Sealer
		if cfg.Passphrase != "" {
			var err error
			if sealer, err = security.NewSealer(cfg.Passphrase); err != nil {
				return nil, fmt.Errorf("creating session sealer: %w", err)
			}
		}
		return NewFileBackend(cfg.Path, sealer), nil
	case BackendRedis:
		return NewRedisBackend(cfg.Redis)
	default:
		return nil, fmt.Errorf("unknown session backend %q", cfg.Backend)
	}
}

// Backend names accepted in configuration
const (
	BackendMemory = "memory"
	BackendFile   = "file"
)

// MemoryBackend keeps the session for the lifetime of the process
type MemoryBackend struct {
	mu     sync.Mutex
	values map[string]string
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{values: make(map[string]string)}
}

func (m *MemoryBackend) Load() (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyValues(m.values), nil
}

func (m *MemoryBackend) Save(values map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values = copyValues(values)
	return nil
}

// FileBackend stores the session as JSON on disk, optionally sealed
type FileBackend struct {
	path   string
	sealer *security.Sealer
	files  utils.FileHelper
}

// NewFileBackend creates a file backend. A nil sealer stores plain JSON.
func NewFileBackend(path string, sealer *security.Sealer) *FileBackend {
	return &FileBackend{path: path, sealer: sealer}
}

func (f *FileBackend) Load() (map[string]string, error) {
	raw, err := f.files.ReadFileIfExists(f.path)
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}
	if raw == nil {
		return make(map[string]string), nil
	}

	if f.sealer != nil {
		if raw, err = f.sealer.Open(raw); err != nil {
			return nil, fmt.Errorf("opening session: %w", err)
		}
	}

	values := make(map[string]string)
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, fmt.Errorf("decoding session: %w", err)
	}
	return values, nil
}

func (f *FileBackend) Save(values map[string]string) error {
	raw, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}

	if f.sealer != nil {
		if raw, err = f.sealer.Seal(raw); err != nil {
			return fmt.Errorf("sealing session: %w", err)
		}
	}

	if err := f.files.WriteFileSafely(f.path, raw, 0600); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	return nil
}

func copyValues(values map[string]string) map[string]string {
	out := make(map[string]string, len(values))
	for k, v := range values {
		out[k] = v
	}
	return out
}
