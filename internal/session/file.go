package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"pmsync/internal/models"
)

// FileBackend keeps sessions in a JSON object on disk, keyed like local
// storage.
type FileBackend struct {
	path string
	mu   sync.Mutex
}

func NewFileBackend(path string) *FileBackend {
	return &FileBackend{path: path}
}

func (b *FileBackend) read() (map[string]json.RawMessage, error) {
	data, err := os.ReadFile(b.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]json.RawMessage{}, nil
	}
	if err != nil {
		return nil, err
	}
	entries := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode %s: %w", b.path, err)
	}
	return entries, nil
}

func (b *FileBackend) write(entries map[string]json.RawMessage) error {
	if dir := filepath.Dir(b.path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return err
		}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(b.path, data, 0o600)
}

func (b *FileBackend) Save(_ context.Context, key string, user models.User) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	entries, err := b.read()
	if err != nil {
		// A corrupt file is replaced.
		entries = map[string]json.RawMessage{}
	}
	raw, err := json.Marshal(user)
	if err != nil {
		return err
	}
	entries[key] = raw
	return b.write(entries)
}

func (b *FileBackend) Load(_ context.Context, key string) (models.User, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	entries, err := b.read()
	if err != nil {
		return models.User{}, err
	}
	raw, ok := entries[key]
	if !ok {
		return models.User{}, ErrNoSession
	}
	var user models.User
	if err := json.Unmarshal(raw, &user); err != nil {
		return models.User{}, fmt.Errorf("decode session %q: %w", key, err)
	}
	return user, nil
}

func (b *FileBackend) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	entries, err := b.read()
	if err != nil {
		return os.Remove(b.path)
	}
	if _, ok := entries[key]; !ok {
		return nil
	}
	delete(entries, key)
	return b.write(entries)
}
