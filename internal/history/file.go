package history

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// fileStore keeps one JSON document per item in a directory.
type fileStore struct {
	dir string
}

// NewFileStore creates the directory if needed and returns a file-backed
// store.
func NewFileStore(dir string) (Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("history dir: %w", err)
	}
	return &fileStore{dir: dir}, nil
}

func (s *fileStore) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

func (s *fileStore) Add(_ context.Context, item Item) (string, error) {
	id, err := newID()
	if err != nil {
		return "", err
	}
	item.ID = id
	data, err := json.Marshal(item)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(s.path(id), data, 0o644); err != nil {
		return "", err
	}
	return id, nil
}

func (s *fileStore) Get(_ context.Context, id string) (Item, error) {
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return Item{}, ErrNotFound
		}
		return Item{}, err
	}
	var item Item
	if err := json.Unmarshal(data, &item); err != nil {
		return Item{}, err
	}
	item.ID = id
	return item, nil
}

func (s *fileStore) List(ctx context.Context) ([]Item, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	var items []Item
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		id := strings.TrimSuffix(e.Name(), ".json")
		item, err := s.Get(ctx, id)
		if err != nil {
			continue // skip unreadable entries
		}
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ReceivedAt.Before(items[j].ReceivedAt) })
	return items, nil
}

func (s *fileStore) Delete(_ context.Context, id string) error {
	err := os.Remove(s.path(id))
	if os.IsNotExist(err) {
		return ErrNotFound
	}
	return err
}

func (s *fileStore) Clear(ctx context.Context) error {
	items, err := s.List(ctx)
	if err != nil {
		return err
	}
	for _, item := range items {
		if err := s.Delete(ctx, item.ID); err != nil && err != ErrNotFound {
			return err
		}
	}
	return nil
}
