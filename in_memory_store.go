package pathtree

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

type inMemoryStore struct {
	entries map[string][]byte
	l       sync.Mutex
}

// NewInMemoryStore provides a Persist that keeps serialized records in a map, usually for testing.
func NewInMemoryStore() Persist {
	return &inMemoryStore{}
}

func (ims *inMemoryStore) Store(ctx context.Context, key string, value []byte) error {
	ims.l.Lock()
	if ims.entries == nil {
		ims.entries = map[string][]byte{key: value}
	} else {
		ims.entries[key] = value
	}
	ims.l.Unlock()
	return nil
}

func (ims *inMemoryStore) Load(ctx context.Context, key string) ([]byte, error) {
	ims.l.Lock()
	value, ok := ims.entries[key]
	ims.l.Unlock()
	if !ok {
		return nil, fmt.Errorf("inMemoryStore entry %s: %w", key, ErrNotFound)
	}
	return value, nil
}

func (ims *inMemoryStore) Delete(ctx context.Context, key string) error {
	ims.l.Lock()
	delete(ims.entries, key)
	ims.l.Unlock()
	return nil
}

func (ims *inMemoryStore) List(ctx context.Context, f func(key string) error) error {
	ims.l.Lock()
	keys := make([]string, 0, len(ims.entries))
	for k := range ims.entries {
		keys = append(keys, k)
	}
	ims.l.Unlock()
	sort.Strings(keys)
	for _, k := range keys {
		if err := f(k); err != nil {
			return err
		}
	}
	return nil
}
