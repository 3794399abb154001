package documents

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/morezero/valuestore/pkg/db"
)

// memStore is an in-memory Store with the same revision rules as the
// Postgres repository.
type memStore struct {
	mu      sync.Mutex
	docs    map[string]db.Document
	puts    int
	pingErr error
}

func newMemStore() *memStore {
	return &memStore{docs: make(map[string]db.Document)}
}

func memKey(collection, key string) string { return collection + "\x00" + key }

func (m *memStore) Get(_ context.Context, collection, key string) (*db.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[memKey(collection, key)]
	if !ok {
		return nil, nil
	}
	return &d, nil
}

func (m *memStore) Put(_ context.Context, p db.PutDocumentParams) (*db.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := memKey(p.Collection, p.Key)
	existing, exists := m.docs[k]
	if p.ExpectedRevision != nil {
		want := *p.ExpectedRevision
		if (want == 0 && exists) || (want > 0 && (!exists || existing.Revision != want)) {
			return nil, fmt.Errorf("memstore: %w", db.ErrRevisionConflict)
		}
	}

	now := time.Now().UTC()
	user := p.UserID
	if user == "" {
		user = "system"
	}
	d := db.Document{
		Collection:   p.Collection,
		Key:          p.Key,
		DeclaredType: p.DeclaredType,
		RuntimeType:  p.RuntimeType,
		Body:         append([]byte(nil), p.Body...),
		ETag:         p.ETag,
		Revision:     1,
		Created:      now,
		CreatedBy:    user,
		Modified:     now,
		ModifiedBy:   user,
	}
	if exists {
		d.Revision = existing.Revision + 1
		d.Created = existing.Created
		d.CreatedBy = existing.CreatedBy
	}
	m.docs[k] = d
	m.puts++
	return &d, nil
}

func (m *memStore) Delete(_ context.Context, collection, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := memKey(collection, key)
	_, ok := m.docs[k]
	delete(m.docs, k)
	return ok, nil
}

func (m *memStore) List(_ context.Context, p db.ListDocumentsParams) ([]db.Document, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []db.Document
	for _, d := range m.docs {
		if d.Collection != p.Collection {
			continue
		}
		if p.DeclaredType != "" && d.DeclaredType != p.DeclaredType {
			continue
		}
		if !strings.HasPrefix(d.Key, p.Prefix) {
			continue
		}
		all = append(all, d)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Key < all[j].Key })

	start := (p.Page - 1) * p.Limit
	if start > len(all) {
		start = len(all)
	}
	end := start + p.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], len(all), nil
}

func (m *memStore) Ping(context.Context) error { return m.pingErr }

func (m *memStore) putCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.puts
}

// failingStore fails every call.
type failingStore struct{ memStore }

var errStoreDown = errors.New("store down")

func (f *failingStore) Get(context.Context, string, string) (*db.Document, error) {
	return nil, errStoreDown
}

func (f *failingStore) Put(context.Context, db.PutDocumentParams) (*db.Document, error) {
	return nil, errStoreDown
}
