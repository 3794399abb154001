package server

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	comms "github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"

	"github.com/morezero/valuestore/pkg/cache"
	"github.com/morezero/valuestore/pkg/catalog"
	"github.com/morezero/valuestore/pkg/db"
	"github.com/morezero/valuestore/pkg/documents"
	"github.com/morezero/valuestore/pkg/events"
	"github.com/morezero/valuestore/pkg/library"
	"github.com/morezero/valuestore/pkg/router"
)

const (
	e2eTestPrefix = "server:e2e_test"
	e2eSubject    = "svc.valuestore.e2e"
)

// mapStore is the smallest documents.Store that keeps revisions.
type mapStore struct {
	mu   sync.Mutex
	docs map[string]db.Document
}

func (m *mapStore) Get(_ context.Context, collection, key string) (*db.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[collection+"/"+key]
	if !ok {
		return nil, nil
	}
	return &d, nil
}

func (m *mapStore) Put(_ context.Context, p db.PutDocumentParams) (*db.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := p.Collection + "/" + p.Key
	d := db.Document{
		Collection:   p.Collection,
		Key:          p.Key,
		DeclaredType: p.DeclaredType,
		RuntimeType:  p.RuntimeType,
		Body:         p.Body,
		ETag:         p.ETag,
		Revision:     m.docs[k].Revision + 1,
		Modified:     time.Now().UTC(),
		ModifiedBy:   p.UserID,
	}
	m.docs[k] = d
	return &d, nil
}

func (m *mapStore) Delete(_ context.Context, collection, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.docs[collection+"/"+key]
	delete(m.docs, collection+"/"+key)
	return ok, nil
}

func (m *mapStore) List(context.Context, db.ListDocumentsParams) ([]db.Document, int, error) {
	return nil, 0, nil
}

func (m *mapStore) Ping(context.Context) error { return nil }

type e2eEnv struct {
	nc        *comms.Conn
	publisher *events.RecordingPublisher
}

func setupE2E(t *testing.T) *e2eEnv {
	t.Helper()
	srv := runCommsServer(t)
	nc, err := comms.Connect(srv.ClientURL(), comms.Timeout(5*time.Second))
	if err != nil {
		t.Fatalf("%s - failed to connect: %v", e2eTestPrefix, err)
	}
	t.Cleanup(nc.Close)

	mr := miniredis.RunT(t)
	rc, err := cache.NewRedisCache(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	if err != nil {
		t.Fatalf("%s - cache: %v", e2eTestPrefix, err)
	}

	lib := library.New()
	m, err := catalog.ParseManifest([]byte(`
name: shapes
version: 1.0.0
types:
  com.example.Shape:
    kind: interface
  com.example.Circle:
    supertypes: [com.example.Shape]
aliases:
  com.example.Round: com.example.Circle
`))
	if err != nil {
		t.Fatalf("%s - manifest: %v", e2eTestPrefix, err)
	}
	if err := lib.ApplyManifest(m); err != nil {
		t.Fatalf("%s - apply manifest: %v", e2eTestPrefix, err)
	}

	env := &e2eEnv{nc: nc, publisher: &events.RecordingPublisher{}}
	svc := documents.NewService(documents.NewServiceParams{
		Store:     &mapStore{docs: make(map[string]db.Document)},
		Cache:     rc,
		Publisher: env.publisher,
		Library:   lib,
		Config:    documents.DefaultConfig(),
	})
	s := testServer(t, svc)
	s.nc = nc
	sub, err := s.subscribe(context.Background(), e2eSubject, router.NewRouter(svc))
	if err != nil {
		t.Fatalf("%s - subscribe: %v", e2eTestPrefix, err)
	}
	t.Cleanup(func() { sub.Unsubscribe() })
	return env
}

type e2eResponse struct {
	ID     string              `json:"id"`
	Ok     bool                `json:"ok"`
	Result json.RawMessage     `json:"result"`
	Error  *router.ErrorDetail `json:"error"`
}

func (e *e2eEnv) call(t *testing.T, id, method string, params any) e2eResponse {
	t.Helper()
	raw, err := json.Marshal(params)
	if err != nil {
		t.Fatalf("%s - marshal params: %v", e2eTestPrefix, err)
	}
	data, err := json.Marshal(router.Request{ID: id, Type: "invoke", Method: method, Params: raw, Ctx: &router.InvocationContext{UserID: "e2e"}})
	if err != nil {
		t.Fatalf("%s - marshal request: %v", e2eTestPrefix, err)
	}
	msg, err := e.nc.Request(e2eSubject, data, 5*time.Second)
	if err != nil {
		t.Fatalf("%s - request %s: %v", e2eTestPrefix, method, err)
	}
	var resp e2eResponse
	if err := json.Unmarshal(msg.Data, &resp); err != nil {
		t.Fatalf("%s - decode response: %v", e2eTestPrefix, err)
	}
	if resp.ID != id {
		t.Errorf("%s - response id = %q, want %q", e2eTestPrefix, resp.ID, id)
	}
	return resp
}

func TestE2E_PutGetDelete(t *testing.T) {
	env := setupE2E(t)

	resp := env.call(t, "p1", router.MethodPut, map[string]any{
		"collection": "shapes",
		"key":        "c1",
		"type":       "com.example.Shape",
		"body":       json.RawMessage(`{"@type":"Circle","@value":{"r":2}}`),
	})
	if !resp.Ok {
		t.Fatalf("%s - put failed: %+v", e2eTestPrefix, resp.Error)
	}
	var put documents.PutOutput
	if err := json.Unmarshal(resp.Result, &put); err != nil {
		t.Fatalf("%s - decode put: %v", e2eTestPrefix, err)
	}
	if string(put.Body) != `{"@type":"com.example.Circle","@value":{"r":2}}` {
		t.Errorf("%s - normalized body = %s", e2eTestPrefix, put.Body)
	}
	if put.RuntimeType != "com.example.Circle" || put.Revision != 1 || !put.Changed {
		t.Errorf("%s - put = %+v", e2eTestPrefix, put)
	}

	// first get fills the cache, second is served from it
	for i, wantCached := range []bool{false, true} {
		resp = env.call(t, fmt.Sprintf("g%d", i), router.MethodGet, map[string]string{"collection": "shapes", "key": "c1"})
		var got documents.GetOutput
		if err := json.Unmarshal(resp.Result, &got); err != nil {
			t.Fatalf("%s - decode get: %v", e2eTestPrefix, err)
		}
		if got.Cached != wantCached || got.Etag != put.Etag || string(got.Body) != string(put.Body) {
			t.Errorf("%s - get %d = %+v", e2eTestPrefix, i, got)
		}
	}

	resp = env.call(t, "d1", router.MethodDelete, map[string]string{"collection": "shapes", "key": "c1"})
	if !resp.Ok {
		t.Fatalf("%s - delete failed: %+v", e2eTestPrefix, resp.Error)
	}
	resp = env.call(t, "g3", router.MethodGet, map[string]string{"collection": "shapes", "key": "c1"})
	if resp.Ok || resp.Error.Code != documents.CodeNotFound {
		t.Errorf("%s - get after delete = %+v", e2eTestPrefix, resp.Error)
	}

	evs := env.publisher.Events()
	if len(evs) != 2 || evs[0].Operation != events.OperationPut || evs[1].Operation != events.OperationDelete {
		t.Fatalf("%s - events = %+v", e2eTestPrefix, evs)
	}
	if evs[0].UserID != "e2e" {
		t.Errorf("%s - event user = %q, want e2e", e2eTestPrefix, evs[0].UserID)
	}
}

func TestE2E_InvalidDocument(t *testing.T) {
	env := setupE2E(t)

	resp := env.call(t, "bad", router.MethodPut, map[string]any{
		"collection": "shapes",
		"key":        "u1",
		"type":       "com.example.Shape",
		"body":       json.RawMessage(`{"@type":"com.example.Unicorn","@value":{}}`),
	})
	if resp.Ok || resp.Error.Code != documents.CodeInvalidDocument || resp.Error.Retryable {
		t.Fatalf("%s - response = %+v", e2eTestPrefix, resp.Error)
	}
	if len(env.publisher.Events()) != 0 {
		t.Errorf("%s - a rejected put must not publish", e2eTestPrefix)
	}
}

func TestE2E_ResolveType(t *testing.T) {
	env := setupE2E(t)

	tests := []struct {
		name, within string
		resolved     bool
		want         string
	}{
		{"com.example.Round", "", true, "com.example.Circle"},
		{"Circle", "com.example.Shape", true, "com.example.Circle"},
		{"Circle", "", false, ""},
	}
	for i, tt := range tests {
		resp := env.call(t, fmt.Sprintf("r%d", i), router.MethodResolveType, map[string]string{"name": tt.name, "within": tt.within})
		var out documents.ResolveTypeOutput
		if err := json.Unmarshal(resp.Result, &out); err != nil {
			t.Fatalf("%s - decode: %v", e2eTestPrefix, err)
		}
		if out.Resolved != tt.resolved || out.Type != tt.want {
			t.Errorf("%s - resolve %q within %q = %+v", e2eTestPrefix, tt.name, tt.within, out)
		}
	}
}

func TestE2E_ConcurrentRequests(t *testing.T) {
	env := setupE2E(t)

	var wg sync.WaitGroup
	errs := make(chan string, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			params, _ := json.Marshal(map[string]any{
				"collection": "shapes",
				"key":        fmt.Sprintf("c%d", i),
				"type":       "com.example.Shape",
				"body":       json.RawMessage(fmt.Sprintf(`{"@type":"com.example.Circle","@value":{"r":%d}}`, i)),
			})
			data, _ := json.Marshal(router.Request{ID: fmt.Sprintf("c%d", i), Method: router.MethodPut, Params: params})
			msg, err := env.nc.Request(e2eSubject, data, 5*time.Second)
			if err != nil {
				errs <- err.Error()
				return
			}
			var resp router.Response
			if err := json.Unmarshal(msg.Data, &resp); err != nil || !resp.Ok {
				errs <- fmt.Sprintf("request %d: %s", i, msg.Data)
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for e := range errs {
		t.Errorf("%s - %s", e2eTestPrefix, e)
	}
	if n := len(env.publisher.Events()); n != 20 {
		t.Errorf("%s - published %d events, want 20", e2eTestPrefix, n)
	}
}
