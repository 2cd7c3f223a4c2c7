package provider

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// fakeAPI is a route table test server that records every call.
type fakeAPI struct {
	t      *testing.T
	mu     sync.Mutex
	routes map[string]http.HandlerFunc
	calls  map[string]int
	server *httptest.Server
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()

	f := &fakeAPI{
		t:      t,
		routes: make(map[string]http.HandlerFunc),
		calls:  make(map[string]int),
	}
	f.server = httptest.NewServer(f)
	t.Cleanup(f.server.Close)

	return f
}

func (f *fakeAPI) handle(route string, handler http.HandlerFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routes[route] = handler
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	route := r.Method + " " + r.URL.Path

	f.mu.Lock()
	f.calls[route]++
	handler, ok := f.routes[route]
	f.mu.Unlock()

	if !ok {
		f.t.Errorf("unexpected request %s", route)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "unexpected route"})
		return
	}
	handler(w, r)
}

func (f *fakeAPI) callCount(route string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[route]
}

func (f *fakeAPI) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}

func (f *fakeAPI) URL() string { return f.server.URL }

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeBody(t *testing.T, r *http.Request, v any) {
	t.Helper()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		t.Errorf("failed to decode request body: %v", err)
	}
}
