package caldav

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"

	"upcal/internal/core"
	"upcal/internal/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()

	s, err := store.Open(filepath.Join(t.TempDir(), "upcal.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

type stubHTTPClient struct {
	status int
}

func (s *stubHTTPClient) Do(req *http.Request) (*http.Response, error) {
	return &http.Response{StatusCode: s.status, Body: http.NoBody}, nil
}

func TestStatusClientRecordsLastStatus(t *testing.T) {
	sc := &statusClient{inner: &stubHTTPClient{status: http.StatusNotFound}}

	req, _ := http.NewRequest(http.MethodGet, "http://dav.test/cal/ev.ics", nil)
	if _, err := sc.Do(req); err != nil {
		t.Fatalf("Do: %v", err)
	}
	if sc.last != http.StatusNotFound {
		t.Errorf("last = %d, want %d", sc.last, http.StatusNotFound)
	}
}

func TestErrorClassificationByLastStatus(t *testing.T) {
	reqErr := errors.New("HTTP 4xx from server")

	tests := []struct {
		name        string
		last        int
		err         error
		wantRefused bool
		wantMissing bool
	}{
		{"unauthorized", http.StatusUnauthorized, reqErr, true, false},
		{"forbidden", http.StatusForbidden, reqErr, true, false},
		{"not found", http.StatusNotFound, reqErr, false, true},
		{"gone", http.StatusGone, reqErr, false, true},
		{"server error", http.StatusInternalServerError, reqErr, false, false},
		{"success with nil error", http.StatusOK, nil, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &CalDAVAdapter{http: &statusClient{last: tt.last}}
			if got := a.isAuthRefused(tt.err); got != tt.wantRefused {
				t.Errorf("isAuthRefused = %v, want %v", got, tt.wantRefused)
			}
			if got := a.isNotFound(tt.err); got != tt.wantMissing {
				t.Errorf("isNotFound = %v, want %v", got, tt.wantMissing)
			}
		})
	}

	// Before any request was issued, nothing classifies
	a := &CalDAVAdapter{}
	if a.isAuthRefused(reqErr) || a.isNotFound(reqErr) {
		t.Error("classified an error with no recorded status")
	}
}

func TestRequestFullAccessRefusalSticks(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	s := openTestStore(t)
	adapter := NewCalDAVAdapter("caldav", "CalDAV", srv.URL, "user", "wrong-password", s)

	state, err := adapter.RequestFullAccess(context.Background())
	if err != nil {
		t.Fatalf("RequestFullAccess: %v", err)
	}
	if state != core.AuthDenied {
		t.Fatalf("RequestFullAccess = %v, want denied", state)
	}
	if got, _ := s.AuthState("caldav"); got != deniedState {
		t.Errorf("recorded state = %q, want %q", got, deniedState)
	}
	if got := adapter.AuthorizationStatus(context.Background()); got != core.AuthDenied {
		t.Errorf("AuthorizationStatus = %v, want denied", got)
	}

	// A denied adapter never contacts the server again
	before := hits.Load()
	if state, err := adapter.RequestFullAccess(context.Background()); err != nil || state != core.AuthDenied {
		t.Fatalf("repeat RequestFullAccess = %v, %v; want denied, nil", state, err)
	}
	if hits.Load() != before {
		t.Errorf("server hit %d more times while denied", hits.Load()-before)
	}
}

func TestRequestFullAccessTransientFailureStaysNotDetermined(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := openTestStore(t)
	adapter := NewCalDAVAdapter("caldav", "CalDAV", srv.URL, "user", "password", s)

	state, err := adapter.RequestFullAccess(context.Background())
	if err == nil {
		t.Fatal("RequestFullAccess succeeded against a broken server")
	}
	if state != core.AuthNotDetermined {
		t.Errorf("RequestFullAccess = %v, want not-determined", state)
	}
	if got, _ := s.AuthState("caldav"); got != "" {
		t.Errorf("recorded state = %q after a transient failure, want none", got)
	}
}
