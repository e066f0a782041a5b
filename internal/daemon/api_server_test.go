package daemon

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"ingestor/internal/services"
)

func TestAuthMiddleware(t *testing.T) {
	next := func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) }
	handler := authMiddleware("token", next)

	for name, tc := range map[string]struct {
		header string
		want   int
	}{
		"missing": {"", http.StatusUnauthorized},
		"wrong":   {"Bearer nope", http.StatusUnauthorized},
		"basic":   {"Basic token", http.StatusUnauthorized},
		"valid":   {"Bearer token", http.StatusNoContent},
	} {
		req := httptest.NewRequest(http.MethodGet, "/api/jobs", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		w := httptest.NewRecorder()
		handler(w, req)
		if w.Code != tc.want {
			t.Fatalf("%s: expected %d, got %d", name, tc.want, w.Code)
		}
	}
}

func TestParseTags(t *testing.T) {
	if got := parseTags(`["a","b"]`); len(got) != 2 || got[1] != "b" {
		t.Fatalf("unexpected JSON tags %v", got)
	}
	if got := parseTags("x, y"); len(got) != 2 || got[0] != "x" {
		t.Fatalf("unexpected comma tags %v", got)
	}
	if got := parseTags("  "); got != nil {
		t.Fatalf("expected nil tags, got %v", got)
	}
}

func TestStatusForError(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{services.Wrap(services.ErrValidation, "jobs", "validate", "bad", nil), http.StatusBadRequest},
		{services.Wrap(services.ErrNotFound, "workflow", "status", "missing", nil), http.StatusNotFound},
		{services.Wrap(services.ErrShuttingDown, "workflow", "submit", "stop", nil), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := statusForError(tc.err); got != tc.want {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.want, got)
		}
	}
}
