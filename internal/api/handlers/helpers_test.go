package handlers

import (
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"airvault/internal/core"
	"airvault/internal/types"
)

const testUserID = "user-1"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testValidator() *core.Validator {
	return core.NewValidator()
}

// serve mounts the registrar on a bare router and performs the request with
// the test user injected, mirroring what the auth middleware does.
func serve(t *testing.T, register func(chi.Router), method, target, body string) *httptest.ResponseRecorder {
	t.Helper()

	r := chi.NewRouter()
	register(r)

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req = req.WithContext(types.WithUserID(req.Context(), testUserID))
	req = req.WithContext(types.WithRequestID(req.Context(), "req-test"))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func assertErrorCode(t *testing.T, w *httptest.ResponseRecorder, wantStatus int, wantCode types.ErrorCode) {
	t.Helper()
	if w.Code != wantStatus {
		t.Fatalf("status = %d, want %d (body %s)", w.Code, wantStatus, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), string(wantCode)) {
		t.Fatalf("body %s missing code %s", w.Body.String(), wantCode)
	}
}
