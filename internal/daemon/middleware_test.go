package daemon

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestGetCorrelationID(t *testing.T) {
	tests := []struct {
		name string
		ctx  context.Context
		want string
	}{
		{"from context", context.WithValue(context.Background(), CorrelationIDKey, "abc-123"), "abc-123"},
		{"empty context", context.Background(), ""},
		{"wrong type", context.WithValue(context.Background(), CorrelationIDKey, 12345), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetCorrelationID(tt.ctx); got != tt.want {
				t.Errorf("GetCorrelationID() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCorrelationIDMiddleware(t *testing.T) {
	tests := []struct {
		name     string
		incoming string
	}{
		{"generates id", ""},
		{"propagates existing id", "existing-correlation-id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var captured string
			handler := correlationIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				captured = GetCorrelationID(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			if tt.incoming != "" {
				req.Header.Set(CorrelationIDHeader, tt.incoming)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if tt.incoming != "" && captured != tt.incoming {
				t.Errorf("captured = %q, want %q", captured, tt.incoming)
			}
			if tt.incoming == "" {
				if _, err := uuid.Parse(captured); err != nil {
					t.Errorf("generated id %q is not a UUID: %v", captured, err)
				}
			}
			if got := rec.Header().Get(CorrelationIDHeader); got != captured {
				t.Errorf("response header = %q, want %q", got, captured)
			}
		})
	}
}

func TestLoggingMiddleware_LevelFollowsStatus(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		write      bool
		wantLevel  string
		wantStatus string
	}{
		{"ok", http.StatusOK, true, "level=DEBUG", "status=200"},
		{"implicit ok", http.StatusOK, false, "level=DEBUG", "status=200"},
		{"not found", http.StatusNotFound, true, "level=WARN", "status=404"},
		{"conflict", http.StatusConflict, true, "level=WARN", "status=409"},
		{"internal error", http.StatusInternalServerError, true, "level=ERROR", "status=500"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

			handler := loggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.write {
					w.WriteHeader(tt.status)
				}
				w.Write([]byte("body"))
			}))

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/test", nil))

			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
			if rec.Body.String() != "body" {
				t.Errorf("body = %q, want passthrough", rec.Body.String())
			}
			out := buf.String()
			if !strings.Contains(out, tt.wantLevel) || !strings.Contains(out, tt.wantStatus) {
				t.Errorf("log = %q, want %s and %s", out, tt.wantLevel, tt.wantStatus)
			}
		})
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    int
	}{
		{"no panic", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusAccepted) }, http.StatusAccepted},
		{"panic", func(w http.ResponseWriter, r *http.Request) { panic("test panic") }, http.StatusInternalServerError},
		// panic(nil) is a runtime.PanicNilError since Go 1.21
		{"nil panic", func(w http.ResponseWriter, r *http.Request) { panic(nil) }, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := recoveryMiddleware(quietLogger())(tt.handler)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/test", nil))
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestMiddlewareChain_WithPanic(t *testing.T) {
	var captured string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = GetCorrelationID(r.Context())
		panic("simulated panic")
	})
	handler := correlationIDMiddleware(loggingMiddleware(quietLogger())(recoveryMiddleware(quietLogger())(inner)))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/test", nil))

	if captured == "" {
		t.Error("correlation id should be set before the panic")
	}
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if rec.Header().Get(CorrelationIDHeader) != captured {
		t.Error("response header does not carry the correlation id")
	}
}
