package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestResponseWriter(t *testing.T) {
	// Arrange
	w := httptest.NewRecorder()
	rw := newResponseWriter(w)

	// Act
	rw.WriteHeader(http.StatusCreated)
	rw.WriteHeader(http.StatusBadRequest)
	_, _ = rw.Write([]byte("hello"))
	_, _ = rw.Write([]byte(" world"))

	// Assert
	if rw.statusCode != http.StatusCreated {
		t.Errorf("statusCode = %d, want %d", rw.statusCode, http.StatusCreated)
	}
	if rw.bytes != len("hello world") {
		t.Errorf("bytes = %d, want %d", rw.bytes, len("hello world"))
	}
	if w.Code != http.StatusCreated {
		t.Errorf("recorded status = %d, want %d", w.Code, http.StatusCreated)
	}
}

func TestResponseWriter_WriteWithoutHeader(t *testing.T) {
	// Arrange
	w := httptest.NewRecorder()
	rw := newResponseWriter(w)

	// Act
	_, _ = rw.Write([]byte("ok"))

	// Assert
	if !rw.written {
		t.Error("written should be true after Write")
	}
	if rw.statusCode != http.StatusOK {
		t.Errorf("statusCode = %d, want %d", rw.statusCode, http.StatusOK)
	}
}

func TestChain(t *testing.T) {
	// Arrange
	var order []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		order = append(order, "handler")
		w.WriteHeader(http.StatusOK)
	})

	// Act
	Chain(mark("first"), mark("second"))(handler).ServeHTTP(
		httptest.NewRecorder(),
		httptest.NewRequest(http.MethodGet, "/", nil),
	)

	// Assert
	want := []string{"first", "second", "handler"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d] = %s, want %s", i, order[i], want[i])
		}
	}
}

func TestLogging_IncludesAnnotations(t *testing.T) {
	// Arrange
	core, logs := observer.New(zapcore.DebugLevel)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		AnnotateLog(r.Context(), zap.String("login", "John Smith 87e24e23bb"))
		w.WriteHeader(http.StatusFound)
	})

	req := httptest.NewRequest(http.MethodGet, "/login", nil)
	req.Header.Set(RequestIDHeader, "req-1")

	// Act
	Logging(zap.New(core))(handler).ServeHTTP(httptest.NewRecorder(), req)

	// Assert
	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("got %d log entries, want 1", len(entries))
	}
	entry := entries[0]
	if entry.Level != zapcore.InfoLevel {
		t.Errorf("level = %s, want info", entry.Level)
	}
	fields := entry.ContextMap()
	if fields["login"] != "John Smith 87e24e23bb" {
		t.Errorf("login field = %v", fields["login"])
	}
	if fields["status"] != int64(http.StatusFound) {
		t.Errorf("status field = %v, want %d", fields["status"], http.StatusFound)
	}
	if fields["request_id"] != "req-1" {
		t.Errorf("request_id field = %v, want req-1", fields["request_id"])
	}
}

func TestLogging_HealthPathsAtDebug(t *testing.T) {
	// Arrange
	core, logs := observer.New(zapcore.DebugLevel)
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// Act
	Logging(zap.New(core))(handler).ServeHTTP(
		httptest.NewRecorder(),
		httptest.NewRequest(http.MethodGet, "/health", nil),
	)

	// Assert
	if entries := logs.All(); len(entries) != 1 || entries[0].Level != zapcore.DebugLevel {
		t.Errorf("entries = %+v, want one debug entry", entries)
	}
}

func TestAnnotateLog_OutsideLogging(t *testing.T) {
	// Act & Assert - must not panic
	AnnotateLog(context.Background(), zap.String("k", "v"))
}

func TestRecovery_RecoversPanic(t *testing.T) {
	// Arrange
	handler := http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		panic("test panic")
	})
	rr := httptest.NewRecorder()

	// Act
	Recovery(zap.NewNop())(handler).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	// Assert
	if rr.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusInternalServerError)
	}
	var body errorResponse
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.Code != http.StatusInternalServerError || body.Message != "internal server error" {
		t.Errorf("body = %+v", body)
	}
}

func TestRecovery_NoPanic(t *testing.T) {
	// Arrange
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	rr := httptest.NewRecorder()

	// Act
	Recovery(zap.NewNop())(handler).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	// Assert
	if rr.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusNoContent)
	}
}

func TestRequestID(t *testing.T) {
	tests := []struct {
		name     string
		incoming string
	}{
		{"generates ID", ""},
		{"keeps existing ID", "existing-id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			var fromContext string
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fromContext = RequestIDFromContext(r.Context())
				w.WriteHeader(http.StatusOK)
			})
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.incoming != "" {
				req.Header.Set(RequestIDHeader, tt.incoming)
			}
			rr := httptest.NewRecorder()

			// Act
			RequestID()(handler).ServeHTTP(rr, req)

			// Assert
			got := rr.Header().Get(RequestIDHeader)
			if got == "" {
				t.Fatal("response should carry a request ID")
			}
			if tt.incoming != "" && got != tt.incoming {
				t.Errorf("request ID = %s, want %s", got, tt.incoming)
			}
			if fromContext != got {
				t.Errorf("context request ID = %s, want %s", fromContext, got)
			}
		})
	}
}

func TestRequestIDFromContext_Missing(t *testing.T) {
	if got := RequestIDFromContext(context.Background()); got != "" {
		t.Errorf("RequestIDFromContext() = %s, want empty", got)
	}
}

func TestMetrics_UsesRouteTemplate(t *testing.T) {
	// Arrange
	router := mux.NewRouter()
	router.Use(mux.MiddlewareFunc(Metrics()))

	var path string
	router.HandleFunc("/accounts/{id}", func(w http.ResponseWriter, r *http.Request) {
		path = normalizeRequestPath(r)
		w.WriteHeader(http.StatusOK)
	})
	rr := httptest.NewRecorder()

	// Act
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/accounts/42", nil))

	// Assert
	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	if path != "/accounts/{id}" {
		t.Errorf("normalized path = %s, want /accounts/{id}", path)
	}
}

func TestNormalizeRequestPath_NoRoute(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/raw/path", nil)

	if got := normalizeRequestPath(req); got != "/raw/path" {
		t.Errorf("normalizeRequestPath() = %s, want /raw/path", got)
	}
}

func TestCORS(t *testing.T) {
	tests := []struct {
		name            string
		origins         []string
		origin          string
		wantAllowOrigin string
		wantCredentials string
	}{
		{"listed origin", []string{"https://app.example.org"}, "https://app.example.org", "https://app.example.org", "true"},
		{"wildcard", []string{"*"}, "https://any.example.org", "*", ""},
		{"disallowed origin", []string{"https://app.example.org"}, "https://evil.example", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
			})
			req := httptest.NewRequest(http.MethodGet, "/login/link", nil)
			req.Header.Set("Origin", tt.origin)
			rr := httptest.NewRecorder()

			// Act
			CORS(tt.origins, []string{http.MethodGet}, []string{"Content-Type"})(handler).ServeHTTP(rr, req)

			// Assert
			if got := rr.Header().Get("Access-Control-Allow-Origin"); got != tt.wantAllowOrigin {
				t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, tt.wantAllowOrigin)
			}
			if got := rr.Header().Get("Access-Control-Allow-Credentials"); got != tt.wantCredentials {
				t.Errorf("Access-Control-Allow-Credentials = %q, want %q", got, tt.wantCredentials)
			}
			if got := rr.Header().Get("Access-Control-Max-Age"); got != "86400" {
				t.Errorf("Access-Control-Max-Age = %s, want 86400", got)
			}
		})
	}
}

func TestCORS_PreflightRequest(t *testing.T) {
	// Arrange
	handlerCalled := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		handlerCalled = true
		w.WriteHeader(http.StatusOK)
	})
	req := httptest.NewRequest(http.MethodOptions, "/login", nil)
	req.Header.Set("Origin", "https://app.example.org")
	rr := httptest.NewRecorder()

	// Act
	CORS([]string{"https://app.example.org"}, []string{http.MethodGet}, nil)(handler).ServeHTTP(rr, req)

	// Assert
	if rr.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusNoContent)
	}
	if handlerCalled {
		t.Error("Handler should not be called for preflight request")
	}
}

func TestMiddlewareChainIntegration(t *testing.T) {
	// Arrange
	logger := zap.NewNop()
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(RequestIDHeader) == "" {
			t.Error("Request ID should be set by middleware")
		}
		w.WriteHeader(http.StatusOK)
	})

	chain := Chain(
		Recovery(logger),
		RequestID(),
		Metrics(),
		Logging(logger),
		CORS([]string{"*"}, []string{http.MethodGet}, []string{"Content-Type"}),
	)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rr := httptest.NewRecorder()

	// Act
	chain(handler).ServeHTTP(rr, req)

	// Assert
	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	if rr.Header().Get(RequestIDHeader) == "" {
		t.Error("Response should have Request ID header")
	}
	if rr.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Error("Response should have CORS headers")
	}
}
