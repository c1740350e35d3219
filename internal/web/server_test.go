package web

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/facemed/face-med/internal/blob"
	"github.com/facemed/face-med/internal/clinic"
	embmock "github.com/facemed/face-med/internal/embedding/mock"
	"github.com/facemed/face-med/internal/faceindex"
	"github.com/facemed/face-med/internal/config"
	storemock "github.com/facemed/face-med/internal/store/mock"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	blobs, err := blob.NewStore(t.TempDir(), 1<<20)
	if err != nil {
		t.Fatalf("could not create blob store: %v", err)
	}
	svc := clinic.New(storemock.NewStore(), embmock.NewExtractor(), blobs, faceindex.New(0.35, 1e-6), zerolog.Nop())

	cfg := &config.Config{}
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0
	cfg.Storage.MaxUploadSize = 1 << 20

	return NewServer(cfg, svc, zerolog.Nop())
}

func TestServerHealthRoute(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestServerPreflightOnAPIRoute(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/register-patient", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for preflight, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "http://localhost:5173" {
		t.Errorf("missing CORS allow-origin header")
	}
}

func TestServerUnknownRoute(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/no-such-route", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
