package httpserver

import (
	"net/http"
	"testing"
	"time"

	"github.com/vidtube/backend/internal/config"
)

func TestNewAppliesDefaults(t *testing.T) {
	srv := New(8000, http.NotFoundHandler(), config.HTTPConfig{})

	if srv.Addr() != ":8000" {
		t.Fatalf("unexpected addr %q", srv.Addr())
	}
	if srv.inner.ReadHeaderTimeout != defaultReadHeaderTimeout || srv.inner.WriteTimeout != defaultWriteTimeout {
		t.Fatalf("expected default timeouts, got %s/%s", srv.inner.ReadHeaderTimeout, srv.inner.WriteTimeout)
	}
	if srv.ShutdownTimeout() != defaultShutdownTimeout {
		t.Fatalf("expected default shutdown timeout, got %s", srv.ShutdownTimeout())
	}
}

func TestNewUsesConfiguredTimeouts(t *testing.T) {
	srv := New(9000, http.NotFoundHandler(), config.HTTPConfig{
		ReadHeaderTimeout: time.Second,
		WriteTimeout:      2 * time.Second,
		ShutdownTimeout:   3 * time.Second,
	})

	if srv.inner.ReadHeaderTimeout != time.Second || srv.inner.WriteTimeout != 2*time.Second {
		t.Fatalf("unexpected timeouts %s/%s", srv.inner.ReadHeaderTimeout, srv.inner.WriteTimeout)
	}
	if srv.ShutdownTimeout() != 3*time.Second {
		t.Fatalf("unexpected shutdown timeout %s", srv.ShutdownTimeout())
	}
}
