package server

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmitrijs2005/weavekeeper/internal/common"
	"github.com/dmitrijs2005/weavekeeper/internal/server/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	c := &config.Config{}
	c.LoadDefaults()
	c.DatabaseDSN = "memory://"
	c.EndpointAddrHTTP = "127.0.0.1:0"
	c.SecretKey = "test-secret"
	c.BlobDir = filepath.Join(t.TempDir(), "blobs")
	c.DevWalletPath = filepath.Join(t.TempDir(), "wallet.json")
	c.ReaperInterval = 10 * time.Millisecond
	c.LogLevel = "error"
	return c
}

func TestNewApp_InvalidConfig(t *testing.T) {
	c := testConfig(t)
	c.SecretKey = ""

	if _, err := NewApp(context.Background(), c); !errors.Is(err, common.ErrConfig) {
		t.Fatalf("expected ErrConfig, got %v", err)
	}
}

func TestNewApp_BadDSN(t *testing.T) {
	c := testConfig(t)
	c.DatabaseDSN = "mysql://nope"

	if _, err := NewApp(context.Background(), c); !errors.Is(err, common.ErrConfig) {
		t.Fatalf("expected ErrConfig, got %v", err)
	}
}

func TestApp_RunServesUntilCancelled(t *testing.T) {
	app, err := NewApp(context.Background(), testConfig(t))
	if err != nil {
		t.Fatalf("NewApp error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	var addr string
	select {
	case a := <-app.server.Ready():
		addr = a.String()
	case <-time.After(5 * time.Second):
		t.Fatal("server did not start")
	}

	resp, err := http.Get("http://" + addr + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("app did not stop")
	}
}
