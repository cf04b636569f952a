package main

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ArianneAlonso/tutor-math-mcp/internal/config"
)

func TestParseFlags(t *testing.T) {
	f, err := parseFlags([]string{"-addr", ":9001", "-model", "llama3.2", "-store", "memory", "-db", "x.db", "-log-level", "debug"}, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, flags{addr: ":9001", model: "llama3.2", store: "memory", dbPath: "x.db", logLevel: "debug"}, f)

	_, err = parseFlags([]string{"-nope"}, io.Discard)
	assert.Error(t, err)
}

func TestLoadConfigFlagsWin(t *testing.T) {
	cfg, err := loadConfig(flags{addr: "127.0.0.1:0", model: "llama3.2", store: config.DriverMemory, logLevel: "warn"})
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:0", cfg.Addr)
	assert.Equal(t, "llama3.2", cfg.LLM.Model)
	assert.Equal(t, config.DriverMemory, cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)

	_, err = loadConfig(flags{store: "postgres"})
	assert.Error(t, err)
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.LLM.Model = "llama3.2"
	cfg.Store.Driver = config.DriverMemory
	return &cfg
}

func TestAppServesRoutes(t *testing.T) {
	a, err := newApp(context.Background(), testConfig())
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, a.close()) })

	ts := httptest.NewServer(a.handler)
	t.Cleanup(ts.Close)

	resp, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "Servidor activo")

	resp, err = http.Post(ts.URL+"/mcp", "application/json", strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	require.NoError(t, err)
	body, err = io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(body), "resolver_ecuacion_cuadratica")
}

func TestNewAppRejectsUnknownModel(t *testing.T) {
	cfg := testConfig()
	cfg.LLM.Model = "mystery-model"
	_, err := newApp(context.Background(), cfg)
	assert.Error(t, err)
}

func TestServeShutsDownOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- serve(ctx, ln, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		}))
	}()

	resp, err := http.Get("http://" + ln.Addr().String() + "/")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusTeapot, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
