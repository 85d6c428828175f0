package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })
	err := rootCmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "--env", "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "chatapi dev")
}

func TestPing(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer backend.Close()
	t.Setenv("OLLAMA_API_URL", backend.URL)
	t.Setenv("STORE_DRIVER", "memory")

	out, err := execute(t, "--env", "", "ping")
	require.NoError(t, err)
	assert.Contains(t, out, "ollama is reachable at "+backend.URL)
}

func TestPingUnreachable(t *testing.T) {
	backend := httptest.NewServer(http.NotFoundHandler())
	url := backend.URL
	backend.Close()
	t.Setenv("OLLAMA_API_URL", url)
	t.Setenv("STORE_DRIVER", "memory")

	_, err := execute(t, "--env", "", "ping")
	assert.ErrorContains(t, err, "not reachable")
}

func TestOpenStoreMemory(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	_, err := execute(t, "--env", "", "version")
	require.NoError(t, err)

	store, closeStore, err := openStore(cfg)
	require.NoError(t, err)
	assert.NotNil(t, store)
	assert.NoError(t, closeStore())
}
