package ollama

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ollamabench/internal/dummy"
)

func newFake(t *testing.T, cfg dummy.ServerConfig) *Client {
	t.Helper()
	srv := httptest.NewServer(dummy.NewHandler(cfg))
	t.Cleanup(srv.Close)
	return New(srv.URL)
}

func TestPingAndListModels(t *testing.T) {
	c := newFake(t, dummy.ServerConfig{Models: []string{"phi:latest", "llama3:8b"}})
	ctx := context.Background()

	require.NoError(t, c.Ping(ctx))

	models, err := c.ListModels(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"phi:latest", "llama3:8b"}, models)

	ok, err := c.HasModel(ctx, "phi")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.HasModel(ctx, "llama3")
	require.NoError(t, err)
	assert.False(t, ok, "llama3 only exists as llama3:8b")
}

func TestPingUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	err := New(url, WithTimeout(time.Second)).Ping(context.Background())
	assert.Error(t, err)
}

func TestGenerate(t *testing.T) {
	c := newFake(t, dummy.ServerConfig{Models: []string{"phi:latest"}, Response: "forty-two"})
	out, err := c.Generate(context.Background(), "phi", "meaning of life?")
	require.NoError(t, err)
	assert.Equal(t, "forty-two", out)
}

func TestGenerateServerError(t *testing.T) {
	c := newFake(t, dummy.ServerConfig{Models: []string{"phi:latest"}, ErrorRate: 1})
	_, err := c.Generate(context.Background(), "phi", "hi")

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusInternalServerError, se.Code)
}

func TestGenerateUnknownModel(t *testing.T) {
	c := newFake(t, dummy.ServerConfig{Models: []string{"phi:latest"}})
	_, err := c.Generate(context.Background(), "mistral", "hi")

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusNotFound, se.Code)
	assert.Contains(t, se.Body, "not found")
}

func TestGenerateInvalidJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("{not json"))
	}))
	defer srv.Close()

	_, err := New(srv.URL).Generate(context.Background(), "phi", "hi")
	assert.ErrorContains(t, err, "invalid JSON")
}

func TestGenerateAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":"out of memory"}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL).Generate(context.Background(), "phi", "hi")
	assert.ErrorContains(t, err, "out of memory")
}

func TestGenerateHonoursContext(t *testing.T) {
	c := newFake(t, dummy.ServerConfig{Models: []string{"phi:latest"}, MinLatency: 2 * time.Second})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := c.Generate(ctx, "phi", "hi")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestMatchModel(t *testing.T) {
	avail := []string{"phi:latest", "qwen2.5:7b"}
	assert.True(t, MatchModel(avail, "phi"))
	assert.True(t, MatchModel(avail, "phi:latest"))
	assert.True(t, MatchModel(avail, "qwen2.5:7b"))
	assert.False(t, MatchModel(avail, "qwen2.5"))
	assert.False(t, MatchModel(avail, "phi:2b"))
}

func TestNewDefaults(t *testing.T) {
	c := New("")
	assert.Equal(t, DefaultURL, c.BaseURL())
	assert.Equal(t, "http://x:1", New("http://x:1/").BaseURL())
}
