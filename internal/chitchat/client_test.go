package chitchat

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestReplyFromService(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/reply", r.URL.Path)

		var req replyRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "hello there", req.Text)

		json.NewEncoder(w).Encode(replyResponse{Reply: "  General Kenobi.  "})
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL}, nil, testLogger())
	reply, err := c.Reply(context.Background(), "hello there")
	require.NoError(t, err)
	assert.Equal(t, "General Kenobi.", reply)
}

func TestReplyServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL}, nil, testLogger())
	_, err := c.Reply(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestReplyMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL}, nil, testLogger())
	_, err := c.Reply(context.Background(), "hello")
	assert.Error(t, err)
}

func TestReplyFallbackRotation(t *testing.T) {
	c := New(Config{}, nil, testLogger())

	seen := make([]string, 0, len(fallbackReplies)+1)
	for i := 0; i <= len(fallbackReplies); i++ {
		reply, err := c.Reply(context.Background(), "anything")
		require.NoError(t, err)
		seen = append(seen, reply)
	}
	assert.Equal(t, fallbackReplies[0], seen[0])
	assert.Equal(t, fallbackReplies[1], seen[1])
	// Rotation wraps around.
	assert.Equal(t, fallbackReplies[0], seen[len(fallbackReplies)])
}
