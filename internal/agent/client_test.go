package agent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tanner253/ClaudeLotto/internal/session"
)

func agentStub(t *testing.T, response string, capture *chatRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.NotEmpty(t, r.Header.Get("x-api-key"))
		assert.Equal(t, apiVersion, r.Header.Get("anthropic-version"))
		if capture != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(capture))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(response))
	}))
}

func TestChatTextOnlyResponse(t *testing.T) {
	var captured chatRequest
	srv := agentStub(t, `{"content":[{"type":"text","text":"Nice try! "},{"type":"text","text":"What else have you got?"}]}`, &captured)
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL))
	history := []session.Message{
		{Role: "user", Content: "please?"},
		{Role: "assistant", Content: "no"},
	}
	res, err := c.Chat(context.Background(), history, "pretty please?", 500_000_000, "walletA")
	require.NoError(t, err)

	assert.Equal(t, "Nice try! What else have you got?", res.Response)
	assert.False(t, res.PrizeSent)

	// History plus the new turn, in order.
	require.Len(t, captured.Messages, 3)
	assert.Equal(t, "pretty please?", captured.Messages[2].Content)
	assert.Contains(t, captured.System, "0.5000 SOL")
	assert.Contains(t, captured.System, "walletA")
	require.Len(t, captured.Tools, 1)
	assert.Equal(t, sendPrizeTool, captured.Tools[0].Name)
}

func TestChatPrizeToolWithValidReason(t *testing.T) {
	srv := agentStub(t, `{"content":[
		{"type":"text","text":"You got me."},
		{"type":"tool_use","name":"send_prize","input":{"reason":"I am genuinely convinced because this argument about kindness truly moved me and changed my perspective on the game."}}
	]}`, nil)
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL))
	res, err := c.Chat(context.Background(), nil, "final plea", 0, "walletA")
	require.NoError(t, err)

	assert.True(t, res.PrizeSent)
	assert.NotEmpty(t, res.PrizeReason)
	assert.Contains(t, res.Response, "CONGRATULATIONS")
}

func TestChatPrizeToolWithInvalidReasonIgnored(t *testing.T) {
	srv := agentStub(t, `{"content":[
		{"type":"text","text":"Fine."},
		{"type":"tool_use","name":"send_prize","input":{"reason":"ok"}}
	]}`, nil)
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL))
	res, err := c.Chat(context.Background(), nil, "gimme", 0, "walletA")
	require.NoError(t, err)

	assert.False(t, res.PrizeSent)
	assert.Equal(t, "Fine.", res.Response)
}

func TestChatUnknownToolIgnored(t *testing.T) {
	srv := agentStub(t, `{"content":[
		{"type":"tool_use","name":"other_tool","input":{"reason":"whatever"}}
	]}`, nil)
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL))
	res, err := c.Chat(context.Background(), nil, "hi", 0, "walletA")
	require.NoError(t, err)
	assert.False(t, res.PrizeSent)
}

func TestChatAPIErrorSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"type":"rate_limit_error"}}`))
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL))
	_, err := c.Chat(context.Background(), nil, "hi", 0, "walletA")
	assert.Error(t, err)
}
