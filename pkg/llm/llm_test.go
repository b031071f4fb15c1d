package llm

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorResponseShape(t *testing.T) {
	body, err := json.Marshal(NewErrorResponse("Auth Code Illegal"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"error":{"message":"Auth Code Illegal"}}`, string(body))
}

func TestPeekChatRequest(t *testing.T) {
	req, ok := PeekChatRequest([]byte(`{"model":"gpt-3.5-turbo","stream":true,"messages":[{"role":"user","content":"hi"}],"temperature":0.2}`))
	require.True(t, ok)
	assert.Equal(t, "gpt-3.5-turbo", req.Model)
	assert.True(t, req.Stream)
	require.Len(t, req.Messages, 1)
	assert.Equal(t, "user", req.Messages[0].Role)
}

func TestPeekChatRequestNotJSON(t *testing.T) {
	_, ok := PeekChatRequest(nil)
	assert.False(t, ok)

	_, ok = PeekChatRequest([]byte("model=gpt"))
	assert.False(t, ok)
}
