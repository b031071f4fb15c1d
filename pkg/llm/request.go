package llm

import "encoding/json"

// ChatRequest is the part of an OpenAI-compatible chat completion request the
// relay looks at. Unknown fields are ignored; the body is always forwarded
// byte for byte.
type ChatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream,omitempty"`
}

// PeekChatRequest decodes body as a ChatRequest. ok is false when body is not
// a JSON object, which is normal for non chat endpoints.
func PeekChatRequest(body []byte) (req ChatRequest, ok bool) {
	if len(body) == 0 {
		return ChatRequest{}, false
	}
	if err := json.Unmarshal(body, &req); err != nil {
		return ChatRequest{}, false
	}
	return req, true
}
