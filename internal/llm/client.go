package llm

import "context"

// CompletionRequest is a single chat-completion call. Temperature and token
// budget come from the director's per-request decision.
type CompletionRequest struct {
	SystemPrompt string
	UserText     string
	Temperature  float32
	MaxTokens    int
}

type Response struct {
	Content          string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Client is a language-model completion provider.
type Client interface {
	Complete(ctx context.Context, req CompletionRequest) (Response, error)
}

// Transcriber converts voice audio to text. There is no local fallback for
// transcription; callers gate it through the director's quota checks.
type Transcriber interface {
	TranscribeAudio(ctx context.Context, audio []byte, filename string) (string, error)
}
