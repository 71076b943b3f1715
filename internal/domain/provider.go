package domain

import "context"

// GenerateRequest is the uniform request shape for all provider calls.
type GenerateRequest struct {
	SystemPrompt string
	UserContent  string
	ImageURL     string // vision requests only
	MaxTokens    int
	Temperature  float64
}

// StructuredReply is the schema-constrained output of a structured generation
// call. Mood folds into the author's sentiment average after the reply.
type StructuredReply struct {
	ShouldRespond bool   `json:"should_respond"`
	ResponseText  string `json:"response_text"`
	Mood          string `json:"mood"`
}

// Provider is a single LLM backend. The gateway holds providers in a fixed
// failover order and never depends on concrete types beyond this interface.
type Provider interface {
	Name() string

	// GenerateText returns a free-form completion.
	GenerateText(ctx context.Context, req GenerateRequest) (string, error)

	// GenerateStructured returns raw model output constrained to a JSON
	// object; the gateway parses it into a StructuredReply.
	GenerateStructured(ctx context.Context, req GenerateRequest) (string, error)

	// GenerateVision handles a multimodal request. Providers that return
	// false from SupportsVision may return an error unconditionally.
	GenerateVision(ctx context.Context, req GenerateRequest) (string, error)

	SupportsVision() bool
}

// Embedder converts text into fixed-dimension float vectors. Initialization
// may fail; consumers check Ready and fall back rather than blocking.
type Embedder interface {
	Ready() bool
	Embed(ctx context.Context, text string) ([]float32, error)
}
