package models

// ProcessingMode is how the director routes a parsing request.
type ProcessingMode string

const (
	ModeLocalOnly         ProcessingMode = "local_only"
	ModeLocalWithFallback ProcessingMode = "local_with_gpt_fallback"
	ModeGPTOnly           ProcessingMode = "gpt_only"
	ModeQueueForLater     ProcessingMode = "queue_for_later"
)

// Complexity is the director's estimate of how hard a message is to parse.
type Complexity string

const (
	ComplexitySimple  Complexity = "simple"
	ComplexityMedium  Complexity = "medium"
	ComplexityComplex Complexity = "complex"
)

// DirectorDecision carries the processing mode and parameters for one
// request. Created fresh per request and consumed immediately, never stored.
type DirectorDecision struct {
	Mode                ProcessingMode
	Reason              string
	ConfidenceThreshold float64
	MaxTokens           int
	Temperature         float32
	DelaySeconds        int
}
