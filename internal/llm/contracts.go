package llm

import "context"

// ExtractRequest is one prompt about one invoice image.
type ExtractRequest struct {
	ImagePath string         // local path; attached to the request as a data URL
	Prompt    string         // full instruction text
	Schema    map[string]any // optional JSON-Schema the response must satisfy
}

// Extractor is the opaque extraction capability the pipeline depends on:
// given an image and a prompt, return text, fallibly. The surveyor, zone
// worker, mapper and detective all speak through this interface.
type Extractor interface {
	Extract(ctx context.Context, req ExtractRequest) (string, error)
}
