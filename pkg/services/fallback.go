package services

import (
	"context"
)

const (
	// UnavailableMessage is streamed when the pipeline cannot reach the
	// generative API at all (missing key, no retriever).
	UnavailableMessage = "I apologize, but the AI system is currently unavailable. Please try again later."

	// FailureMessage is streamed when generation fails mid-request.
	FailureMessage = "An error occurred while processing your request."
)

// fallbackChunkSize keeps the degraded path looking like a real token
// stream instead of one large write.
const fallbackChunkSize = 24

// StreamFallback emits text through onDelta in small fragments. The
// fallback text is never persisted as a bot message.
func StreamFallback(ctx context.Context, text string, onDelta func(string)) {
	for i := 0; i < len(text); i += fallbackChunkSize {
		if ctx.Err() != nil {
			return
		}
		end := i + fallbackChunkSize
		if end > len(text) {
			end = len(text)
		}
		if onDelta != nil {
			onDelta(text[i:end])
		}
	}
}
