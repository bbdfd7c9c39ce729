// Package provider wraps the external model services: text embedding and
// chat completion. It owns the cost budget and the retry/rate-limit policy
// for outbound calls, so the rest of the application only sees the two small
// interfaces below plus the package sentinels.
package provider

import (
	"context"
	"errors"
)

// Embedder maps text to a fixed-dimension embedding vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Generator produces an answer for a rendered prompt.
type Generator interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// Sentinel errors for provider operations. Check with errors.Is().
var (
	// ErrBudgetExceeded indicates the cost cap would be crossed. The request
	// fails before the provider call is issued.
	ErrBudgetExceeded = errors.New("budget exceeded")

	// ErrProvider indicates the upstream model service failed.
	ErrProvider = errors.New("provider error")
)
