// Package fusion merges document-chunk and conversation-chunk retrieval
// results into a single ranked context set for the prompt. It classifies the
// question to pick source weights, scores conversation candidates against the
// query embedding, and applies a quota-aware selection over the merged
// ranking. All functions are pure: no IO, no shared state.
package fusion
