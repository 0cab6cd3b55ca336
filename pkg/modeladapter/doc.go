// Package modeladapter defines the gateway between the orchestration loop and
// a generative model.
//
// It contains:
//   - [Completer] and [Reply]: one model round over a conversation history
//   - [ModelError]: the reasons a response can be unusable
//   - [ModelAdapter]: an embeddable base with auth, HTTP helpers and usage tracking
//   - [RetryingCompleter]: retries rate-limited calls with exponential backoff
//   - [TokenEstimator]: a rough prompt-size estimate for logging
//   - [github.com/germanamz/tether/pkg/modeladapter/usage]: per-model token usage
//
// Provider-specific code lives in pkg/providers.
package modeladapter
