// Package providers groups the model provider adapters. Each sub-package
// implements [github.com/germanamz/tether/pkg/modeladapter.Completer] for one
// API:
//   - [github.com/germanamz/tether/pkg/providers/gemini]: Google Gemini generateContent REST API
package providers
