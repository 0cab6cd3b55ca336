// Package engine is the composition root of tether. It builds the model
// gateway, the model registry, and tool server sessions from configuration,
// and exposes them through a frontend-agnostic API. Frontends drive Session
// values and observe activity through an EventBus; they never import the
// lower-level packages to run a conversation.
package engine
