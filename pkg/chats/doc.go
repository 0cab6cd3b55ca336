// Package chats provides the data model for conversations between a user, a
// language model and the tools it calls.
//
// It is organized into sub-packages:
//   - [github.com/germanamz/tether/pkg/chats/content]: content parts (text, function call, image)
//   - [github.com/germanamz/tether/pkg/chats/turn]: conversation turns sent to the model (user or model role)
//   - [github.com/germanamz/tether/pkg/chats/chat]: append-only conversation store
//   - [github.com/germanamz/tether/pkg/chats/role]: roles of outbound presentation messages
//   - [github.com/germanamz/tether/pkg/chats/message]: outbound presentation messages
//
// No provider or API code is included; chats is a foundation layer
// that adapters can build on.
package chats
