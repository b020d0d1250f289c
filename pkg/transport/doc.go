// Package transport defines the message transport contract shared by the
// local channel implementations (uds, mem).
//
// Key concepts:
//   - Transport: sends messages to the single connected peer and dispatches
//     received messages to listeners registered by topic.
//   - Listener: a callback bound to a topic fingerprint. At most one per
//     topic; a later registration replaces the earlier one.
//   - Registry: the instance-owned fingerprint to listener table.
//   - Error: a status-coded error using the gRPC code space, which is the
//     same numeric space as uProtocol UCode.
package transport
