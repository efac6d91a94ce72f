// Package handlers implements the HTTP handlers of the staffline API:
// the chat event endpoint consumed by transport adapters, plus health and
// version endpoints. Handlers depend on the engine through a small interface
// so tests can drive them with a real engine over in-memory backends.
package handlers
