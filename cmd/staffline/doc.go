// Command staffline runs the conversational HR workflow service: the chat
// event API, the Prometheus metrics listener and the health endpoints, wired
// from a YAML/env configuration.
package main
