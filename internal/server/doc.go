// Package server manages the HTTP server lifecycle: non-blocking start,
// graceful shutdown and SIGINT/SIGTERM handling.
//
// Manager wraps net/http.Server with a listener, an asynchronous error
// channel and Start/Shutdown/WaitForShutdown lifecycle methods. It is shared
// by the API server and the metrics server.
package server
