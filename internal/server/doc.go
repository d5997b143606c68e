// Package server wires the session registry into an Echo HTTP surface:
// document upload/download endpoints, the session WebSocket, and
// observability routes. All responses carry permissive CORS headers.
package server
