// Package endpoint implements the Endpoint Pool.
//
// The pool is a fixed, ordered list of equivalent service clusters, each with a
// REST base URL and a WebSocket base URL. It is read-only after construction.
// Every identity walks the pool with its own Cursor, which only moves forward
// (wrapping) when the identity fails over.
package endpoint
