// Package model defines the shared data types used across titannode.
//
// Conventions:
//   - Identity sequence numbers are 1-based and stable for the process lifetime
//   - Byte counts are payload lengths, not wire sizes (no TLS/WebSocket framing)
//   - Points are reported as the server sends them and never persisted
package model
