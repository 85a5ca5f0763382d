// Package connection implements the per-identity Connection Supervisor.
//
// The Connection Supervisor:
//   - Authenticates through the Session Manager, failing over across the endpoint pool
//   - Maintains one WebSocket stream per identity
//   - Sends an application keepalive every 30 seconds while the stream is open
//   - Answers server liveness challenges ({"cmd":1}) before handling the next frame
//   - Reconnects with exponential backoff, bounded by a maximum attempt count
//
// States cycle Disconnected → Connecting → Open → Closing → Disconnected.
package connection
