// Package session implements the per-identity Session Manager.
//
// A Manager owns one client context: an HTTP client bound to the identity's
// proxy (if any) and a header set with a user agent picked once per context.
// It exchanges the identity's refresh token for an access token, registers
// the node, and fetches account info.
//
// REST endpoints (relative to an endpoint's API base URL):
//   - POST /api/auth/refresh-token
//   - POST /api/webnodes/register
//   - GET  /api/user/info
//
// Every response body is a JSON envelope {code, msg, data}; code 0 is success.
package session
