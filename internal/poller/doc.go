// Package poller implements the User Info Poller component.
//
// The User Info Poller:
//   - Fetches the account summary on a fixed interval while a stream is open
//   - Refreshes the access token once when the service answers 401
//   - Hands every fetched summary to a handler (logging by default)
package poller
