// Package orchestrator implements the Identity Orchestrator.
//
// The Identity Orchestrator:
//   - Pairs each refresh token with a proxy (round-robin, multi-account only)
//   - Refuses to start when several accounts would share too few proxies
//   - Launches one Connection Supervisor per identity with a fixed stagger
//   - Waits for every identity; one identity's failure never stops another
package orchestrator
