package orchestrator

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/titannode/titannode/internal/model"
)

// Errors
var (
	ErrNoCredentials       = errors.New("no credentials")
	ErrInsufficientProxies = errors.New("not enough proxies for the number of accounts")
)

// Plan builds one identity per token. A single token runs in direct mode.
// Several tokens require at least as many proxies, assigned round-robin.
func Plan(tokens []string, proxies []*url.URL) ([]*model.Identity, error) {
	if len(tokens) == 0 {
		return nil, ErrNoCredentials
	}

	multi := len(tokens) > 1
	if multi && len(proxies) < len(tokens) {
		return nil, fmt.Errorf("%w: %d accounts, %d proxies", ErrInsufficientProxies, len(tokens), len(proxies))
	}

	identities := make([]*model.Identity, len(tokens))
	for i, token := range tokens {
		var proxy *url.URL
		proxyIndex := 0
		if multi {
			proxyIndex = i%len(proxies) + 1
			proxy = proxies[proxyIndex-1]
		}

		id := model.NewIdentity(i+1, token, proxy, proxyIndex)
		id.MultiAccount = multi
		identities[i] = id
	}

	return identities, nil
}
