// Package credentials manages the ordered pool of platform API credentials.
// The pool rotates forward on authorization failure; exhaustion is an
// infrastructure error, never a negative verification verdict.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ErrNoUsableCredential signals that every pool entry was tried and rejected.
var ErrNoUsableCredential = errors.New("credentials: no usable credential")

var rotations = promauto.NewCounter(prometheus.CounterOpts{
	Name: "tunelink_checker_credential_rotations_total",
	Help: "Total number of credential pool rotations after auth failures",
})

// Credential is one API client id and secret.
type Credential struct {
	ClientID     string
	ClientSecret string
}

// TokenFetcher exchanges a credential for a bearer token. platformapi.Client
// satisfies this.
type TokenFetcher interface {
	Token(ctx context.Context, clientID, clientSecret string) (string, error)
}

// Pool tries credentials in order and hands out the first usable bearer.
type Pool struct {
	entries []Credential
	fetcher TokenFetcher
}

// New builds a pool from "id:secret" entries.
func New(raw []string, fetcher TokenFetcher) (*Pool, error) {
	entries := make([]Credential, 0, len(raw))
	for _, pair := range raw {
		clientID, clientSecret, ok := strings.Cut(pair, ":")
		if !ok || clientID == "" || clientSecret == "" {
			return nil, fmt.Errorf("credentials: malformed entry %q, want id:secret", pair)
		}
		entries = append(entries, Credential{ClientID: clientID, ClientSecret: clientSecret})
	}
	if len(entries) == 0 {
		return nil, errors.New("credentials: empty pool")
	}
	return &Pool{entries: entries, fetcher: fetcher}, nil
}

// Acquire returns the first usable bearer token, trying entries from index 0.
func (p *Pool) Acquire(ctx context.Context) (string, int, error) {
	return p.acquireFrom(ctx, 0)
}

// Rotate returns a bearer from the entries after the failed index.
func (p *Pool) Rotate(ctx context.Context, fromIndex int) (string, int, error) {
	rotations.Inc()
	return p.acquireFrom(ctx, fromIndex+1)
}

func (p *Pool) acquireFrom(ctx context.Context, start int) (string, int, error) {
	for i := start; i < len(p.entries); i++ {
		entry := p.entries[i]
		bearer, err := p.fetcher.Token(ctx, entry.ClientID, entry.ClientSecret)
		if err == nil {
			return bearer, i, nil
		}
		if ctx.Err() != nil {
			return "", 0, ctx.Err()
		}
	}
	return "", 0, ErrNoUsableCredential
}

// Size reports the number of pool entries.
func (p *Pool) Size() int { return len(p.entries) }
