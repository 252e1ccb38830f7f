// In file: internal/integrations/credentials.go
package integrations

import (
	"context"
	"errors"
)

// CredentialProvider resolves the credential used to authenticate outbound
// service calls for a user. The concrete implementation is chosen once at
// startup; execution code never swaps credential sources at runtime.
type CredentialProvider interface {
	// ActiveCredential returns (token, true, nil) when the user has an
	// active credential, (_, false, nil) when they simply don't, and a
	// non-nil error only for storage failures.
	ActiveCredential(ctx context.Context, userID string) (string, bool, error)
}

// StoreProvider reads stored OAuth tokens from the integration record store.
// This is the production configuration.
type StoreProvider struct {
	store       *Store
	serviceType string
}

var _ CredentialProvider = (*StoreProvider)(nil)

func NewStoreProvider(store *Store, serviceType string) *StoreProvider {
	return &StoreProvider{store: store, serviceType: serviceType}
}

func (p *StoreProvider) ActiveCredential(ctx context.Context, userID string) (string, bool, error) {
	rec, err := p.store.GetActive(ctx, userID, p.serviceType)
	if err != nil {
		return "", false, err
	}
	if rec == nil {
		return "", false, nil
	}
	return rec.AccessToken, true, nil
}

// StaticProvider serves one fixed token for every user, typically sourced
// from an environment variable. Useful for single-user deployments and for
// integration testing against a real workspace without the OAuth flow.
type StaticProvider struct {
	token string
}

var _ CredentialProvider = (*StaticProvider)(nil)

// NewStaticProvider fails on an empty token so a misconfigured deployment
// dies at startup instead of returning missing-credential errors per request.
func NewStaticProvider(token string) (*StaticProvider, error) {
	if token == "" {
		return nil, errors.New("static credential provider requires a non-empty token")
	}
	return &StaticProvider{token: token}, nil
}

func (p *StaticProvider) ActiveCredential(_ context.Context, _ string) (string, bool, error) {
	return p.token, true, nil
}
