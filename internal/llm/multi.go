package llm

import (
	"context"
	"fmt"
)

// MultiClient routes generation requests to the client registered for a
// provider name.
type MultiClient struct {
	clients  map[string]Client
	fallback Client
}

// NewMultiClient creates a client that routes to multiple providers.
func NewMultiClient(fallback Client) *MultiClient {
	return &MultiClient{
		clients:  make(map[string]Client),
		fallback: fallback,
	}
}

// AddProvider registers a client for a provider name.
func (m *MultiClient) AddProvider(name string, client Client) {
	m.clients[name] = client
}

// ClientFor returns the client for a provider, falling back to the
// default when the provider is unknown.
func (m *MultiClient) ClientFor(provider string) Client {
	if client, ok := m.clients[provider]; ok {
		return client
	}
	return m.fallback
}

// GenerateWith sends a request through the named provider's client.
func (m *MultiClient) GenerateWith(ctx context.Context, provider, model string, req Request) (*Result, error) {
	client := m.ClientFor(provider)
	if client == nil {
		return nil, fmt.Errorf("no client configured for provider %q", provider)
	}
	return client.Generate(ctx, model, req)
}

// Ping checks the fallback provider.
func (m *MultiClient) Ping(ctx context.Context) error {
	if m.fallback != nil {
		return m.fallback.Ping(ctx)
	}
	return fmt.Errorf("no fallback client configured")
}
