package provider

import (
	"context"

	"github.com/scamwatch-ai/scamwatch/internal/chat"
)

// Provider is the model-call collaborator: the transport boundary the
// detection core delegates actual inference to. Implementations own
// authentication, endpoint configuration, and connection lifecycle.
type Provider interface {
	ChatCompletion(ctx context.Context, req *chat.Request) (*chat.Response, error)
}
