package ports

import (
	"context"

	"lenslink/internal/core/domain"
)

// AIProvider is one analysis backend.
type AIProvider interface {
	Name() string
	Analyze(ctx context.Context, req domain.AnalyzeRequest) (string, error)
	AskFollowUp(ctx context.Context, req domain.FollowUpRequest) (string, error)
}

// ProviderGateway dispatches to a named provider.
type ProviderGateway interface {
	Analyze(ctx context.Context, provider string, req domain.AnalyzeRequest) (string, error)
	AskFollowUp(ctx context.Context, provider string, req domain.FollowUpRequest) (string, error)
	// Resolve fills in the default provider and that provider's default model.
	Resolve(provider, model string) (string, string)
}

// Broadcaster delivers outbound messages to connected clients.
type Broadcaster interface {
	Broadcast(msg domain.OutboundMessage)
	SendTo(connID domain.ConnectionID, msg domain.OutboundMessage) bool
}

type ScanService interface {
	Capture(ctx context.Context, req domain.CaptureRequest) (*domain.ScanRecord, error)
	FollowUp(ctx context.Context, cmd domain.FollowUpCommand) error
}
