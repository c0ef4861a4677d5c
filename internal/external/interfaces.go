package external

import (
	"context"
	"time"

	"impactalert/internal/types"
)

// SMSProvider abstracts the messaging provider. Implementations make exactly
// one provider call per method and return the provider's message identifier.
type SMSProvider interface {
	// Configured reports whether credentials and the messaging service
	// identity are all present.
	Configured() bool

	// Send dispatches body to recipient immediately.
	Send(ctx context.Context, to, body string) (providerMsgID string, err error)

	// Schedule asks the provider to dispatch body at sendAt.
	Schedule(ctx context.Context, to, body string, sendAt time.Time) (providerMsgID string, err error)
}

// PredictionService abstracts the external hazard prediction computation.
type PredictionService interface {
	Predict(ctx context.Context, raw []byte) (*types.PredictionOutcome, error)
}

var _ PredictionService = (*PredictionClient)(nil)
