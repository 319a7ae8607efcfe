package capture

import (
	"context"

	"kycbuster/internal/evidence/models"
)

// Camera is a live image source. Start acquires the device and Stop releases
// it; the sequencer calls Stop exactly once for every successful Start.
type Camera interface {
	Start(ctx context.Context) error
	Capture(ctx context.Context) (models.Media, error)
	Stop() error
}

// Microphone records audio between Start and Stop. Stop releases the device
// and returns what was recorded.
type Microphone interface {
	Start(ctx context.Context) error
	Stop() (models.Media, error)
}
