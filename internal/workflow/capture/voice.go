package capture

import (
	"context"
	"fmt"
	"time"

	"kycbuster/internal/evidence/models"
	dErrors "kycbuster/pkg/domain-errors"
)

// DefaultVoiceWindow is how long the microphone stays open.
const DefaultVoiceWindow = 5 * time.Second

// RecordVoice records for exactly one window and returns the audio. The
// microphone is released before returning on every path.
func RecordVoice(ctx context.Context, clock Clock, mic Microphone, window time.Duration) (models.Media, error) {
	if clock == nil {
		clock = RealClock{}
	}
	if window <= 0 {
		window = DefaultVoiceWindow
	}
	if err := ctx.Err(); err != nil {
		return models.Media{}, err
	}
	if err := mic.Start(ctx); err != nil {
		return models.Media{}, dErrors.Wrap(err, dErrors.CodeResourceUnavailable, "microphone unavailable")
	}

	select {
	case <-ctx.Done():
	case <-clock.After(window):
	}
	audio, stopErr := mic.Stop()
	if err := ctx.Err(); err != nil {
		return models.Media{}, fmt.Errorf("voice recording aborted: %w", err)
	}
	if stopErr != nil {
		return models.Media{}, dErrors.Wrap(stopErr, dErrors.CodeResourceUnavailable, "microphone failed while recording")
	}
	if audio.Empty() {
		return models.Media{}, dErrors.New(dErrors.CodeResourceUnavailable, "no audio was recorded")
	}
	return audio, nil
}
