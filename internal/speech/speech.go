package speech

import (
	"context"
	"errors"
)

// ErrSynthesis marks any failure of the speech backend.
var ErrSynthesis = errors.New("speech synthesis failed")

// Synthesizer renders text to encoded audio (MP3 for the built-in backends).
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}
