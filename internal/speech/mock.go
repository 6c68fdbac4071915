package speech

import (
	"context"
	"crypto/sha256"
)

// MockSynth returns a fixed ID3 header followed by a digest of the text, so
// equal texts give equal audio.
type MockSynth struct{}

func NewMockSynth() MockSynth { return MockSynth{} }

func (MockSynth) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sum := sha256.Sum256([]byte(text))
	return append([]byte("ID3\x04\x00\x00\x00\x00\x00\x00"), sum[:]...), nil
}
