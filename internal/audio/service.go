package audio

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/suPer8Hu/chat-relay/internal/relay"
	"github.com/suPer8Hu/chat-relay/internal/speech"
)

// Service returns the audio for a message, synthesizing and caching it on
// first request.
type Service struct {
	synth speech.Synthesizer
	blobs Blobs
	log   logrus.FieldLogger
}

func NewService(synth speech.Synthesizer, blobs Blobs, log logrus.FieldLogger) *Service {
	return &Service{synth: synth, blobs: blobs, log: log}
}

// Audio authenticates token on w, checks that the message belongs to the
// caller and returns its audio. Synthesis failures wrap speech.ErrSynthesis.
func (s *Service) Audio(ctx context.Context, w *relay.Worker, token, messageID string) ([]byte, error) {
	log := s.log.WithFields(logrus.Fields{"conn": w.ConnID(), "message_id": messageID})

	if _, err := w.ValidateToken(ctx, token); err != nil {
		return nil, err
	}
	text, err := w.MessageContent(ctx, messageID)
	if err != nil {
		return nil, err
	}

	path, cached, err := w.AudioPath(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if cached {
		data, err := s.blobs.Get(ctx, path)
		switch {
		case err == nil && len(data) > 0:
			return data, nil
		case err == nil:
			log.Warn("cached audio empty, synthesizing again")
		default:
			// the row survives a lost blob; the rewrite below lands on the same name
			log.WithError(err).Warn("cached audio unreadable, synthesizing again")
		}
	}

	data, err := s.synth.Synthesize(ctx, text)
	if err != nil {
		return nil, err
	}
	stored, err := s.blobs.Put(ctx, messageID+".mp3", data)
	if err != nil {
		return nil, fmt.Errorf("store audio: %w", err)
	}
	if !cached {
		if err := w.RecordAudioPath(ctx, messageID, stored); err != nil {
			log.WithError(err).Warn("audio path not recorded")
		}
	}
	log.WithField("bytes", len(data)).Debug("audio synthesized")
	return data, nil
}
