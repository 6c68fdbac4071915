package speech

import (
	"context"
	"encoding/base64"
	"fmt"

	"google.golang.org/api/option"
	"google.golang.org/api/texttospeech/v1"
)

// GoogleSynth calls the Cloud Text-to-Speech REST API with an API key.
type GoogleSynth struct {
	svc      *texttospeech.Service
	voice    string
	language string
}

func NewGoogleSynth(ctx context.Context, apiKey, voice, language string, opts ...option.ClientOption) (*GoogleSynth, error) {
	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	svc, err := texttospeech.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("texttospeech client: %w", err)
	}
	return &GoogleSynth{svc: svc, voice: voice, language: language}, nil
}

func (g *GoogleSynth) Synthesize(ctx context.Context, text string) ([]byte, error) {
	req := &texttospeech.SynthesizeSpeechRequest{
		Input: &texttospeech.SynthesisInput{Text: text},
		Voice: &texttospeech.VoiceSelectionParams{
			LanguageCode: g.language,
			Name:         g.voice,
		},
		AudioConfig: &texttospeech.AudioConfig{AudioEncoding: "MP3"},
	}
	resp, err := g.svc.Text.Synthesize(req).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("%w: google: %v", ErrSynthesis, err)
	}
	audio, err := base64.StdEncoding.DecodeString(resp.AudioContent)
	if err != nil {
		return nil, fmt.Errorf("%w: google: decode audio: %v", ErrSynthesis, err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("%w: google: empty audio", ErrSynthesis)
	}
	return audio, nil
}
