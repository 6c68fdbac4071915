package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"

	"github.com/mattn/go-shellwords"
)

// ExecSynth runs a local command per request. The command reads a JSON
// request on stdin and writes the encoded audio to stdout.
type ExecSynth struct {
	cmd      []string
	voice    string
	language string
}

type execRequest struct {
	Text     string `json:"text"`
	Voice    string `json:"voice"`
	Language string `json:"language"`
}

func NewExecSynth(command, voice, language string) (*ExecSynth, error) {
	args, err := shellwords.NewParser().Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse speech command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("speech command empty")
	}
	return &ExecSynth{cmd: args, voice: voice, language: language}, nil
}

func (e *ExecSynth) Synthesize(ctx context.Context, text string) ([]byte, error) {
	payload, err := json.Marshal(execRequest{Text: text, Voice: e.voice, Language: e.language})
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, e.cmd[0], e.cmd[1:]...)
	cmd.Stdin = bytes.NewReader(payload)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v: %s", ErrSynthesis, e.cmd[0], err, bytes.TrimSpace(stderr.Bytes()))
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("%w: %s produced no audio", ErrSynthesis, e.cmd[0])
	}
	return stdout.Bytes(), nil
}
