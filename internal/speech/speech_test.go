package speech

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"google.golang.org/api/option"
)

func TestGoogleSynth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "text:synthesize") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("key") != "k" {
			t.Errorf("api key not sent: %s", r.URL.RawQuery)
		}
		var req struct {
			Input struct {
				Text string `json:"text"`
			} `json:"input"`
			Voice struct {
				LanguageCode string `json:"languageCode"`
				Name         string `json:"name"`
			} `json:"voice"`
			AudioConfig struct {
				AudioEncoding string `json:"audioEncoding"`
			} `json:"audioConfig"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if req.Input.Text != "olá" || req.Voice.LanguageCode != "pt-BR" || req.AudioConfig.AudioEncoding != "MP3" {
			t.Errorf("unexpected request: %+v", req)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"audioContent": base64.StdEncoding.EncodeToString([]byte("mp3-bytes")),
		})
	}))
	defer srv.Close()

	g, err := NewGoogleSynth(context.Background(), "k", "pt-BR-Standard-A", "pt-BR", option.WithEndpoint(srv.URL+"/"))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	audio, err := g.Synthesize(context.Background(), "olá")
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if string(audio) != "mp3-bytes" {
		t.Fatalf("unexpected audio %q", audio)
	}
}

func TestGoogleSynthError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"code":403,"message":"denied"}}`, http.StatusForbidden)
	}))
	defer srv.Close()

	g, err := NewGoogleSynth(context.Background(), "k", "", "pt-BR", option.WithEndpoint(srv.URL+"/"))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := g.Synthesize(context.Background(), "x"); !errors.Is(err, ErrSynthesis) {
		t.Fatalf("expected ErrSynthesis, got %v", err)
	}
}

func TestExecSynthPipesRequest(t *testing.T) {
	e, err := NewExecSynth("cat", "v1", "pt-BR")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	out, err := e.Synthesize(context.Background(), "bom dia")
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if !bytes.Contains(out, []byte(`"text":"bom dia"`)) || !bytes.Contains(out, []byte(`"language":"pt-BR"`)) {
		t.Fatalf("command did not receive request: %s", out)
	}
}

func TestExecSynthFailure(t *testing.T) {
	e, err := NewExecSynth("false", "", "")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := e.Synthesize(context.Background(), "x"); !errors.Is(err, ErrSynthesis) {
		t.Fatalf("expected ErrSynthesis, got %v", err)
	}
	if _, err := NewExecSynth("   ", "", ""); err == nil {
		t.Fatal("expected error for empty command")
	}
}

func TestMockSynthDeterministic(t *testing.T) {
	m := NewMockSynth()
	a, _ := m.Synthesize(context.Background(), "same")
	b, _ := m.Synthesize(context.Background(), "same")
	c, _ := m.Synthesize(context.Background(), "other")
	if !bytes.Equal(a, b) || bytes.Equal(a, c) {
		t.Fatal("mock audio must depend only on text")
	}
	if !bytes.HasPrefix(a, []byte("ID3")) {
		t.Fatal("mock audio should look like mp3")
	}
}
