package main

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/suPer8Hu/chat-relay/internal/ai"
	"github.com/suPer8Hu/chat-relay/internal/audio"
	"github.com/suPer8Hu/chat-relay/internal/auth"
	"github.com/suPer8Hu/chat-relay/internal/chat"
	"github.com/suPer8Hu/chat-relay/internal/config"
	"github.com/suPer8Hu/chat-relay/internal/db"
	"github.com/suPer8Hu/chat-relay/internal/events"
	"github.com/suPer8Hu/chat-relay/internal/httpapi"
	"github.com/suPer8Hu/chat-relay/internal/logging"
	"github.com/suPer8Hu/chat-relay/internal/relay"
	"github.com/suPer8Hu/chat-relay/internal/scheduler"
	"github.com/suPer8Hu/chat-relay/internal/speech"
	"github.com/suPer8Hu/chat-relay/internal/store/natsbus"
	"github.com/suPer8Hu/chat-relay/internal/store/redisstore"
	"github.com/suPer8Hu/chat-relay/internal/store/rabbitmq"
	"github.com/suPer8Hu/chat-relay/internal/telemetry"
)

const serviceName = "chat-relay"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	envErr := godotenv.Load()

	cfg, err := config.Load(os.Getenv("RELAY_CONFIG"))
	if err != nil {
		logrus.Fatalf("load config: %v", err)
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat)
	if envErr != nil && !errors.Is(envErr, fs.ErrNotExist) {
		log.WithError(envErr).Warn("failed to load .env, using process environment only")
	}

	tel, err := telemetry.Setup(serviceName, log)
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}

	gdb, err := db.Connect(cfg.DBDSN)
	if err != nil {
		log.Fatalf("db: %v", err)
	}

	opts := []relay.Option{
		relay.WithLogger(log),
		relay.WithTokenTTL(cfg.TokenTTL),
		relay.WithHistoryLimit(cfg.HistoryLimit),
		relay.WithMetrics(tel),
	}

	// the actor outlives the HTTP server so in-flight requests can finish
	actorCtx, stopActor := context.WithCancel(context.Background())
	defer stopActor()

	pub, err := newPublisher(cfg)
	if err != nil {
		log.Fatalf("events: %v", err)
	}
	if pub != nil {
		defer pub.Close()
		fwd := events.NewForwarder(pub, 1024, log)
		go fwd.Run(actorCtx)
		opts = append(opts, relay.WithEvents(fwd))
		log.WithField("backend", cfg.EventsBackend).Info("domain events enabled")
	}

	actor := relay.New(chat.NewRepo(gdb), auth.NewSigner(cfg.JWTSecret), opts...)
	actorDone := make(chan struct{})
	go func() {
		defer close(actorDone)
		if err := actor.Run(actorCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.WithError(err).Error("storage actor stopped")
		}
	}()

	provider, err := newRegistry(cfg).Get(ctx, cfg.AIProvider, "")
	if err != nil {
		log.Fatalf("ai provider: %v", err)
	}
	chatSvc := chat.NewService(ai.NewCompletion(provider, log), cfg.ChatContextWindowSize, cfg.SystemPrompt, log)

	synth, err := newSynthesizer(ctx, cfg)
	if err != nil {
		log.Fatalf("speech: %v", err)
	}
	blobs, closeBlobs, err := newBlobs(ctx, cfg)
	if err != nil {
		log.Fatalf("audio store: %v", err)
	}
	defer closeBlobs()

	janitor := scheduler.NewJanitor(actor, log)
	if err := janitor.Start(cfg.TokenPurgeSchedule); err != nil {
		log.Fatalf("token janitor: %v", err)
	}
	defer janitor.Stop()

	router := httpapi.NewRouter(httpapi.Deps{
		Actor:   actor,
		ChatSvc: chatSvc,
		Audio:   audio.NewService(synth, blobs, log),
		Metrics: tel.Handler(),
		Log:     log,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	log.WithFields(logrus.Fields{
		"addr":   cfg.HTTPAddr,
		"ai":     cfg.AIProvider,
		"speech": cfg.SpeechProvider,
		"audio":  cfg.AudioBackend,
	}).Info("chat relay listening")

	if err := runServer(ctx, srv); err != nil {
		log.WithError(err).Error("server error")
	}

	stopActor()
	<-actorDone

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := tel.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("telemetry shutdown")
	}
	log.Info("chat relay stopped")
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func newRegistry(cfg config.Config) *ai.Registry {
	reg := ai.NewRegistry()

	reg.Register("ollama", func(ctx context.Context, model string) (ai.Provider, error) {
		m := strings.TrimSpace(model)
		if m == "" {
			m = cfg.OllamaModel
		}
		p := ai.NewOllamaProvider(cfg.OllamaBaseURL, m)
		p.MaxTokens = cfg.AnswerMaxTokens
		return p, nil
	})
	reg.Register("openrouter", func(ctx context.Context, model string) (ai.Provider, error) {
		if cfg.OpenRouterAPIKey == "" {
			return nil, errors.New("OPENROUTER_API_KEY is empty")
		}
		m := strings.TrimSpace(model)
		if m == "" {
			m = cfg.OpenRouterModel
		}
		p := ai.NewOpenRouterProvider(cfg.OpenRouterBaseURL, cfg.OpenRouterAPIKey, m,
			cfg.OpenRouterSiteURL, cfg.OpenRouterAppName)
		p.MaxTokens = cfg.AnswerMaxTokens
		return p, nil
	})
	reg.Register("openai", func(ctx context.Context, model string) (ai.Provider, error) {
		if cfg.OpenAIAPIKey == "" {
			return nil, errors.New("OPENAI_API_KEY is empty")
		}
		m := strings.TrimSpace(model)
		if m == "" {
			m = cfg.OpenAIModel
		}
		p := ai.NewOpenAIProvider(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, m)
		p.MaxTokens = cfg.AnswerMaxTokens
		return p, nil
	})
	return reg
}

func newSynthesizer(ctx context.Context, cfg config.Config) (speech.Synthesizer, error) {
	switch strings.ToLower(cfg.SpeechProvider) {
	case "google":
		return speech.NewGoogleSynth(ctx, cfg.GoogleAPIKey, cfg.SpeechVoice, cfg.SpeechLanguage)
	case "exec":
		return speech.NewExecSynth(cfg.SpeechCommand, cfg.SpeechVoice, cfg.SpeechLanguage)
	default:
		return speech.NewMockSynth(), nil
	}
}

func newBlobs(ctx context.Context, cfg config.Config) (audio.Blobs, func(), error) {
	if strings.EqualFold(cfg.AudioBackend, "redis") {
		s, err := redisstore.New(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	}
	f, err := audio.NewFileBlobs(cfg.AudioDir)
	if err != nil {
		return nil, nil, err
	}
	return f, func() {}, nil
}

// newPublisher returns nil when events are disabled.
func newPublisher(cfg config.Config) (events.Publisher, error) {
	switch strings.ToLower(cfg.EventsBackend) {
	case "rabbitmq":
		return rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitExchange)
	case "nats":
		return natsbus.NewPublisher(cfg.NATSURL, cfg.NATSSubject)
	default:
		return nil, nil
	}
}
