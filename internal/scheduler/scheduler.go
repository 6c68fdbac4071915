package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/suPer8Hu/chat-relay/internal/relay"
)

// Submitter accepts fire-and-forget requests; *relay.Actor implements it.
type Submitter interface {
	Submit(ctx context.Context, req relay.Request) error
}

// Janitor periodically asks the actor to drop expired tokens.
type Janitor struct {
	cron   *cron.Cron
	target Submitter
	log    logrus.FieldLogger
	ctx    context.Context
	cancel context.CancelFunc
}

func NewJanitor(target Submitter, log logrus.FieldLogger) *Janitor {
	ctx, cancel := context.WithCancel(context.Background())
	return &Janitor{
		cron:   cron.New(cron.WithLocation(time.UTC)),
		target: target,
		log:    log,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start schedules the purge with a cron spec such as "@hourly".
func (j *Janitor) Start(spec string) error {
	if _, err := j.cron.AddFunc(spec, j.Purge); err != nil {
		return err
	}
	j.cron.Start()
	j.log.WithField("schedule", spec).Info("token janitor started")
	return nil
}

func (j *Janitor) Purge() {
	ctx, cancel := context.WithTimeout(j.ctx, 5*time.Second)
	defer cancel()
	if err := j.target.Submit(ctx, relay.PurgeExpiredTokens{}); err != nil {
		j.log.WithError(err).Warn("token purge not submitted")
	}
}

func (j *Janitor) Stop() {
	<-j.cron.Stop().Done()
	j.cancel()
	j.log.Info("token janitor stopped")
}
