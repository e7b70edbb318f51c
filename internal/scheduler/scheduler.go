// Package scheduler runs the periodic maintenance jobs.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/oggyb/luvo/internal/app"
	"github.com/oggyb/luvo/internal/repository"
	"github.com/oggyb/luvo/internal/service/social"
)

const (
	JobPremiumSweep = "premium_sweep"
	JobSocialSync   = "social_sync"

	defaultJobTimeout = 10 * time.Minute
)

// Job is one scheduled unit of work.
type Job struct {
	Name    string
	Spec    string
	Timeout time.Duration
	Run     func(ctx context.Context) error
}

type Scheduler struct {
	appCtx *app.AppContext
	cron   *cron.Cron
	base   context.Context
	cancel context.CancelFunc
	jobs   map[string]Job
}

// New builds a scheduler that parses six-field specs (with seconds) in UTC.
func New(appCtx *app.AppContext) *Scheduler {
	log := cronLogger{l: appCtx.Logger}
	base, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		appCtx: appCtx,
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithSeconds(),
			cron.WithLogger(log),
			cron.WithChain(cron.Recover(log), cron.SkipIfStillRunning(log)),
		),
		base:   base,
		cancel: cancel,
		jobs:   make(map[string]Job),
	}
}

// Register adds j. An empty spec disables the job.
func (s *Scheduler) Register(j Job) error {
	if j.Spec == "" {
		s.appCtx.Logger.Info("job disabled", "job", j.Name)
		return nil
	}
	if _, dup := s.jobs[j.Name]; dup {
		return fmt.Errorf("job %q registered twice", j.Name)
	}
	if _, err := s.cron.AddFunc(j.Spec, func() { s.run(j) }); err != nil {
		return fmt.Errorf("schedule %s %q: %w", j.Name, j.Spec, err)
	}
	s.jobs[j.Name] = j
	return nil
}

// RegisterDefaults adds the premium sweep and, when a connector is
// given, the social re-sync.
func (s *Scheduler) RegisterDefaults(sync *social.Service) error {
	users := repository.NewUserRepository(s.appCtx.DB)
	cfg := s.appCtx.Config

	err := s.Register(Job{
		Name: JobPremiumSweep,
		Spec: cfg.Scheduler.PremiumSweepCron,
		Run: func(ctx context.Context) error {
			n, err := users.ExpirePremiums(ctx, time.Now().UTC())
			if err != nil {
				return err
			}
			if n > 0 {
				s.appCtx.Logger.Info("premiums expired", "count", n)
			}
			return nil
		},
	})
	if err != nil {
		return err
	}

	if sync == nil || cfg.Instagram.ConnectorURL == "" {
		return nil
	}
	return s.Register(Job{
		Name: JobSocialSync,
		Spec: cfg.Instagram.SyncCron,
		Run: func(ctx context.Context) error {
			synced, failed, err := sync.SyncAll(ctx)
			s.appCtx.Logger.Info("instagram resync finished", "synced", synced, "failed", failed)
			return err
		},
	})
}

// RunNow executes a registered job synchronously.
func (s *Scheduler) RunNow(name string) error {
	j, ok := s.jobs[name]
	if !ok {
		return fmt.Errorf("unknown job %q", name)
	}
	return s.run(j)
}

func (s *Scheduler) run(j Job) error {
	timeout := j.Timeout
	if timeout <= 0 {
		timeout = defaultJobTimeout
	}
	ctx, cancel := context.WithTimeout(s.base, timeout)
	defer cancel()

	start := time.Now()
	err := j.Run(ctx)
	status := "ok"
	if err != nil {
		status = "error"
		s.appCtx.Logger.Error("job failed", "job", j.Name, "err", err)
	} else {
		s.appCtx.Logger.Debug("job done", "job", j.Name, "took", time.Since(start))
	}
	s.appCtx.Metrics.JobRuns.WithLabelValues(j.Name, status).Inc()
	return err
}

func (s *Scheduler) Start() { s.cron.Start() }

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error("cron: "+msg, append(keysAndValues, "err", err)...)
}
