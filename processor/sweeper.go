package processor

import (
    "context"
    "time"

    "github.com/robfig/cron/v3"
    "golang.org/x/exp/slog"
)

// Sweeper periodically expires overdue PENDING charges.
type Sweeper struct {
    cron    *cron.Cron
    svc     *Service
    logger  *slog.Logger
    timeout time.Duration
}

func NewSweeper(svc *Service, cfg SweepConfig, logger *slog.Logger) (*Sweeper, error) {
    s := &Sweeper{
        cron:    cron.New(),
        svc:     svc,
        logger:  logger.With(slog.String("component", "sweeper")),
        timeout: cfg.Timeout,
    }
    if s.timeout <= 0 {
        s.timeout = 30 * time.Second
    }
    if _, err := s.cron.AddFunc(cfg.Schedule, s.Run); err != nil {
        return nil, err
    }
    return s, nil
}

func (s *Sweeper) Start() {
    s.cron.Start()
}

// Stop waits for a running sweep to finish.
func (s *Sweeper) Stop() {
    <-s.cron.Stop().Done()
}

// Run performs one sweep.
func (s *Sweeper) Run() {
    ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
    defer cancel()

    n, err := s.svc.ExpireOverdue(ctx)
    if err != nil {
        s.logger.Error("sweeping overdue charges", "err", err)
        return
    }
    s.logger.Debug("sweep finished", slog.Int("expired", n))
}
