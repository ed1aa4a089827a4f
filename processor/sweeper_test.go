package processor_test

import (
    "context"
    "io"
    "testing"
    "time"

    "github.com/stretchr/testify/require"
    "golang.org/x/exp/slog"

    "github.com/alovak/paysim/processor"
    "github.com/alovak/paysim/processor/models"
)

func TestSweeper(t *testing.T) {
    f := newFixture(t, processor.NewRepository())
    f.insertPending(t, "stale", f.clock.Now().Add(-time.Second))
    f.insertPending(t, "fresh", f.clock.Now().Add(time.Hour))

    s, err := processor.NewSweeper(f.svc, processor.SweepConfig{Schedule: "@every 1h"}, slog.New(slog.NewTextHandler(io.Discard, nil)))
    require.NoError(t, err)
    s.Run()

    stale, err := f.svc.GetCharge(context.Background(), "stale")
    require.NoError(t, err)
    require.Equal(t, models.ChargeStateRejected, stale.State)

    fresh, err := f.svc.GetCharge(context.Background(), "fresh")
    require.NoError(t, err)
    require.Equal(t, models.ChargeStatePending, fresh.State)

    _, err = processor.NewSweeper(f.svc, processor.SweepConfig{Schedule: "whenever"}, slog.New(slog.NewTextHandler(io.Discard, nil)))
    require.Error(t, err)
}
