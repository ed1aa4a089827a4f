package processor_test

import (
    "context"
    "sync"
    "testing"
    "time"

    "github.com/stretchr/testify/require"

    "github.com/alovak/paysim/internal/cardgen"
    "github.com/alovak/paysim/internal/store"
    "github.com/alovak/paysim/processor"
    "github.com/alovak/paysim/processor/models"
)

type testClock struct {
    mu sync.Mutex
    t  time.Time
}

func newClock() *testClock {
    return &testClock{t: time.Date(2030, time.March, 10, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
    c.mu.Lock()
    defer c.mu.Unlock()
    return c.t
}

func (c *testClock) Advance(d time.Duration) {
    c.mu.Lock()
    defer c.mu.Unlock()
    c.t = c.t.Add(d)
}

// repositories returns a fresh memory and a fresh in-memory SQLite repository.
func repositories(t *testing.T) map[string]*processor.Repository {
    t.Helper()
    ctx := context.Background()

    db, err := store.Open(ctx, store.SQLite, ":memory:", 0, 0)
    require.NoError(t, err)
    sqlRepo := processor.NewSQLRepository(db, store.SQLite)
    require.NoError(t, sqlRepo.Migrate(ctx))
    t.Cleanup(func() { sqlRepo.Close() })

    return map[string]*processor.Repository{
        "memory": processor.NewRepository(),
        "sqlite": sqlRepo,
    }
}

// pan returns a Luhn-valid 16 digit number with the given BIN and last four digits.
func pan(t *testing.T, bin, last4 string) string {
    t.Helper()
    n, err := cardgen.GenerateWithSuffix(bin, last4, 16)
    require.NoError(t, err)
    return n
}

type fixture struct {
    svc      *processor.Service
    repo     *processor.Repository
    clock    *testClock
    customer *models.Customer
    // even last4, regular BIN: every charge under the limit is approved
    card *models.Card
}

func newFixture(t *testing.T, repo *processor.Repository) *fixture {
    t.Helper()
    ctx := context.Background()

    clock := newClock()
    svc := processor.NewService(repo, processor.DefaultConfig(), processor.WithClock(clock.Now))

    customer, err := svc.CreateCustomer(ctx, models.CreateCustomer{
        Name:  "Ana Lopez",
        Email: "ana@example.com",
        Phone: "+525512345678",
    })
    require.NoError(t, err)

    card, err := svc.CreateCard(ctx, models.CreateCard{
        CustomerID: customer.ID,
        PAN:        pan(t, "424242", "4242"),
    })
    require.NoError(t, err)

    return &fixture{svc: svc, repo: repo, clock: clock, customer: customer, card: card}
}

func (f *fixture) addCard(t *testing.T, bin, last4 string) *models.Card {
    t.Helper()
    card, err := f.svc.CreateCard(context.Background(), models.CreateCard{
        CustomerID: f.customer.ID,
        PAN:        pan(t, bin, last4),
    })
    require.NoError(t, err)
    return card
}

// insertPending stores a PENDING charge directly; no public operation creates one.
func (f *fixture) insertPending(t *testing.T, id string, due time.Time) {
    t.Helper()
    now := f.clock.Now()
    require.NoError(t, f.repo.Charges.Insert(context.Background(), models.Charge{
        ID:            id,
        CustomerID:    f.customer.ID,
        CardID:        f.card.ID,
        Amount:        decimalFromString(t, "75.00"),
        Currency:      "MXN",
        Description:   "awaiting review",
        State:         models.ChargeStatePending,
        StatusMessage: "pending review",
        AttemptedAt:   now,
        DueAt:         &due,
        CreatedAt:     now,
        UpdatedAt:     now,
    }))
}
