package processor_test

import (
    "context"
    "sync"
    "testing"
    "time"

    "github.com/shopspring/decimal"
    "github.com/stretchr/testify/require"

    "github.com/alovak/paysim/internal/apperr"
    "github.com/alovak/paysim/internal/rules"
    "github.com/alovak/paysim/internal/store"
    "github.com/alovak/paysim/processor/models"
)

func decimalFromString(t *testing.T, s string) decimal.Decimal {
    t.Helper()
    d, err := decimal.NewFromString(s)
    require.NoError(t, err)
    return d
}

func TestCreateCharge(t *testing.T) {
    ctx := context.Background()

    for name, repo := range repositories(t) {
        repo := repo
        t.Run(name, func(t *testing.T) {
            f := newFixture(t, repo)

            charge := func(t *testing.T, card *models.Card, amount string) *models.Charge {
                t.Helper()
                c, err := f.svc.CreateCharge(ctx, models.CreateCharge{
                    CustomerID:  f.customer.ID,
                    CardID:      card.ID,
                    Amount:      decimalFromString(t, amount),
                    Description: "order #1",
                    Metadata:    map[string]any{"order": "A-1"},
                })
                require.NoError(t, err)
                return c
            }

            t.Run("approved", func(t *testing.T) {
                c := charge(t, f.card, "100.00")
                require.Equal(t, models.ChargeStateApproved, c.State)
                require.Equal(t, rules.ReasonApproved, c.StatusMessage)
                require.Equal(t, "MXN", c.Currency)
                require.NotNil(t, c.ApprovedAt)
                require.Nil(t, c.RejectionReason)
                require.False(t, c.Refunded)
                require.True(t, c.AttemptedAt.Equal(f.clock.Now()))
                require.NotNil(t, c.DueAt)

                stored, err := f.svc.GetCharge(ctx, c.ID)
                require.NoError(t, err)
                require.Equal(t, models.ChargeStateApproved, stored.State)
                require.True(t, stored.Amount.Equal(decimal.NewFromInt(100)))
                require.Equal(t, "A-1", stored.Metadata["order"])
            })

            t.Run("over the limit", func(t *testing.T) {
                c := charge(t, f.card, "10000.01")
                require.Equal(t, models.ChargeStateRejected, c.State)
                require.Equal(t, rules.ReasonLimitExceeded, c.StatusMessage)
                require.NotNil(t, c.RejectionReason)
                require.Equal(t, rules.ReasonLimitExceeded, *c.RejectionReason)
                require.NotNil(t, c.RejectedAt)
            })

            t.Run("odd last4", func(t *testing.T) {
                c := charge(t, f.addCard(t, "424242", "1111"), "50")
                require.Equal(t, models.ChargeStateRejected, c.State)
                require.Equal(t, rules.ReasonCardRequirements, c.StatusMessage)
            })

            t.Run("blocked bin", func(t *testing.T) {
                c := charge(t, f.addCard(t, "400000", "0002"), "50")
                require.Equal(t, models.ChargeStateRejected, c.State)
                require.Equal(t, rules.ReasonCardNotSupported, c.StatusMessage)
            })

            t.Run("currency is normalized", func(t *testing.T) {
                c, err := f.svc.CreateCharge(ctx, models.CreateCharge{
                    CustomerID:  f.customer.ID,
                    CardID:      f.card.ID,
                    Amount:      decimal.NewFromInt(5),
                    Currency:    "usd",
                    Description: "coffee",
                })
                require.NoError(t, err)
                require.Equal(t, "USD", c.Currency)
            })
        })
    }
}

func TestCreateChargeFailures(t *testing.T) {
    ctx := context.Background()

    for name, repo := range repositories(t) {
        repo := repo
        t.Run(name, func(t *testing.T) {
            f := newFixture(t, repo)

            other, err := f.svc.CreateCustomer(ctx, models.CreateCustomer{Name: "Luis", Email: "luis@example.com", Phone: "+525587654321"})
            require.NoError(t, err)

            tests := []struct {
                name string
                req  models.CreateCharge
                kind apperr.Kind
            }{
                {"unknown customer", models.CreateCharge{CustomerID: "nope", CardID: f.card.ID, Amount: decimal.NewFromInt(1), Description: "x"}, apperr.KindNotFound},
                {"unknown card", models.CreateCharge{CustomerID: f.customer.ID, CardID: "nope", Amount: decimal.NewFromInt(1), Description: "x"}, apperr.KindNotFound},
                {"card of another customer", models.CreateCharge{CustomerID: other.ID, CardID: f.card.ID, Amount: decimal.NewFromInt(1), Description: "x"}, apperr.KindOwnershipMismatch},
                {"zero amount", models.CreateCharge{CustomerID: f.customer.ID, CardID: f.card.ID, Description: "x"}, apperr.KindValidation},
                {"negative amount", models.CreateCharge{CustomerID: f.customer.ID, CardID: f.card.ID, Amount: decimal.NewFromInt(-5), Description: "x"}, apperr.KindValidation},
                {"sub-cent amount", models.CreateCharge{CustomerID: f.customer.ID, CardID: f.card.ID, Amount: decimalFromString(t, "1.005"), Description: "x"}, apperr.KindValidation},
                {"missing description", models.CreateCharge{CustomerID: f.customer.ID, CardID: f.card.ID, Amount: decimal.NewFromInt(1)}, apperr.KindValidation},
                {"bad currency", models.CreateCharge{CustomerID: f.customer.ID, CardID: f.card.ID, Amount: decimal.NewFromInt(1), Currency: "PESO", Description: "x"}, apperr.KindValidation},
            }
            for _, tt := range tests {
                t.Run(tt.name, func(t *testing.T) {
                    _, err := f.svc.CreateCharge(ctx, tt.req)
                    require.Error(t, err)
                    require.Equal(t, tt.kind, apperr.KindOf(err))
                })
            }

            n, err := repo.Charges.Count(ctx)
            require.NoError(t, err)
            require.Zero(t, n, "failed attempts must not persist charges")
        })
    }
}

func TestRefund(t *testing.T) {
    ctx := context.Background()

    for name, repo := range repositories(t) {
        repo := repo
        t.Run(name, func(t *testing.T) {
            f := newFixture(t, repo)

            approved, err := f.svc.CreateCharge(ctx, models.CreateCharge{
                CustomerID: f.customer.ID, CardID: f.card.ID, Amount: decimal.NewFromInt(250), Description: "shoes",
            })
            require.NoError(t, err)

            f.clock.Advance(time.Hour)
            refunded, err := f.svc.Refund(ctx, approved.ID, "")
            require.NoError(t, err)
            require.Equal(t, models.ChargeStateRefunded, refunded.State)
            require.True(t, refunded.Refunded)
            require.Equal(t, "refund issued", refunded.StatusMessage)
            require.NotNil(t, refunded.RefundedAt)
            require.True(t, refunded.RefundedAt.Equal(f.clock.Now()))

            _, err = f.svc.Refund(ctx, approved.ID, "")
            require.True(t, apperr.Is(err, apperr.KindAlreadyRefunded), err)

            stored, err := f.svc.GetCharge(ctx, approved.ID)
            require.NoError(t, err)
            require.Equal(t, models.ChargeStateRefunded, stored.State)
            require.True(t, stored.Refunded)

            rejected, err := f.svc.CreateCharge(ctx, models.CreateCharge{
                CustomerID: f.customer.ID, CardID: f.card.ID, Amount: decimal.NewFromInt(20000), Description: "car",
            })
            require.NoError(t, err)
            _, err = f.svc.Refund(ctx, rejected.ID, "")
            require.True(t, apperr.Is(err, apperr.KindInvalidState), err)

            _, err = f.svc.Refund(ctx, "missing", "")
            require.True(t, apperr.Is(err, apperr.KindNotFound), err)
        })
    }
}

func TestRefundConcurrent(t *testing.T) {
    ctx := context.Background()

    for name, repo := range repositories(t) {
        repo := repo
        t.Run(name, func(t *testing.T) {
            f := newFixture(t, repo)
            c, err := f.svc.CreateCharge(ctx, models.CreateCharge{
                CustomerID: f.customer.ID, CardID: f.card.ID, Amount: decimal.NewFromInt(10), Description: "race",
            })
            require.NoError(t, err)

            const workers = 8
            var (
                wg        sync.WaitGroup
                mu        sync.Mutex
                successes int
                failures  []error
            )
            for i := 0; i < workers; i++ {
                wg.Add(1)
                go func() {
                    defer wg.Done()
                    _, err := f.svc.Refund(ctx, c.ID, "customer request")
                    mu.Lock()
                    defer mu.Unlock()
                    if err == nil {
                        successes++
                    } else {
                        failures = append(failures, err)
                    }
                }()
            }
            wg.Wait()

            require.Equal(t, 1, successes)
            for _, err := range failures {
                require.True(t, apperr.Is(err, apperr.KindAlreadyRefunded), err)
            }
        })
    }
}

func TestListChargesByCustomer(t *testing.T) {
    ctx := context.Background()

    for name, repo := range repositories(t) {
        repo := repo
        t.Run(name, func(t *testing.T) {
            f := newFixture(t, repo)

            var ids []string
            for i := 0; i < 5; i++ {
                f.clock.Advance(time.Minute)
                c, err := f.svc.CreateCharge(ctx, models.CreateCharge{
                    CustomerID: f.customer.ID, CardID: f.card.ID, Amount: decimal.NewFromInt(int64(10 + i)), Description: "item",
                })
                require.NoError(t, err)
                ids = append(ids, c.ID)
            }

            page, err := f.svc.ListChargesByCustomer(ctx, f.customer.ID, models.Page{Skip: 0, Limit: 2})
            require.NoError(t, err)
            require.Len(t, page, 2)
            require.Equal(t, ids[4], page[0].ID)
            require.Equal(t, ids[3], page[1].ID)

            page, err = f.svc.ListChargesByCustomer(ctx, f.customer.ID, models.Page{Skip: 4, Limit: 2})
            require.NoError(t, err)
            require.Len(t, page, 1)
            require.Equal(t, ids[0], page[0].ID)

            all, err := f.svc.ListChargesByCustomer(ctx, f.customer.ID, models.Page{})
            require.NoError(t, err)
            require.Len(t, all, 5)

            byCard, err := f.svc.ListChargesByCard(ctx, f.card.ID, models.Page{Limit: 3})
            require.NoError(t, err)
            require.Len(t, byCard, 3)

            approved, err := f.svc.ListChargesByState(ctx, models.ChargeStateApproved, models.Page{})
            require.NoError(t, err)
            require.Len(t, approved, 5)

            _, err = f.svc.ListChargesByState(ctx, "LOST", models.Page{})
            require.True(t, apperr.Is(err, apperr.KindValidation))

            _, err = f.svc.ListChargesByCustomer(ctx, "missing", models.Page{})
            require.True(t, apperr.Is(err, apperr.KindNotFound))
        })
    }
}

func TestPendingCharges(t *testing.T) {
    ctx := context.Background()

    for name, repo := range repositories(t) {
        repo := repo
        t.Run(name, func(t *testing.T) {
            f := newFixture(t, repo)
            now := f.clock.Now()

            f.insertPending(t, "due-soon", now.Add(2*time.Hour))
            f.insertPending(t, "due-later", now.Add(48*time.Hour))
            f.insertPending(t, "overdue", now.Add(-time.Minute))

            due, err := f.svc.ListPendingDue(ctx, 24*time.Hour)
            require.NoError(t, err)
            require.Len(t, due, 2)
            require.Equal(t, "overdue", due[0].ID)
            require.Equal(t, "due-soon", due[1].ID)

            t.Run("approve and reject only from pending", func(t *testing.T) {
                c, err := f.svc.Approve(ctx, "due-soon", "")
                require.NoError(t, err)
                require.Equal(t, models.ChargeStateApproved, c.State)
                require.NotNil(t, c.ApprovedAt)

                _, err = f.svc.Reject(ctx, "due-soon", "too late")
                require.True(t, apperr.Is(err, apperr.KindInvalidState), err)

                c, err = f.svc.Reject(ctx, "due-later", "manual review failed")
                require.NoError(t, err)
                require.Equal(t, models.ChargeStateRejected, c.State)
                require.Equal(t, "manual review failed", *c.RejectionReason)
            })

            t.Run("sweep expires overdue", func(t *testing.T) {
                n, err := f.svc.ExpireOverdue(ctx)
                require.NoError(t, err)
                require.Equal(t, 1, n)

                c, err := f.svc.GetCharge(ctx, "overdue")
                require.NoError(t, err)
                require.Equal(t, models.ChargeStateRejected, c.State)
                require.Equal(t, "charge expired", c.StatusMessage)

                n, err = f.svc.ExpireOverdue(ctx)
                require.NoError(t, err)
                require.Zero(t, n)

                pending, err := f.svc.ListPendingDue(ctx, 365*24*time.Hour)
                require.NoError(t, err)
                require.Empty(t, pending)
            })

            _, err = f.svc.ListPendingDue(ctx, -time.Hour)
            require.True(t, apperr.Is(err, apperr.KindValidation))
        })
    }
}

func TestApproveConflictsWithConcurrentWrite(t *testing.T) {
    ctx := context.Background()
    repo := repositories(t)["memory"]
    f := newFixture(t, repo)
    f.insertPending(t, "p-1", f.clock.Now().Add(time.Hour))

    // another writer settles the charge first
    c, err := repo.Charges.Get(ctx, "p-1")
    require.NoError(t, err)
    c.State = models.ChargeStateRejected
    require.NoError(t, repo.Charges.SaveIf(ctx, c, store.Eq("state", string(models.ChargeStatePending))))

    _, err = f.svc.Approve(ctx, "p-1", "ok")
    require.True(t, apperr.Is(err, apperr.KindInvalidState), err)
}
