package processor

import (
    "context"
    "errors"
    "fmt"
    "strings"
    "time"

    "github.com/google/uuid"
    "golang.org/x/exp/slog"

    "github.com/alovak/paysim/internal/apperr"
    "github.com/alovak/paysim/internal/deadline"
    "github.com/alovak/paysim/internal/rules"
    "github.com/alovak/paysim/internal/store"
    "github.com/alovak/paysim/processor/models"
)

// Status messages recorded by lifecycle transitions other than rule decisions.
const (
    MessageRefunded = "refund issued"
    MessageRejected = "charge rejected"
    MessageExpired  = "charge expired"
)

// ChargeFilter narrows ListCharges. Empty fields do not filter.
type ChargeFilter struct {
    CustomerID string
    CardID     string
    State      models.ChargeState
}

// CreateCharge evaluates the attempt synchronously and persists it as APPROVED
// or REJECTED. Nothing is persisted when a precondition fails.
func (s *Service) CreateCharge(ctx context.Context, req models.CreateCharge) (*models.Charge, error) {
    req.Currency = strings.ToUpper(strings.TrimSpace(req.Currency))
    req.Description = strings.TrimSpace(req.Description)
    if err := s.check(req); err != nil {
        return nil, err
    }
    if !req.Amount.IsPositive() {
        return nil, apperr.Validation("amount must be greater than 0")
    }
    if !req.Amount.Equal(req.Amount.Round(2)) {
        return nil, apperr.Validation("amount supports at most 2 decimal places")
    }
    if req.Currency == "" {
        req.Currency = s.cfg.Charges.DefaultCurrency
    }

    customer, err := s.GetCustomer(ctx, req.CustomerID)
    if err != nil {
        return nil, err
    }
    card, err := s.GetCard(ctx, req.CardID)
    if err != nil {
        return nil, err
    }
    if card.CustomerID != customer.ID {
        return nil, apperr.New(apperr.KindOwnershipMismatch, "card does not belong to customer").
            WithDetails(map[string]any{"customer_id": customer.ID, "card_id": card.ID})
    }

    decision := s.rules.Evaluate(req.Amount, rules.Card{BIN: card.BIN, Last4: card.Last4})

    now := s.clock()
    due := deadline.DueAt(now, s.cfg.Charges.PendingTTL).UTC()
    charge := models.Charge{
        ID:            uuid.New().String(),
        CustomerID:    customer.ID,
        CardID:        card.ID,
        Amount:        req.Amount,
        Currency:      req.Currency,
        Description:   req.Description,
        StatusMessage: decision.Reason,
        AttemptedAt:   now,
        DueAt:         &due,
        Metadata:      req.Metadata,
        CreatedAt:     now,
        UpdatedAt:     now,
    }
    if decision.Approved {
        charge.State = models.ChargeStateApproved
        charge.ApprovedAt = &now
    } else {
        reason := decision.Reason
        charge.State = models.ChargeStateRejected
        charge.RejectedAt = &now
        charge.RejectionReason = &reason
    }

    if err := s.repo.Charges.Insert(ctx, charge); err != nil {
        return nil, fmt.Errorf("creating charge: %w", err)
    }

    s.logger.Info("charge decided",
        slog.String("charge_id", charge.ID),
        slog.String("card_id", card.ID),
        slog.String("last4", card.Last4),
        slog.String("amount", charge.Amount.String()),
        slog.String("currency", charge.Currency),
        slog.String("state", string(charge.State)),
        slog.String("rule", decision.Rule),
    )
    return &charge, nil
}

func (s *Service) GetCharge(ctx context.Context, id string) (*models.Charge, error) {
    charge, err := s.repo.Charges.Get(ctx, id)
    if err != nil {
        return nil, notFound(err, "charge")
    }
    return &charge, nil
}

// ListCharges returns matching charges, newest attempt first.
func (s *Service) ListCharges(ctx context.Context, f ChargeFilter, page models.Page) ([]models.Charge, error) {
    var where []store.Cond
    if f.CustomerID != "" {
        where = append(where, store.Eq("customer_id", f.CustomerID))
    }
    if f.CardID != "" {
        where = append(where, store.Eq("card_id", f.CardID))
    }
    if f.State != "" {
        if !f.State.Valid() {
            return nil, apperr.Newf(apperr.KindValidation, "unknown charge state %q", f.State)
        }
        where = append(where, store.Eq("state", string(f.State)))
    }

    page = s.page(page)
    charges, err := s.repo.Charges.Find(ctx, store.Query{
        Where:   where,
        OrderBy: []store.Sort{store.Desc("attempted_at"), store.Desc("id")},
        Skip:    page.Skip,
        Limit:   page.Limit,
    })
    if err != nil {
        return nil, fmt.Errorf("listing charges: %w", err)
    }
    return charges, nil
}

// ListChargesByCustomer returns the customer's charge history; an unknown customer is NotFound.
func (s *Service) ListChargesByCustomer(ctx context.Context, customerID string, page models.Page) ([]models.Charge, error) {
    if _, err := s.GetCustomer(ctx, customerID); err != nil {
        return nil, err
    }
    return s.ListCharges(ctx, ChargeFilter{CustomerID: customerID}, page)
}

func (s *Service) ListChargesByState(ctx context.Context, state models.ChargeState, page models.Page) ([]models.Charge, error) {
    if state == "" {
        return nil, apperr.Validation("state is required")
    }
    return s.ListCharges(ctx, ChargeFilter{State: state}, page)
}

func (s *Service) ListChargesByCard(ctx context.Context, cardID string, page models.Page) ([]models.Charge, error) {
    if _, err := s.GetCard(ctx, cardID); err != nil {
        return nil, err
    }
    return s.ListCharges(ctx, ChargeFilter{CardID: cardID}, page)
}

// ListPendingDue returns PENDING charges whose due time is at or before now+within, soonest first.
func (s *Service) ListPendingDue(ctx context.Context, within time.Duration) ([]models.Charge, error) {
    if within < 0 {
        return nil, apperr.Validation("within must not be negative")
    }
    horizon := deadline.Horizon(s.clock(), within)
    charges, err := s.repo.Charges.Find(ctx, store.Query{
        Where: []store.Cond{
            store.Eq("state", string(models.ChargeStatePending)),
            store.Lte("due_at", horizon),
        },
        OrderBy: []store.Sort{store.Asc("due_at"), store.Asc("id")},
    })
    if err != nil {
        return nil, fmt.Errorf("listing pending charges: %w", err)
    }
    return charges, nil
}

// Refund moves an APPROVED charge to REFUNDED. The write only lands if the stored
// charge is still APPROVED and not refunded, so concurrent refunds succeed once.
func (s *Service) Refund(ctx context.Context, id, reason string) (*models.Charge, error) {
    charge, err := s.GetCharge(ctx, id)
    if err != nil {
        return nil, err
    }
    if err := refundable(charge); err != nil {
        return nil, err
    }

    now := s.clock()
    updated := *charge
    updated.State = models.ChargeStateRefunded
    updated.Refunded = true
    updated.RefundedAt = &now
    updated.StatusMessage = MessageRefunded
    if r := strings.TrimSpace(reason); r != "" {
        updated.StatusMessage = r
    }
    updated.UpdatedAt = now

    err = s.repo.Charges.SaveIf(ctx, updated,
        store.Eq("state", string(models.ChargeStateApproved)),
        store.Eq("refunded", false),
    )
    if err != nil {
        return nil, s.transitionFailed(ctx, id, err, refundable)
    }

    s.logger.Info("charge refunded", slog.String("charge_id", id), slog.String("amount", updated.Amount.String()))
    return &updated, nil
}

func refundable(c *models.Charge) error {
    if c.Refunded || c.State == models.ChargeStateRefunded {
        return apperr.New(apperr.KindAlreadyRefunded, "charge already refunded")
    }
    if c.State != models.ChargeStateApproved {
        return apperr.Newf(apperr.KindInvalidState, "only APPROVED charges can be refunded (charge is %s)", c.State)
    }
    return nil
}

// Approve moves a PENDING charge to APPROVED.
func (s *Service) Approve(ctx context.Context, id, message string) (*models.Charge, error) {
    if message = strings.TrimSpace(message); message == "" {
        message = rules.ReasonApproved
    }
    return s.decidePending(ctx, id, models.ChargeStateApproved, message)
}

// Reject moves a PENDING charge to REJECTED with reason as its rejection reason.
func (s *Service) Reject(ctx context.Context, id, reason string) (*models.Charge, error) {
    if reason = strings.TrimSpace(reason); reason == "" {
        reason = MessageRejected
    }
    return s.decidePending(ctx, id, models.ChargeStateRejected, reason)
}

func (s *Service) decidePending(ctx context.Context, id string, to models.ChargeState, message string) (*models.Charge, error) {
    charge, err := s.GetCharge(ctx, id)
    if err != nil {
        return nil, err
    }
    if err := pending(charge); err != nil {
        return nil, err
    }

    updated := settle(*charge, to, message, s.clock())
    if err := s.repo.Charges.SaveIf(ctx, updated, store.Eq("state", string(models.ChargeStatePending))); err != nil {
        return nil, s.transitionFailed(ctx, id, err, pending)
    }

    s.logger.Info("pending charge decided", slog.String("charge_id", id), slog.String("state", string(to)))
    return &updated, nil
}

func pending(c *models.Charge) error {
    if c.State != models.ChargeStatePending {
        return apperr.Newf(apperr.KindInvalidState, "only PENDING charges can be decided (charge is %s)", c.State)
    }
    return nil
}

func settle(c models.Charge, to models.ChargeState, message string, now time.Time) models.Charge {
    c.State = to
    c.StatusMessage = message
    c.UpdatedAt = now
    if to == models.ChargeStateApproved {
        c.ApprovedAt = &now
    } else {
        c.RejectedAt = &now
        c.RejectionReason = &message
    }
    return c
}

// transitionFailed explains a conditional write that did not land by re-reading the charge.
func (s *Service) transitionFailed(ctx context.Context, id string, err error, guard func(*models.Charge) error) error {
    switch {
    case errors.Is(err, store.ErrNotFound):
        return apperr.NotFound("charge")
    case !errors.Is(err, store.ErrPrecondition):
        return fmt.Errorf("updating charge: %w", err)
    }
    current, gerr := s.GetCharge(ctx, id)
    if gerr != nil {
        return gerr
    }
    if gerr := guard(current); gerr != nil {
        return gerr
    }
    return apperr.New(apperr.KindInvalidState, "charge changed concurrently").WithError(err)
}

// ExpireOverdue rejects every PENDING charge whose due time has passed and
// returns how many it moved. Charges decided concurrently are skipped.
func (s *Service) ExpireOverdue(ctx context.Context) (int, error) {
    now := s.clock()
    overdue, err := s.repo.Charges.Find(ctx, store.Query{
        Where: []store.Cond{
            store.Eq("state", string(models.ChargeStatePending)),
            store.Lt("due_at", now),
        },
        OrderBy: []store.Sort{store.Asc("due_at")},
    })
    if err != nil {
        return 0, fmt.Errorf("finding overdue charges: %w", err)
    }

    expired := 0
    for _, c := range overdue {
        if c.DueAt == nil || !deadline.IsOverdue(*c.DueAt, now) {
            continue
        }
        updated := settle(c, models.ChargeStateRejected, MessageExpired, now)
        err := s.repo.Charges.SaveIf(ctx, updated, store.Eq("state", string(models.ChargeStatePending)))
        switch {
        case err == nil:
            expired++
        case errors.Is(err, store.ErrPrecondition), errors.Is(err, store.ErrNotFound):
            continue
        default:
            return expired, fmt.Errorf("expiring charge %s: %w", c.ID, err)
        }
    }

    if expired > 0 {
        s.logger.Info("expired overdue charges", slog.Int("count", expired))
    }
    return expired, nil
}
