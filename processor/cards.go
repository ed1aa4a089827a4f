package processor

import (
    "context"
    "errors"
    "fmt"
    "strings"

    "github.com/google/uuid"
    "golang.org/x/exp/slog"

    "github.com/alovak/paysim/internal/apperr"
    "github.com/alovak/paysim/internal/cardgen"
    "github.com/alovak/paysim/internal/store"
    "github.com/alovak/paysim/processor/models"
)

// CreateCard registers a card for an existing customer. Only the masked PAN,
// last4, BIN and network are kept.
func (s *Service) CreateCard(ctx context.Context, req models.CreateCard) (*models.Card, error) {
    if err := s.check(req); err != nil {
        return nil, err
    }
    if _, err := s.GetCustomer(ctx, req.CustomerID); err != nil {
        return nil, err
    }

    rec, err := cardgen.Build(req.PAN)
    if err != nil {
        if errors.Is(err, cardgen.ErrInvalidCard) {
            return nil, apperr.Wrap(err, apperr.KindValidation, err.Error())
        }
        return nil, fmt.Errorf("building card record: %w", err)
    }

    now := s.clock()
    card := models.Card{
        ID:          uuid.New().String(),
        CustomerID:  req.CustomerID,
        PANMasked:   rec.PANMasked,
        Last4:       rec.Last4,
        BIN:         rec.BIN,
        Network:     rec.Network,
        Description: trimDescription(req.Description),
        CreatedAt:   now,
        UpdatedAt:   now,
    }
    if err := s.repo.Cards.Insert(ctx, card); err != nil {
        if errors.Is(err, store.ErrConflict) {
            return nil, apperr.Conflict(fmt.Sprintf("card ending in %s already registered for this customer", rec.Last4)).WithError(err)
        }
        return nil, fmt.Errorf("creating card: %w", err)
    }

    s.logger.Info("card registered",
        slog.String("card_id", card.ID),
        slog.String("customer_id", card.CustomerID),
        slog.String("pan", card.PANMasked),
        slog.String("network", card.Network),
    )
    return &card, nil
}

func (s *Service) GetCard(ctx context.Context, id string) (*models.Card, error) {
    card, err := s.repo.Cards.Get(ctx, id)
    if err != nil {
        return nil, notFound(err, "card")
    }
    return &card, nil
}

func (s *Service) ListCards(ctx context.Context, page models.Page) ([]models.Card, error) {
    return s.findCards(ctx, nil, page)
}

func (s *Service) ListCustomerCards(ctx context.Context, customerID string, page models.Page) ([]models.Card, error) {
    if _, err := s.GetCustomer(ctx, customerID); err != nil {
        return nil, err
    }
    return s.findCards(ctx, []store.Cond{store.Eq("customer_id", customerID)}, page)
}

func (s *Service) findCards(ctx context.Context, where []store.Cond, page models.Page) ([]models.Card, error) {
    page = s.page(page)
    cards, err := s.repo.Cards.Find(ctx, store.Query{
        Where:   where,
        OrderBy: []store.Sort{store.Asc("created_at"), store.Asc("id")},
        Skip:    page.Skip,
        Limit:   page.Limit,
    })
    if err != nil {
        return nil, fmt.Errorf("listing cards: %w", err)
    }
    return cards, nil
}

// UpdateCard changes the description only; PAN-derived fields are immutable.
func (s *Service) UpdateCard(ctx context.Context, id string, p models.CardPatch) (*models.Card, error) {
    current, err := s.GetCard(ctx, id)
    if err != nil {
        return nil, err
    }
    updated, changed := mergeCard(*current, p)
    if !changed {
        return current, nil
    }
    if updated.Description != nil && len(*updated.Description) > 255 {
        return nil, apperr.Validation("description must be at most 255")
    }

    updated.UpdatedAt = s.clock()
    if err := s.repo.Cards.Save(ctx, updated); err != nil {
        if errors.Is(err, store.ErrNotFound) {
            return nil, apperr.NotFound("card")
        }
        return nil, fmt.Errorf("updating card: %w", err)
    }
    return &updated, nil
}

func mergeCard(base models.Card, p models.CardPatch) (models.Card, bool) {
    if !p.Description.ApplyPtr(&base.Description) {
        return base, false
    }
    base.Description = trimDescription(base.Description)
    return base, true
}

// DeleteCard refuses while any charge references the card.
func (s *Service) DeleteCard(ctx context.Context, id string) error {
    if _, err := s.GetCard(ctx, id); err != nil {
        return err
    }
    charges, err := s.repo.Charges.Count(ctx, store.Eq("card_id", id))
    if err != nil {
        return fmt.Errorf("counting charges: %w", err)
    }
    if charges > 0 {
        return apperr.Conflict("card is referenced by charges").WithDetails(map[string]any{"charges": charges})
    }

    deleted, err := s.repo.Cards.Delete(ctx, id)
    if err != nil {
        return fmt.Errorf("deleting card: %w", err)
    }
    if !deleted {
        return apperr.NotFound("card")
    }
    s.logger.Info("card deleted", slog.String("card_id", id))
    return nil
}

func trimDescription(d *string) *string {
    if d == nil {
        return nil
    }
    v := strings.TrimSpace(*d)
    return &v
}
