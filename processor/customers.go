package processor

import (
    "context"
    "errors"
    "fmt"
    "strings"

    "github.com/google/uuid"
    "golang.org/x/exp/slog"

    "github.com/alovak/paysim/internal/apperr"
    "github.com/alovak/paysim/internal/store"
    "github.com/alovak/paysim/processor/models"
)

func (s *Service) CreateCustomer(ctx context.Context, req models.CreateCustomer) (*models.Customer, error) {
    req = normalizeCustomer(req)
    if err := s.check(req); err != nil {
        return nil, err
    }

    now := s.clock()
    customer := models.Customer{
        ID:        uuid.New().String(),
        Name:      req.Name,
        Email:     req.Email,
        Phone:     req.Phone,
        CreatedAt: now,
        UpdatedAt: now,
    }
    if err := s.repo.Customers.Insert(ctx, customer); err != nil {
        return nil, s.customerConflict(ctx, customer, err)
    }

    s.logger.Info("customer created", slog.String("customer_id", customer.ID))
    return &customer, nil
}

func (s *Service) GetCustomer(ctx context.Context, id string) (*models.Customer, error) {
    customer, err := s.repo.Customers.Get(ctx, id)
    if err != nil {
        return nil, notFound(err, "customer")
    }
    return &customer, nil
}

func (s *Service) ListCustomers(ctx context.Context, page models.Page) ([]models.Customer, error) {
    page = s.page(page)
    customers, err := s.repo.Customers.Find(ctx, store.Query{
        OrderBy: []store.Sort{store.Asc("created_at"), store.Asc("id")},
        Skip:    page.Skip,
        Limit:   page.Limit,
    })
    if err != nil {
        return nil, fmt.Errorf("listing customers: %w", err)
    }
    return customers, nil
}

// UpdateCustomer applies a sparse patch. Keys absent from the payload keep their
// stored value; an explicit null is rejected because every customer field is required.
func (s *Service) UpdateCustomer(ctx context.Context, id string, p models.CustomerPatch) (*models.Customer, error) {
    for name, null := range map[string]bool{"name": p.Name.IsNull(), "email": p.Email.IsNull(), "phone": p.Phone.IsNull()} {
        if null {
            return nil, apperr.Validation(name + " cannot be null")
        }
    }

    current, err := s.GetCustomer(ctx, id)
    if err != nil {
        return nil, err
    }
    updated, changed := mergeCustomer(*current, p)
    if !changed {
        return current, nil
    }
    if err := s.check(models.CreateCustomer{Name: updated.Name, Email: updated.Email, Phone: updated.Phone}); err != nil {
        return nil, err
    }

    updated.UpdatedAt = s.clock()
    if err := s.repo.Customers.Save(ctx, updated); err != nil {
        if errors.Is(err, store.ErrNotFound) {
            return nil, apperr.NotFound("customer")
        }
        return nil, s.customerConflict(ctx, updated, err)
    }
    return &updated, nil
}

// mergeCustomer returns base with every present patch field overridden.
func mergeCustomer(base models.Customer, p models.CustomerPatch) (models.Customer, bool) {
    changed := p.Name.Apply(&base.Name)
    changed = p.Email.Apply(&base.Email) || changed
    changed = p.Phone.Apply(&base.Phone) || changed
    if !changed {
        return base, false
    }
    n := normalizeCustomer(models.CreateCustomer{Name: base.Name, Email: base.Email, Phone: base.Phone})
    base.Name, base.Email, base.Phone = n.Name, n.Email, n.Phone
    return base, true
}

// DeleteCustomer refuses to remove a customer that still owns cards or has charges.
func (s *Service) DeleteCustomer(ctx context.Context, id string) error {
    if _, err := s.GetCustomer(ctx, id); err != nil {
        return err
    }

    cards, err := s.repo.Cards.Count(ctx, store.Eq("customer_id", id))
    if err != nil {
        return fmt.Errorf("counting cards: %w", err)
    }
    charges, err := s.repo.Charges.Count(ctx, store.Eq("customer_id", id))
    if err != nil {
        return fmt.Errorf("counting charges: %w", err)
    }
    if cards > 0 || charges > 0 {
        return apperr.Conflict("customer still has cards or charges").
            WithDetails(map[string]any{"cards": cards, "charges": charges})
    }

    deleted, err := s.repo.Customers.Delete(ctx, id)
    if err != nil {
        return fmt.Errorf("deleting customer: %w", err)
    }
    if !deleted {
        return apperr.NotFound("customer")
    }
    s.logger.Info("customer deleted", slog.String("customer_id", id))
    return nil
}

func normalizeCustomer(req models.CreateCustomer) models.CreateCustomer {
    req.Name = strings.TrimSpace(req.Name)
    req.Email = strings.ToLower(strings.TrimSpace(req.Email))
    req.Phone = strings.TrimSpace(req.Phone)
    return req
}

// customerConflict names the duplicated field when the store rejects a write on a unique index.
func (s *Service) customerConflict(ctx context.Context, c models.Customer, err error) error {
    if !errors.Is(err, store.ErrConflict) {
        return fmt.Errorf("saving customer: %w", err)
    }
    if other, ferr := s.repo.Customers.FindOne(ctx, store.Eq("email", c.Email)); ferr == nil && other.ID != c.ID {
        return apperr.Conflict("email already registered").WithError(err)
    }
    if other, ferr := s.repo.Customers.FindOne(ctx, store.Eq("phone", c.Phone)); ferr == nil && other.ID != c.ID {
        return apperr.Conflict("phone already registered").WithError(err)
    }
    return apperr.Conflict("customer already exists").WithError(err)
}
