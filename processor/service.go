package processor

import (
    "errors"
    "fmt"
    "io"
    "reflect"
    "strings"
    "time"

    "github.com/go-playground/validator/v10"
    "golang.org/x/exp/slog"

    "github.com/alovak/paysim/internal/apperr"
    "github.com/alovak/paysim/internal/rules"
    "github.com/alovak/paysim/internal/store"
    "github.com/alovak/paysim/processor/models"
)

// Service implements customer and card management and the charge lifecycle on top of a Repository.
type Service struct {
    repo     *Repository
    cfg      *Config
    logger   *slog.Logger
    rules    *rules.Evaluator
    validate *validator.Validate
    now      func() time.Time
}

type Option func(*Service)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
    return func(s *Service) { s.now = now }
}

func WithLogger(logger *slog.Logger) Option {
    return func(s *Service) { s.logger = logger }
}

func WithRules(e *rules.Evaluator) Option {
    return func(s *Service) { s.rules = e }
}

func NewService(repo *Repository, cfg *Config, opts ...Option) *Service {
    if cfg == nil {
        cfg = DefaultConfig()
    }
    s := &Service{
        repo:     repo,
        cfg:      cfg,
        logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
        rules:    rules.Default(),
        validate: newValidator(),
        now:      time.Now,
    }
    for _, opt := range opts {
        opt(s)
    }
    return s
}

// newValidator reports field names as they appear in JSON payloads.
func newValidator() *validator.Validate {
    v := validator.New()
    v.RegisterTagNameFunc(func(f reflect.StructField) string {
        name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
        if name == "-" {
            return ""
        }
        return name
    })
    return v
}

// clock returns the current time at the precision every backend can store.
func (s *Service) clock() time.Time {
    return s.now().UTC().Truncate(time.Microsecond)
}

func (s *Service) page(p models.Page) models.Page {
    return p.Normalize(s.cfg.Charges.DefaultPageSize, s.cfg.Charges.MaxPageSize)
}

func (s *Service) check(v any) error {
    if err := s.validate.Struct(v); err != nil {
        return apperr.FromValidation(err)
    }
    return nil
}

func notFound(err error, resource string) error {
    if errors.Is(err, store.ErrNotFound) {
        return apperr.NotFound(resource)
    }
    return fmt.Errorf("finding %s: %w", resource, err)
}
