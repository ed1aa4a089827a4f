package processor

import (
    "context"
    "database/sql"
    "encoding/json"
    "fmt"
    "time"

    "github.com/alovak/paysim/internal/store"
    "github.com/alovak/paysim/processor/models"
)

// Repository groups the three collections. It is backed either by memory or by a SQL database.
type Repository struct {
    Customers store.Collection[models.Customer]
    Cards     store.Collection[models.Card]
    Charges   store.Collection[models.Charge]

    db      *sql.DB
    dialect store.Dialect
}

func NewRepository() *Repository {
    return &Repository{
        Customers: store.NewMemCollection(customerSchema),
        Cards:     store.NewMemCollection(cardSchema),
        Charges:   store.NewMemCollection(chargeSchema),
    }
}

// NewSQLRepository constructs a db-backed repository. Call Migrate before use.
func NewSQLRepository(db *sql.DB, dialect store.Dialect) *Repository {
    return &Repository{
        Customers: store.NewSQLCollection(db, dialect, customerSchema),
        Cards:     store.NewSQLCollection(db, dialect, cardSchema),
        Charges:   store.NewSQLCollection(db, dialect, chargeSchema),
        db:        db,
        dialect:   dialect,
    }
}

// Migrate creates the tables and indexes when they do not exist.
func (r *Repository) Migrate(ctx context.Context) error {
    if r.db == nil {
        return nil
    }
    stmts, ok := migrations[r.dialect]
    if !ok {
        return fmt.Errorf("no migrations for %s", r.dialect)
    }
    return store.Migrate(ctx, r.db, stmts...)
}

// Ping returns DB readiness
func (r *Repository) Ping(ctx context.Context) error {
    if r.db == nil {
        return nil
    }
    return r.db.PingContext(ctx)
}

func (r *Repository) Close() error {
    if r.db == nil {
        return nil
    }
    return r.db.Close()
}

var migrations = map[store.Dialect][]string{
    store.Postgres: {
        `CREATE TABLE IF NOT EXISTS customers (
            id TEXT PRIMARY KEY,
            name TEXT NOT NULL,
            email TEXT NOT NULL,
            phone TEXT NOT NULL,
            created_at TIMESTAMPTZ NOT NULL,
            updated_at TIMESTAMPTZ NOT NULL
        )`,
        `CREATE UNIQUE INDEX IF NOT EXISTS customers_email_uq ON customers (email)`,
        `CREATE UNIQUE INDEX IF NOT EXISTS customers_phone_uq ON customers (phone)`,
        `CREATE TABLE IF NOT EXISTS cards (
            id TEXT PRIMARY KEY,
            customer_id TEXT NOT NULL REFERENCES customers (id),
            pan_masked TEXT NOT NULL,
            last4 CHAR(4) NOT NULL,
            bin CHAR(6) NOT NULL,
            network TEXT NOT NULL,
            description TEXT NULL,
            created_at TIMESTAMPTZ NOT NULL,
            updated_at TIMESTAMPTZ NOT NULL
        )`,
        `CREATE UNIQUE INDEX IF NOT EXISTS cards_customer_last4_uq ON cards (customer_id, last4)`,
        `CREATE TABLE IF NOT EXISTS charges (
            id TEXT PRIMARY KEY,
            customer_id TEXT NOT NULL,
            card_id TEXT NOT NULL,
            amount NUMERIC(18,2) NOT NULL CHECK (amount > 0),
            currency CHAR(3) NOT NULL,
            description TEXT NOT NULL,
            state TEXT NOT NULL,
            status_message TEXT NOT NULL,
            rejection_reason TEXT NULL,
            refunded BOOLEAN NOT NULL DEFAULT false,
            attempted_at TIMESTAMPTZ NOT NULL,
            due_at TIMESTAMPTZ NULL,
            approved_at TIMESTAMPTZ NULL,
            rejected_at TIMESTAMPTZ NULL,
            refunded_at TIMESTAMPTZ NULL,
            metadata JSONB NOT NULL DEFAULT '{}',
            created_at TIMESTAMPTZ NOT NULL,
            updated_at TIMESTAMPTZ NOT NULL
        )`,
        `CREATE INDEX IF NOT EXISTS charges_customer_attempted_idx ON charges (customer_id, attempted_at DESC)`,
        `CREATE INDEX IF NOT EXISTS charges_card_attempted_idx ON charges (card_id, attempted_at DESC)`,
        `CREATE INDEX IF NOT EXISTS charges_state_due_idx ON charges (state, due_at)`,
    },
    store.SQLite: {
        `CREATE TABLE IF NOT EXISTS customers (
            id TEXT PRIMARY KEY,
            name TEXT NOT NULL,
            email TEXT NOT NULL UNIQUE,
            phone TEXT NOT NULL UNIQUE,
            created_at TIMESTAMP NOT NULL,
            updated_at TIMESTAMP NOT NULL
        )`,
        `CREATE TABLE IF NOT EXISTS cards (
            id TEXT PRIMARY KEY,
            customer_id TEXT NOT NULL,
            pan_masked TEXT NOT NULL,
            last4 TEXT NOT NULL,
            bin TEXT NOT NULL,
            network TEXT NOT NULL,
            description TEXT NULL,
            created_at TIMESTAMP NOT NULL,
            updated_at TIMESTAMP NOT NULL,
            UNIQUE (customer_id, last4)
        )`,
        `CREATE TABLE IF NOT EXISTS charges (
            id TEXT PRIMARY KEY,
            customer_id TEXT NOT NULL,
            card_id TEXT NOT NULL,
            amount TEXT NOT NULL,
            currency TEXT NOT NULL,
            description TEXT NOT NULL,
            state TEXT NOT NULL,
            status_message TEXT NOT NULL,
            rejection_reason TEXT NULL,
            refunded BOOLEAN NOT NULL DEFAULT 0,
            attempted_at TIMESTAMP NOT NULL,
            due_at TIMESTAMP NULL,
            approved_at TIMESTAMP NULL,
            rejected_at TIMESTAMP NULL,
            refunded_at TIMESTAMP NULL,
            metadata TEXT NOT NULL DEFAULT '{}',
            created_at TIMESTAMP NOT NULL,
            updated_at TIMESTAMP NOT NULL
        )`,
        `CREATE INDEX IF NOT EXISTS charges_customer_attempted_idx ON charges (customer_id, attempted_at)`,
        `CREATE INDEX IF NOT EXISTS charges_state_due_idx ON charges (state, due_at)`,
    },
}

var customerSchema = store.Schema[models.Customer]{
    Name:   "customers",
    Key:    "id",
    Fields: []string{"id", "name", "email", "phone", "created_at", "updated_at"},
    Unique: [][]string{{"email"}, {"phone"}},
    Values: func(c models.Customer) []any {
        return []any{c.ID, c.Name, c.Email, c.Phone, c.CreatedAt, c.UpdatedAt}
    },
    Scan: func(scan func(dest ...any) error) (models.Customer, error) {
        var c models.Customer
        err := scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.CreatedAt, &c.UpdatedAt)
        c.CreatedAt, c.UpdatedAt = c.CreatedAt.UTC(), c.UpdatedAt.UTC()
        return c, err
    },
}

var cardSchema = store.Schema[models.Card]{
    Name:   "cards",
    Key:    "id",
    Fields: []string{"id", "customer_id", "pan_masked", "last4", "bin", "network", "description", "created_at", "updated_at"},
    Unique: [][]string{{"customer_id", "last4"}},
    Values: func(c models.Card) []any {
        return []any{c.ID, c.CustomerID, c.PANMasked, c.Last4, c.BIN, c.Network, c.Description, c.CreatedAt, c.UpdatedAt}
    },
    Scan: func(scan func(dest ...any) error) (models.Card, error) {
        var c models.Card
        var desc sql.NullString
        err := scan(&c.ID, &c.CustomerID, &c.PANMasked, &c.Last4, &c.BIN, &c.Network, &desc, &c.CreatedAt, &c.UpdatedAt)
        if desc.Valid {
            c.Description = &desc.String
        }
        c.CreatedAt, c.UpdatedAt = c.CreatedAt.UTC(), c.UpdatedAt.UTC()
        return c, err
    },
    Clone: func(c models.Card) models.Card {
        if c.Description != nil {
            d := *c.Description
            c.Description = &d
        }
        return c
    },
}

var chargeSchema = store.Schema[models.Charge]{
    Name: "charges",
    Key:  "id",
    Fields: []string{
        "id", "customer_id", "card_id", "amount", "currency", "description", "state", "status_message",
        "rejection_reason", "refunded", "attempted_at", "due_at", "approved_at", "rejected_at", "refunded_at",
        "metadata", "created_at", "updated_at",
    },
    Values: func(c models.Charge) []any {
        meta, _ := json.Marshal(c.Metadata)
        if c.Metadata == nil {
            meta = []byte("{}")
        }
        return []any{
            c.ID, c.CustomerID, c.CardID, c.Amount, c.Currency, c.Description, string(c.State), c.StatusMessage,
            c.RejectionReason, c.Refunded, c.AttemptedAt, c.DueAt, c.ApprovedAt, c.RejectedAt, c.RefundedAt,
            string(meta), c.CreatedAt, c.UpdatedAt,
        }
    },
    Scan: func(scan func(dest ...any) error) (models.Charge, error) {
        var (
            c        models.Charge
            state    string
            reason   sql.NullString
            meta     []byte
            due      sql.NullTime
            approved sql.NullTime
            rejected sql.NullTime
            refunded sql.NullTime
        )
        err := scan(
            &c.ID, &c.CustomerID, &c.CardID, &c.Amount, &c.Currency, &c.Description, &state, &c.StatusMessage,
            &reason, &c.Refunded, &c.AttemptedAt, &due, &approved, &rejected, &refunded,
            &meta, &c.CreatedAt, &c.UpdatedAt,
        )
        if err != nil {
            return c, err
        }
        c.State = models.ChargeState(state)
        if reason.Valid {
            c.RejectionReason = &reason.String
        }
        c.DueAt, c.ApprovedAt, c.RejectedAt, c.RefundedAt = nullTime(due), nullTime(approved), nullTime(rejected), nullTime(refunded)
        c.AttemptedAt, c.CreatedAt, c.UpdatedAt = c.AttemptedAt.UTC(), c.CreatedAt.UTC(), c.UpdatedAt.UTC()
        if len(meta) > 0 {
            if err := json.Unmarshal(meta, &c.Metadata); err != nil {
                return c, fmt.Errorf("decoding metadata: %w", err)
            }
        }
        return c, nil
    },
    Clone: func(c models.Charge) models.Charge {
        if c.Metadata != nil {
            // round-trip to get a deep copy of nested values
            b, _ := json.Marshal(c.Metadata)
            var m map[string]any
            if json.Unmarshal(b, &m) == nil {
                c.Metadata = m
            }
        }
        c.DueAt, c.ApprovedAt, c.RejectedAt, c.RefundedAt = copyTime(c.DueAt), copyTime(c.ApprovedAt), copyTime(c.RejectedAt), copyTime(c.RefundedAt)
        if c.RejectionReason != nil {
            r := *c.RejectionReason
            c.RejectionReason = &r
        }
        return c
    },
}

func nullTime(t sql.NullTime) *time.Time {
    if !t.Valid {
        return nil
    }
    v := t.Time.UTC()
    return &v
}

func copyTime(t *time.Time) *time.Time {
    if t == nil {
        return nil
    }
    v := *t
    return &v
}
