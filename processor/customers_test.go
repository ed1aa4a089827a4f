package processor_test

import (
    "context"
    "encoding/json"
    "testing"
    "time"

    "github.com/shopspring/decimal"
    "github.com/stretchr/testify/require"

    "github.com/alovak/paysim/internal/apperr"
    "github.com/alovak/paysim/internal/cardgen"
    "github.com/alovak/paysim/processor/models"
)

func TestCustomers(t *testing.T) {
    ctx := context.Background()

    for name, repo := range repositories(t) {
        repo := repo
        t.Run(name, func(t *testing.T) {
            f := newFixture(t, repo)

            t.Run("email is normalized and unique", func(t *testing.T) {
                _, err := f.svc.CreateCustomer(ctx, models.CreateCustomer{Name: "Ana 2", Email: "  ANA@example.com ", Phone: "+525500000001"})
                require.True(t, apperr.Is(err, apperr.KindConflict), err)
                require.Contains(t, err.Error(), "email")
            })

            t.Run("phone is unique", func(t *testing.T) {
                _, err := f.svc.CreateCustomer(ctx, models.CreateCustomer{Name: "Ana 3", Email: "ana3@example.com", Phone: f.customer.Phone})
                require.True(t, apperr.Is(err, apperr.KindConflict), err)
                require.Contains(t, err.Error(), "phone")
            })

            t.Run("invalid payload", func(t *testing.T) {
                _, err := f.svc.CreateCustomer(ctx, models.CreateCustomer{Name: "", Email: "not-an-email", Phone: "1"})
                require.True(t, apperr.Is(err, apperr.KindValidation), err)

                e, ok := apperr.As(err)
                require.True(t, ok)
                require.Contains(t, e.Message, "email")
            })

            t.Run("patch keeps absent fields", func(t *testing.T) {
                var p models.CustomerPatch
                require.NoError(t, json.Unmarshal([]byte(`{"name":"Ana María"}`), &p))

                f.clock.Advance(time.Minute)
                updated, err := f.svc.UpdateCustomer(ctx, f.customer.ID, p)
                require.NoError(t, err)
                require.Equal(t, "Ana María", updated.Name)
                require.Equal(t, f.customer.Email, updated.Email)
                require.Equal(t, f.customer.Phone, updated.Phone)
                require.True(t, updated.UpdatedAt.After(f.customer.UpdatedAt))

                stored, err := f.svc.GetCustomer(ctx, f.customer.ID)
                require.NoError(t, err)
                require.Equal(t, "Ana María", stored.Name)
            })

            t.Run("patch rejects null", func(t *testing.T) {
                var p models.CustomerPatch
                require.NoError(t, json.Unmarshal([]byte(`{"email":null}`), &p))
                _, err := f.svc.UpdateCustomer(ctx, f.customer.ID, p)
                require.True(t, apperr.Is(err, apperr.KindValidation), err)
            })

            t.Run("patch to another customer's email", func(t *testing.T) {
                other, err := f.svc.CreateCustomer(ctx, models.CreateCustomer{Name: "Luis", Email: "luis@example.com", Phone: "+525587654321"})
                require.NoError(t, err)

                var p models.CustomerPatch
                require.NoError(t, json.Unmarshal([]byte(`{"email":"ana@example.com"}`), &p))
                _, err = f.svc.UpdateCustomer(ctx, other.ID, p)
                require.True(t, apperr.Is(err, apperr.KindConflict), err)
            })

            t.Run("list in creation order", func(t *testing.T) {
                customers, err := f.svc.ListCustomers(ctx, models.Page{})
                require.NoError(t, err)
                require.Len(t, customers, 2)
                require.Equal(t, f.customer.ID, customers[0].ID)

                customers, err = f.svc.ListCustomers(ctx, models.Page{Skip: 1, Limit: 1})
                require.NoError(t, err)
                require.Len(t, customers, 1)
                require.Equal(t, "luis@example.com", customers[0].Email)
            })

            t.Run("delete is blocked while cards exist", func(t *testing.T) {
                err := f.svc.DeleteCustomer(ctx, f.customer.ID)
                require.True(t, apperr.Is(err, apperr.KindConflict), err)

                e, _ := apperr.As(err)
                require.EqualValues(t, 1, e.Details["cards"])
            })

            t.Run("delete", func(t *testing.T) {
                c, err := f.svc.CreateCustomer(ctx, models.CreateCustomer{Name: "Temp", Email: "temp@example.com", Phone: "+525511112222"})
                require.NoError(t, err)
                require.NoError(t, f.svc.DeleteCustomer(ctx, c.ID))

                _, err = f.svc.GetCustomer(ctx, c.ID)
                require.True(t, apperr.Is(err, apperr.KindNotFound))

                err = f.svc.DeleteCustomer(ctx, c.ID)
                require.True(t, apperr.Is(err, apperr.KindNotFound))
            })
        })
    }
}

func TestCards(t *testing.T) {
    ctx := context.Background()

    for name, repo := range repositories(t) {
        repo := repo
        t.Run(name, func(t *testing.T) {
            f := newFixture(t, repo)

            t.Run("stores only derived fields", func(t *testing.T) {
                desc := "  travel card "
                card, err := f.svc.CreateCard(ctx, models.CreateCard{
                    CustomerID:  f.customer.ID,
                    PAN:         "5555 5555 5555 4444",
                    Description: &desc,
                })
                require.NoError(t, err)
                require.Equal(t, "************4444", card.PANMasked)
                require.Equal(t, "4444", card.Last4)
                require.Equal(t, "555555", card.BIN)
                require.Equal(t, cardgen.NetworkMastercard, card.Network)
                require.Equal(t, "travel card", *card.Description)

                stored, err := f.svc.GetCard(ctx, card.ID)
                require.NoError(t, err)
                require.Equal(t, card.PANMasked, stored.PANMasked)
                require.Equal(t, card.Network, stored.Network)
                require.Equal(t, "travel card", *stored.Description)
                require.True(t, card.CreatedAt.Equal(stored.CreatedAt))
            })

            t.Run("luhn failure", func(t *testing.T) {
                _, err := f.svc.CreateCard(ctx, models.CreateCard{CustomerID: f.customer.ID, PAN: "4111111111111112"})
                require.True(t, apperr.Is(err, apperr.KindValidation), err)
            })

            t.Run("unknown customer", func(t *testing.T) {
                _, err := f.svc.CreateCard(ctx, models.CreateCard{CustomerID: "missing", PAN: "4111111111111111"})
                require.True(t, apperr.Is(err, apperr.KindNotFound), err)
            })

            t.Run("same last4 twice for a customer", func(t *testing.T) {
                _, err := f.svc.CreateCard(ctx, models.CreateCard{CustomerID: f.customer.ID, PAN: pan(t, "411111", "4242")})
                require.True(t, apperr.Is(err, apperr.KindConflict), err)
                require.Contains(t, err.Error(), "4242")
            })

            t.Run("same last4 for another customer", func(t *testing.T) {
                other, err := f.svc.CreateCustomer(ctx, models.CreateCustomer{Name: "Luis", Email: "luis@example.com", Phone: "+525587654321"})
                require.NoError(t, err)
                _, err = f.svc.CreateCard(ctx, models.CreateCard{CustomerID: other.ID, PAN: pan(t, "424242", "4242")})
                require.NoError(t, err)

                cards, err := f.svc.ListCustomerCards(ctx, other.ID, models.Page{})
                require.NoError(t, err)
                require.Len(t, cards, 1)

                all, err := f.svc.ListCards(ctx, models.Page{})
                require.NoError(t, err)
                require.Len(t, all, 3)
            })

            t.Run("description patch", func(t *testing.T) {
                var p models.CardPatch
                require.NoError(t, json.Unmarshal([]byte(`{"description":"groceries"}`), &p))
                card, err := f.svc.UpdateCard(ctx, f.card.ID, p)
                require.NoError(t, err)
                require.Equal(t, "groceries", *card.Description)

                p = models.CardPatch{}
                require.NoError(t, json.Unmarshal([]byte(`{"description":null}`), &p))
                card, err = f.svc.UpdateCard(ctx, f.card.ID, p)
                require.NoError(t, err)
                require.Nil(t, card.Description)

                stored, err := f.svc.GetCard(ctx, f.card.ID)
                require.NoError(t, err)
                require.Nil(t, stored.Description)
                require.Equal(t, f.card.PANMasked, stored.PANMasked)
            })

            t.Run("delete is blocked by charges", func(t *testing.T) {
                _, err := f.svc.CreateCharge(ctx, models.CreateCharge{
                    CustomerID: f.customer.ID, CardID: f.card.ID, Amount: decimal.NewFromInt(1), Description: "gum",
                })
                require.NoError(t, err)

                err = f.svc.DeleteCard(ctx, f.card.ID)
                require.True(t, apperr.Is(err, apperr.KindConflict), err)
            })

            t.Run("delete", func(t *testing.T) {
                card := f.addCard(t, "411111", "8888")
                require.NoError(t, f.svc.DeleteCard(ctx, card.ID))
                _, err := f.svc.GetCard(ctx, card.ID)
                require.True(t, apperr.Is(err, apperr.KindNotFound))
            })
        })
    }
}

func TestGenerateTestCard(t *testing.T) {
    f := newFixture(t, repositories(t)["memory"])

    card, err := f.svc.GenerateTestCard(models.TestCardRequest{})
    require.NoError(t, err)
    require.Len(t, card.Number, 16)
    require.Equal(t, "411111", card.BIN)
    require.True(t, card.Valid)
    require.Equal(t, cardgen.NetworkVisa, card.Network)

    card, err = f.svc.GenerateTestCard(models.TestCardRequest{BIN: "555555", Last4: "1234", Length: 19})
    require.NoError(t, err)
    require.Len(t, card.Number, 19)
    require.Equal(t, "1234", card.Last4)
    require.True(t, cardgen.IsValid(card.Number))

    _, err = f.svc.GenerateTestCard(models.TestCardRequest{BIN: "41x111"})
    require.True(t, apperr.Is(err, apperr.KindValidation))

    _, err = f.svc.GenerateTestCard(models.TestCardRequest{Last4: "12"})
    require.True(t, apperr.Is(err, apperr.KindValidation))

    batch, err := f.svc.GenerateCardNumbers(models.GenerateCards{BIN: "400000", Count: 3})
    require.NoError(t, err)
    require.Len(t, batch.Cards, 3)
    require.Equal(t, 16, batch.Length)
    for _, n := range batch.Cards {
        require.True(t, cardgen.IsValid(n))
    }

    _, err = f.svc.GenerateCardNumbers(models.GenerateCards{BIN: "400000", Count: 51})
    require.True(t, apperr.Is(err, apperr.KindValidation))
}
