package processor

import (
    "context"
    "net/http"
    "time"

    "github.com/go-chi/chi/v5"

    "github.com/alovak/paysim/internal/apperr"
    "github.com/alovak/paysim/internal/deadline"
    "github.com/alovak/paysim/processor/models"
)

func (a *API) createCharge(w http.ResponseWriter, r *http.Request) {
    create := models.CreateCharge{}
    if err := decode(r, &create); err != nil {
        a.fail(w, r, err)
        return
    }
    charge, err := a.svc.CreateCharge(r.Context(), create)
    if err != nil {
        a.fail(w, r, err)
        return
    }
    a.respond(w, http.StatusCreated, charge)
}

func (a *API) getCharge(w http.ResponseWriter, r *http.Request) {
    charge, err := a.svc.GetCharge(r.Context(), chi.URLParam(r, "chargeID"))
    if err != nil {
        a.fail(w, r, err)
        return
    }
    a.respond(w, http.StatusOK, charge)
}

// listCharges supports ?state=, ?card_id= and ?customer_id= filters.
func (a *API) listCharges(w http.ResponseWriter, r *http.Request) {
    page, err := pageFrom(r)
    if err != nil {
        a.fail(w, r, err)
        return
    }
    q := r.URL.Query()
    f := ChargeFilter{
        CustomerID: q.Get("customer_id"),
        CardID:     q.Get("card_id"),
        State:      models.ChargeState(q.Get("state")),
    }

    var charges []models.Charge
    if f.CardID != "" && f.CustomerID == "" && f.State == "" {
        charges, err = a.svc.ListChargesByCard(r.Context(), f.CardID, page)
    } else {
        charges, err = a.svc.ListCharges(r.Context(), f, page)
    }
    if err != nil {
        a.fail(w, r, err)
        return
    }
    a.respond(w, http.StatusOK, charges)
}

func (a *API) listCustomerCharges(w http.ResponseWriter, r *http.Request) {
    page, err := pageFrom(r)
    if err != nil {
        a.fail(w, r, err)
        return
    }
    charges, err := a.svc.ListChargesByCustomer(r.Context(), chi.URLParam(r, "customerID"), page)
    if err != nil {
        a.fail(w, r, err)
        return
    }
    a.respond(w, http.StatusOK, charges)
}

// listPendingCharges takes ?within= as a duration ("36h", "2d"); default 24h.
func (a *API) listPendingCharges(w http.ResponseWriter, r *http.Request) {
    within := 24 * time.Hour
    if raw := r.URL.Query().Get("within"); raw != "" {
        d, err := deadline.ParseWindow(raw)
        if err != nil {
            a.fail(w, r, apperr.Wrap(err, apperr.KindValidation, err.Error()))
            return
        }
        within = d
    }
    charges, err := a.svc.ListPendingDue(r.Context(), within)
    if err != nil {
        a.fail(w, r, err)
        return
    }
    a.respond(w, http.StatusOK, charges)
}

func (a *API) refundCharge(w http.ResponseWriter, r *http.Request) {
    req := models.RefundCharge{}
    if err := decode(r, &req); err != nil {
        a.fail(w, r, err)
        return
    }
    if err := a.svc.check(req); err != nil {
        a.fail(w, r, err)
        return
    }
    charge, err := a.svc.Refund(r.Context(), chi.URLParam(r, "chargeID"), req.Reason)
    if err != nil {
        a.fail(w, r, err)
        return
    }
    a.respond(w, http.StatusOK, charge)
}

func (a *API) approveCharge(w http.ResponseWriter, r *http.Request) {
    a.transition(w, r, a.svc.Approve)
}

func (a *API) rejectCharge(w http.ResponseWriter, r *http.Request) {
    a.transition(w, r, a.svc.Reject)
}

func (a *API) transition(w http.ResponseWriter, r *http.Request, apply func(ctx context.Context, id, message string) (*models.Charge, error)) {
    req := models.ChargeTransition{}
    if err := decode(r, &req); err != nil {
        a.fail(w, r, err)
        return
    }
    if err := a.svc.check(req); err != nil {
        a.fail(w, r, err)
        return
    }
    charge, err := apply(r.Context(), chi.URLParam(r, "chargeID"), req.Message)
    if err != nil {
        a.fail(w, r, err)
        return
    }
    a.respond(w, http.StatusOK, charge)
}

// expireCharges runs the overdue sweep on demand.
func (a *API) expireCharges(w http.ResponseWriter, r *http.Request) {
    n, err := a.svc.ExpireOverdue(r.Context())
    if err != nil {
        a.fail(w, r, err)
        return
    }
    a.respond(w, http.StatusOK, models.ExpiredCharges{Expired: n})
}
