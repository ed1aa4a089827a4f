package processor

import (
    "net/http"

    "github.com/go-chi/chi/v5"

    "github.com/alovak/paysim/processor/models"
)

func (a *API) createCustomer(w http.ResponseWriter, r *http.Request) {
    create := models.CreateCustomer{}
    if err := decode(r, &create); err != nil {
        a.fail(w, r, err)
        return
    }

    customer, err := a.svc.CreateCustomer(r.Context(), create)
    if err != nil {
        a.fail(w, r, err)
        return
    }
    a.respond(w, http.StatusCreated, customer)
}

func (a *API) listCustomers(w http.ResponseWriter, r *http.Request) {
    page, err := pageFrom(r)
    if err != nil {
        a.fail(w, r, err)
        return
    }
    customers, err := a.svc.ListCustomers(r.Context(), page)
    if err != nil {
        a.fail(w, r, err)
        return
    }
    a.respond(w, http.StatusOK, customers)
}

func (a *API) getCustomer(w http.ResponseWriter, r *http.Request) {
    customer, err := a.svc.GetCustomer(r.Context(), chi.URLParam(r, "customerID"))
    if err != nil {
        a.fail(w, r, err)
        return
    }
    a.respond(w, http.StatusOK, customer)
}

func (a *API) updateCustomer(w http.ResponseWriter, r *http.Request) {
    var p models.CustomerPatch
    if err := decode(r, &p); err != nil {
        a.fail(w, r, err)
        return
    }
    customer, err := a.svc.UpdateCustomer(r.Context(), chi.URLParam(r, "customerID"), p)
    if err != nil {
        a.fail(w, r, err)
        return
    }
    a.respond(w, http.StatusOK, customer)
}

func (a *API) deleteCustomer(w http.ResponseWriter, r *http.Request) {
    if err := a.svc.DeleteCustomer(r.Context(), chi.URLParam(r, "customerID")); err != nil {
        a.fail(w, r, err)
        return
    }
    w.WriteHeader(http.StatusNoContent)
}

func (a *API) listCustomerCards(w http.ResponseWriter, r *http.Request) {
    page, err := pageFrom(r)
    if err != nil {
        a.fail(w, r, err)
        return
    }
    cards, err := a.svc.ListCustomerCards(r.Context(), chi.URLParam(r, "customerID"), page)
    if err != nil {
        a.fail(w, r, err)
        return
    }
    a.respond(w, http.StatusOK, cards)
}
