package processor

import (
    "net/http"

    "github.com/go-chi/chi/v5"

    "github.com/alovak/paysim/processor/models"
)

func (a *API) createCard(w http.ResponseWriter, r *http.Request) {
    create := models.CreateCard{}
    if err := decode(r, &create); err != nil {
        a.fail(w, r, err)
        return
    }
    card, err := a.svc.CreateCard(r.Context(), create)
    if err != nil {
        a.fail(w, r, err)
        return
    }
    a.respond(w, http.StatusCreated, card)
}

func (a *API) listCards(w http.ResponseWriter, r *http.Request) {
    page, err := pageFrom(r)
    if err != nil {
        a.fail(w, r, err)
        return
    }
    cards, err := a.svc.ListCards(r.Context(), page)
    if err != nil {
        a.fail(w, r, err)
        return
    }
    a.respond(w, http.StatusOK, cards)
}

func (a *API) getCard(w http.ResponseWriter, r *http.Request) {
    card, err := a.svc.GetCard(r.Context(), chi.URLParam(r, "cardID"))
    if err != nil {
        a.fail(w, r, err)
        return
    }
    a.respond(w, http.StatusOK, card)
}

func (a *API) updateCard(w http.ResponseWriter, r *http.Request) {
    var p models.CardPatch
    if err := decode(r, &p); err != nil {
        a.fail(w, r, err)
        return
    }
    card, err := a.svc.UpdateCard(r.Context(), chi.URLParam(r, "cardID"), p)
    if err != nil {
        a.fail(w, r, err)
        return
    }
    a.respond(w, http.StatusOK, card)
}

func (a *API) deleteCard(w http.ResponseWriter, r *http.Request) {
    if err := a.svc.DeleteCard(r.Context(), chi.URLParam(r, "cardID")); err != nil {
        a.fail(w, r, err)
        return
    }
    w.WriteHeader(http.StatusNoContent)
}

func (a *API) generateCards(w http.ResponseWriter, r *http.Request) {
    req := models.GenerateCards{}
    if err := decode(r, &req); err != nil {
        a.fail(w, r, err)
        return
    }
    out, err := a.svc.GenerateCardNumbers(req)
    if err != nil {
        a.fail(w, r, err)
        return
    }
    a.respond(w, http.StatusOK, out)
}

func (a *API) generateTestCard(w http.ResponseWriter, r *http.Request) {
    req := models.TestCardRequest{}
    if err := decode(r, &req); err != nil {
        a.fail(w, r, err)
        return
    }
    card, err := a.svc.GenerateTestCard(req)
    if err != nil {
        a.fail(w, r, err)
        return
    }
    a.respond(w, http.StatusOK, card)
}
