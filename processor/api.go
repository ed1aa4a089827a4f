package processor

import (
    "encoding/json"
    "errors"
    "fmt"
    "io"
    "net/http"
    "strconv"

    "github.com/go-chi/chi/v5"
    "golang.org/x/exp/slog"

    "github.com/alovak/paysim/internal/apperr"
    "github.com/alovak/paysim/internal/middleware"
    "github.com/alovak/paysim/processor/models"
)

// API is a HTTP API for the payment simulator
type API struct {
    svc    *Service
    logger *slog.Logger
}

func NewAPI(svc *Service) *API {
    return &API{
        svc:    svc,
        logger: svc.logger,
    }
}

// AppendRoutes mounts the resources on r. Paths keep the public Spanish names.
func (a *API) AppendRoutes(r chi.Router) {
    r.Route("/clientes", func(r chi.Router) {
        r.Get("/", a.listCustomers)
        r.Post("/", a.createCustomer)
        r.Route("/{customerID}", func(r chi.Router) {
            r.Get("/", a.getCustomer)
            r.Put("/", a.updateCustomer)
            r.Patch("/", a.updateCustomer)
            r.Delete("/", a.deleteCustomer)
            r.Get("/tarjetas", a.listCustomerCards)
        })
    })

    r.Route("/tarjetas", func(r chi.Router) {
        r.Get("/", a.listCards)
        r.Post("/", a.createCard)
        r.Post("/generate", a.generateCards)
        r.Route("/{cardID}", func(r chi.Router) {
            r.Get("/", a.getCard)
            r.Put("/", a.updateCard)
            r.Patch("/", a.updateCard)
            r.Delete("/", a.deleteCard)
        })
    })

    r.Post("/tarjetas-prueba/generar", a.generateTestCard)
    r.Get("/sesion", a.session)

    r.Route("/cobros", func(r chi.Router) {
        r.Get("/", a.listCharges)
        r.Post("/", a.createCharge)
        r.Get("/pendientes", a.listPendingCharges)
        r.Post("/expirar", a.expireCharges)
        r.Get("/cliente/{customerID}", a.listCustomerCharges)
        r.Route("/{chargeID}", func(r chi.Router) {
            r.Get("/", a.getCharge)
            r.Post("/reembolso", a.refundCharge)
            r.Post("/aprobar", a.approveCharge)
            r.Post("/rechazar", a.rejectCharge)
        })
    })
}

// decode reads an optional JSON body into v. An empty body leaves v untouched.
func decode(r *http.Request, v any) error {
    if err := json.NewDecoder(r.Body).Decode(v); err != nil {
        if errors.Is(err, io.EOF) {
            return nil
        }
        return apperr.Wrap(err, apperr.KindValidation, fmt.Sprintf("malformed request body: %v", err))
    }
    return nil
}

func (a *API) respond(w http.ResponseWriter, status int, v any) {
    w.Header().Set("Content-Type", "application/json")
    w.WriteHeader(status)
    if v == nil {
        return
    }
    if err := json.NewEncoder(w).Encode(v); err != nil {
        a.logger.Error("encoding response", "err", err)
    }
}

type errorBody struct {
    Code    apperr.Kind    `json:"code"`
    Message string         `json:"message"`
    Details map[string]any `json:"details,omitempty"`
}

func (a *API) fail(w http.ResponseWriter, r *http.Request, err error) {
    e := apperr.FromError(err)
    status := e.StatusCode()
    msg := e.Message
    if status >= http.StatusInternalServerError {
        a.logger.Error("request failed", slog.String("path", r.URL.Path), slog.Any("err", err))
        msg = http.StatusText(status)
    }
    a.respond(w, status, errorBody{Code: e.Kind, Message: msg, Details: e.Details})
}

// session echoes the caller identity resolved by the auth middleware.
func (a *API) session(w http.ResponseWriter, r *http.Request) {
    p, ok := middleware.PrincipalFrom(r.Context())
    if !ok {
        a.respond(w, http.StatusOK, sessionBody{Authenticated: false})
        return
    }
    a.respond(w, http.StatusOK, sessionBody{Subject: p.Subject, Stub: p.Stub, Authenticated: !p.Stub})
}

type sessionBody struct {
    Subject       string `json:"subject,omitempty"`
    Stub          bool   `json:"stub"`
    Authenticated bool   `json:"authenticated"`
}

func pageFrom(r *http.Request) (models.Page, error) {
    var p models.Page
    q := r.URL.Query()
    for name, dst := range map[string]*int{"skip": &p.Skip, "limit": &p.Limit} {
        raw := q.Get(name)
        if raw == "" {
            continue
        }
        n, err := strconv.Atoi(raw)
        if err != nil || n < 0 {
            return p, apperr.Newf(apperr.KindValidation, "%s must be a non-negative integer", name)
        }
        *dst = n
    }
    return p, nil
}
