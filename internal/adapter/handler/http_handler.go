package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/core/service"
	"github.com/rl1809/storefront/internal/port"
)

const (
	SessionHeader = "X-Session-ID"
	TokenHeader   = "X-Session-Token"
)

type sessionKey struct{}

var errNoConfirmedOrder = errors.New("no order placed in this session")

type HTTPHandler struct {
	sessions *Sessions
	logger   *slog.Logger
}

// Envelope wraps every API response with the session's presentation state.
type Envelope struct {
	SessionID  string      `json:"session_id"`
	View       domain.View `json:"view"`
	ProductID  string      `json:"product_id,omitempty"`
	Advisories []string    `json:"advisories,omitempty"`
	Data       any         `json:"data,omitempty"`
	Error      string      `json:"error,omitempty"`
}

type CartLineResponse struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Price     string `json:"price"`
	ImageURL  string `json:"image_url"`
	Quantity  int    `json:"quantity"`
	Subtotal  string `json:"subtotal"`
}

type CartResponse struct {
	Lines []CartLineResponse `json:"lines"`
	Total string             `json:"total"`
}

type SessionResponse struct {
	Principal  *domain.Principal `json:"principal"`
	Token      string            `json:"token,omitempty"`
	OrderState string            `json:"order_state"`
}

type AddItemHTTPRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type UpdateQuantityHTTPRequest struct {
	Quantity int `json:"quantity"`
}

type CredentialsHTTPRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type ViewHTTPRequest struct {
	View      domain.View `json:"view"`
	ProductID string      `json:"product_id"`
}

func NewHTTPHandler(sessions *Sessions, logger *slog.Logger) *HTTPHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPHandler{sessions: sessions, logger: logger}
}

// Routes builds the router serving the storefront API.
func (h *HTTPHandler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(h.requestLogger)

	r.Get("/health", h.HealthCheck)

	r.Route("/api", func(r chi.Router) {
		r.Use(h.withSession)

		r.Get("/products", h.ListProducts)
		r.Get("/products/{id}", h.GetProduct)

		r.Get("/cart", h.GetCart)
		r.Post("/cart/items", h.AddItem)
		r.Put("/cart/items/{id}", h.UpdateQuantity)
		r.Delete("/cart/items/{id}", h.RemoveItem)

		r.Post("/checkout", h.Checkout)
		r.Get("/confirmation", h.GetConfirmation)
		r.Get("/orders", h.ListOrders)
		r.Get("/orders/{id}", h.GetOrder)

		r.Get("/session", h.GetSession)
		r.Post("/auth/register", h.Register)
		r.Post("/auth/login", h.Login)
		r.Post("/auth/logout", h.Logout)

		r.Put("/view", h.SetView)
	})
	return r
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	catalog := "loading"
	if m := h.sessions.Catalog(); m != nil {
		select {
		case <-m.Ready():
			catalog = "ready"
		default:
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "catalog": catalog})
}

func (h *HTTPHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	h.respond(w, sess, http.StatusOK, sess.Storefront.Catalog.Products(), nil)
}

func (h *HTTPHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	p, ok := sess.Storefront.Catalog.Product(chi.URLParam(r, "id"))
	if !ok {
		h.respond(w, sess, http.StatusNotFound, nil, service.ErrProductNotFound)
		return
	}
	h.respond(w, sess, http.StatusOK, p, nil)
}

func (h *HTTPHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	h.respond(w, sess, http.StatusOK, cartResponse(sess.Storefront.Cart.Cart()), nil)
}

func (h *HTTPHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())

	var req AddItemHTTPRequest
	if !h.decode(w, r, sess, &req) {
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	if err := sess.Storefront.AddToCart(req.ProductID, req.Quantity); err != nil {
		h.respond(w, sess, statusFor(err), nil, err)
		return
	}
	h.respond(w, sess, http.StatusOK, cartResponse(sess.Storefront.Cart.Cart()), nil)
}

func (h *HTTPHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())

	var req UpdateQuantityHTTPRequest
	if !h.decode(w, r, sess, &req) {
		return
	}

	sess.Storefront.Cart.UpdateQuantity(chi.URLParam(r, "id"), req.Quantity)
	h.respond(w, sess, http.StatusOK, cartResponse(sess.Storefront.Cart.Cart()), nil)
}

func (h *HTTPHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	sess.Storefront.Cart.RemoveItem(chi.URLParam(r, "id"))
	h.respond(w, sess, http.StatusOK, cartResponse(sess.Storefront.Cart.Cart()), nil)
}

func (h *HTTPHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	order, err := sess.Storefront.PlaceOrder(r.Context())
	if err != nil {
		h.respond(w, sess, statusFor(err), nil, err)
		return
	}
	h.respond(w, sess, http.StatusCreated, order, nil)
}

// GetConfirmation returns the order this session placed last.
func (h *HTTPHandler) GetConfirmation(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	order, ok := sess.Storefront.Orders.LastOrder()
	if !ok {
		h.respond(w, sess, http.StatusNotFound, nil, errNoConfirmedOrder)
		return
	}
	h.respond(w, sess, http.StatusOK, order, nil)
}

func (h *HTTPHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	orders, err := sess.Storefront.Orders.History(r.Context())
	if err != nil {
		h.respond(w, sess, statusFor(err), nil, err)
		return
	}
	h.respond(w, sess, http.StatusOK, orders, nil)
}

func (h *HTTPHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	order, err := sess.Storefront.Orders.Order(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respond(w, sess, statusFor(err), nil, err)
		return
	}
	h.respond(w, sess, http.StatusOK, order, nil)
}

func (h *HTTPHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	h.respond(w, sess, http.StatusOK, sessionResponse(sess), nil)
}

func (h *HTTPHandler) Register(w http.ResponseWriter, r *http.Request) {
	h.authenticate(w, r, sessionFrom(r.Context()).Storefront.Session.Register)
}

func (h *HTTPHandler) Login(w http.ResponseWriter, r *http.Request) {
	h.authenticate(w, r, sessionFrom(r.Context()).Storefront.Session.Login)
}

func (h *HTTPHandler) authenticate(w http.ResponseWriter, r *http.Request, fn func(context.Context, string, string) (*domain.Principal, error)) {
	sess := sessionFrom(r.Context())

	var req CredentialsHTTPRequest
	if !h.decode(w, r, sess, &req) {
		return
	}

	if _, err := fn(r.Context(), req.Email, req.Password); err != nil {
		h.respond(w, sess, statusFor(err), nil, err)
		return
	}
	h.respond(w, sess, http.StatusOK, sessionResponse(sess), nil)
}

func (h *HTTPHandler) Logout(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	if err := sess.Storefront.Session.Logout(r.Context()); err != nil {
		h.respond(w, sess, statusFor(err), nil, err)
		return
	}
	h.respond(w, sess, http.StatusOK, sessionResponse(sess), nil)
}

func (h *HTTPHandler) SetView(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())

	var req ViewHTTPRequest
	if !h.decode(w, r, sess, &req) {
		return
	}
	if !req.View.Valid() {
		h.respond(w, sess, http.StatusBadRequest, nil, errors.New("unknown view"))
		return
	}
	if req.View == domain.ViewProductDetail {
		if _, ok := sess.Storefront.Catalog.Product(req.ProductID); !ok {
			h.respond(w, sess, http.StatusNotFound, nil, service.ErrProductNotFound)
			return
		}
	} else {
		req.ProductID = ""
	}

	sess.view.show(req.View, req.ProductID)
	h.respond(w, sess, http.StatusOK, nil, nil)
}

func (h *HTTPHandler) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := h.sessions.Resolve(r.Context(), r.Header.Get(SessionHeader), r.Header.Get(TokenHeader))
		w.Header().Set(SessionHeader, sess.ID)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, sess)))
	})
}

func (h *HTTPHandler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		h.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func (h *HTTPHandler) decode(w http.ResponseWriter, r *http.Request, sess *Session, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.respond(w, sess, http.StatusBadRequest, nil, errors.New("invalid request body"))
		return false
	}
	return true
}

func (h *HTTPHandler) respond(w http.ResponseWriter, sess *Session, status int, data any, err error) {
	view, productID := sess.view.current()
	env := Envelope{
		SessionID:  sess.ID,
		View:       view,
		ProductID:  productID,
		Advisories: sess.view.drain(),
		Data:       data,
	}
	if err != nil {
		env.Error = err.Error()
		if status >= http.StatusInternalServerError {
			env.Error = "internal error"
			h.logger.Error("request failed", "session_id", sess.ID, "error", err)
		}
	}
	writeJSON(w, status, env)
}

func sessionFrom(ctx context.Context) *Session {
	return ctx.Value(sessionKey{}).(*Session)
}

func sessionResponse(sess *Session) SessionResponse {
	resp := SessionResponse{
		Principal:  sess.Storefront.Session.Principal(),
		OrderState: string(sess.Storefront.Orders.State()),
	}
	if resp.Principal != nil {
		resp.Token = resp.Principal.Token
	}
	return resp
}

func cartResponse(cart domain.Cart) CartResponse {
	lines := cart.Lines()
	resp := CartResponse{
		Lines: make([]CartLineResponse, 0, len(lines)),
		Total: cart.DisplayTotal(),
	}
	for _, l := range lines {
		resp.Lines = append(resp.Lines, CartLineResponse{
			ProductID: l.ProductID,
			Name:      l.Name,
			Price:     l.Price.StringFixed(2),
			ImageURL:  l.ImageURL,
			Quantity:  l.Quantity,
			Subtotal:  l.Subtotal().StringFixed(2),
		})
	}
	return resp
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidQuantity),
		errors.Is(err, port.ErrInvalidEmail),
		errors.Is(err, port.ErrWeakPassword):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrNotSignedIn),
		errors.Is(err, port.ErrInvalidCredentials),
		errors.Is(err, port.ErrSessionExpired):
		return http.StatusUnauthorized
	case errors.Is(err, port.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, service.ErrProductNotFound),
		errors.Is(err, port.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, port.ErrEmailInUse):
		return http.StatusConflict
	case errors.Is(err, service.ErrEmptyCart):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
