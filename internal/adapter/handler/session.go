package handler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/core/service"
	"github.com/rl1809/storefront/internal/port"
)

// viewState is the presentation state of one session: which page is shown
// and the advisories not yet delivered to the client.
type viewState struct {
	mu         sync.Mutex
	view       domain.View
	productID  string
	advisories []string
}

func (v *viewState) Advise(message string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.advisories = append(v.advisories, message)
}

func (v *viewState) Navigate(view domain.View) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.view = view
	v.productID = ""
}

func (v *viewState) show(view domain.View, productID string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.view = view
	v.productID = productID
}

func (v *viewState) current() (domain.View, string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.view, v.productID
}

func (v *viewState) drain() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := v.advisories
	v.advisories = nil
	return out
}

// Session is one browsing session: its storefront state and view state.
type Session struct {
	ID         string
	Storefront *service.Storefront

	view     *viewState
	lastSeen time.Time
}

// Sessions creates and tracks browsing sessions. It also relays catalog
// advisories to every live session.
type Sessions struct {
	orders   port.OrderStore
	identity port.IdentityProvider
	logger   *slog.Logger

	mu      sync.Mutex
	catalog *service.CatalogMirror
	byID    map[string]*Session
	now     func() time.Time

	// latest catalog advisory, replayed to new sessions until the catalog
	// loads again
	catalogAdvisory string
}

func NewSessions(orders port.OrderStore, identity port.IdentityProvider, logger *slog.Logger) *Sessions {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sessions{
		orders:   orders,
		identity: identity,
		logger:   logger,
		byID:     make(map[string]*Session),
		now:      time.Now,
	}
}

// UseCatalog sets the mirror shared by all sessions. It must be called
// before the first Resolve.
func (s *Sessions) UseCatalog(catalog *service.CatalogMirror) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.catalog = catalog
}

// Resolve returns the live session id, or starts a new one. A new session
// resumes resumeToken when it is still valid and signs in anonymously
// otherwise.
func (s *Sessions) Resolve(ctx context.Context, id, resumeToken string) *Session {
	s.mu.Lock()
	if sess, ok := s.byID[id]; ok {
		sess.lastSeen = s.now()
		s.mu.Unlock()
		return sess
	}
	catalog := s.catalog
	s.mu.Unlock()

	view := &viewState{view: domain.ViewHome}
	sess := &Session{
		ID:         uuid.NewString(),
		Storefront: service.NewStorefront(catalog, s.orders, s.identity, view, s.logger),
		view:       view,
	}

	// a failed start leaves the session unauthenticated with an advisory
	_ = sess.Storefront.Session.Start(ctx, resumeToken)

	s.mu.Lock()
	if s.catalogAdvisory != "" {
		view.Advise(s.catalogAdvisory)
	}
	sess.lastSeen = s.now()
	s.byID[sess.ID] = sess
	s.mu.Unlock()

	s.logger.Debug("session started", "session_id", sess.ID)
	return sess
}

// Sweep drops sessions idle for longer than maxIdle and returns how many
// were removed.
func (s *Sessions) Sweep(maxIdle time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-maxIdle)
	removed := 0
	for id, sess := range s.byID {
		if sess.lastSeen.Before(cutoff) {
			delete(s.byID, id)
			removed++
		}
	}
	return removed
}

func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}

// Advise delivers a catalog advisory to every live session and keeps it for
// sessions started later.
func (s *Sessions) Advise(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.catalogAdvisory = message
	for _, sess := range s.byID {
		sess.view.Advise(message)
	}
}

// CatalogLoaded drops the kept catalog advisory.
func (s *Sessions) CatalogLoaded() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.catalogAdvisory = ""
}

// Catalog returns the shared catalog mirror.
func (s *Sessions) Catalog() *service.CatalogMirror {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.catalog
}

// Navigate is a no-op: the catalog never changes a session's page.
func (s *Sessions) Navigate(domain.View) {}
