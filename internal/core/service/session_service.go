package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/port"
)

// SessionService tracks the principal of one browsing session. Register,
// Login and Logout are pass-throughs to the identity provider; a failed call
// changes nothing locally.
type SessionService struct {
	provider  port.IdentityProvider
	cart      *CartService
	presenter port.Presenter
	logger    *slog.Logger

	mu        sync.Mutex
	principal *domain.Principal
	watchers  map[int]chan *domain.Principal
	nextWatch int
}

// NewSessionService creates an unauthenticated session. cart, when set, is
// cleared on logout.
func NewSessionService(provider port.IdentityProvider, cart *CartService, presenter port.Presenter, logger *slog.Logger) *SessionService {
	if presenter == nil {
		presenter = port.NopPresenter{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionService{
		provider:  provider,
		cart:      cart,
		presenter: presenter,
		logger:    logger,
		watchers:  make(map[int]chan *domain.Principal),
	}
}

// Start resumes the session that owns resumeToken, or signs in anonymously
// when there is nothing to resume.
func (s *SessionService) Start(ctx context.Context, resumeToken string) error {
	if resumeToken != "" {
		p, err := s.provider.ResumeSession(ctx, resumeToken)
		if err == nil {
			s.setPrincipal(p)
			return nil
		}
		s.logger.Info("session not resumable, signing in anonymously", "error", err)
	}

	p, err := s.provider.CreateAnonymousSession(ctx)
	if err != nil {
		s.logger.Error("initial sign-in failed", "error", err)
		s.presenter.Advise(msgSignInFailed)
		return fmt.Errorf("anonymous sign-in: %w", err)
	}

	s.setPrincipal(p)
	return nil
}

func (s *SessionService) Register(ctx context.Context, email, password string) (*domain.Principal, error) {
	p, err := s.provider.RegisterPrincipal(ctx, email, password)
	if err != nil {
		s.logger.Info("registration failed", "email", email, "error", err)
		s.presenter.Advise("Registration failed: " + err.Error())
		return nil, err
	}

	s.setPrincipal(p)
	s.presenter.Advise(msgRegistered)
	s.presenter.Navigate(domain.ViewHome)
	return p, nil
}

func (s *SessionService) Login(ctx context.Context, email, password string) (*domain.Principal, error) {
	p, err := s.provider.CreateSession(ctx, email, password)
	if err != nil {
		s.logger.Info("login failed", "email", email, "error", err)
		s.presenter.Advise("Login failed: " + err.Error())
		return nil, err
	}

	s.setPrincipal(p)
	s.presenter.Advise(msgLoggedIn)
	s.presenter.Navigate(domain.ViewHome)
	return p, nil
}

// Logout ends the session and empties the cart.
func (s *SessionService) Logout(ctx context.Context) error {
	if p := s.Principal(); p != nil {
		if err := s.provider.EndSession(ctx, p); err != nil {
			s.logger.Error("logout failed", "principal", p.ID, "error", err)
			s.presenter.Advise("Logout failed: " + err.Error())
			return err
		}
	}

	s.setPrincipal(nil)
	if s.cart != nil {
		s.cart.Clear()
	}
	s.presenter.Advise(msgLoggedOut)
	s.presenter.Navigate(domain.ViewHome)
	return nil
}

// Principal returns a copy of the signed-in principal, or nil.
func (s *SessionService) Principal() *domain.Principal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return clonePrincipal(s.principal)
}

// Subscribe returns a channel carrying the current principal and then every
// change. Only the latest undelivered value is kept. cancel closes the
// channel.
func (s *SessionService) Subscribe() (<-chan *domain.Principal, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextWatch
	s.nextWatch++
	ch := make(chan *domain.Principal, 1)
	ch <- clonePrincipal(s.principal)
	s.watchers[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.watchers, id)
			close(ch)
		})
	}
	return ch, cancel
}

func (s *SessionService) setPrincipal(p *domain.Principal) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.principal = clonePrincipal(p)
	for _, ch := range s.watchers {
		select {
		case <-ch:
		default:
		}
		ch <- clonePrincipal(p)
	}

	if p == nil {
		s.logger.Info("principal changed", "principal", "none")
		return
	}
	s.logger.Info("principal changed", "principal", p.ID, "kind", p.Kind)
}

func clonePrincipal(p *domain.Principal) *domain.Principal {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}
