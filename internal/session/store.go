// Package session owns the authenticated user and bearer token. It is the
// single source of truth for "am I logged in": every auth failure, whether
// from an explicit verify or the pipeline's 401/403 signal, funnels through
// one handler here.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/ququlondon/storefront/internal/api"
	"github.com/ququlondon/storefront/internal/domain"
	"github.com/ququlondon/storefront/internal/storage"
)

const (
	publicRoot = "/"
	loginPath  = "/login"
	adminLogin = "/admin/login"
)

// Navigator abstracts the surface the store redirects through. The CLI
// implements it over its view state; tests implement it with a recorder.
type Navigator interface {
	Navigate(path string)
	CurrentPath() string
}

type EventKind string

const (
	EventSignedIn  EventKind = "signed-in"
	EventSignedOut EventKind = "signed-out"
	EventRefreshed EventKind = "profile-refreshed"
)

// Event tells subscribers what changed, not just that something did.
type Event struct {
	Kind EventKind
	User *domain.User
}

type Store struct {
	client *api.Client
	store  storage.Store
	nav    Navigator
	logger *slog.Logger

	mu      sync.Mutex
	user    *domain.User
	lastErr string
	gen     uint64
	nextSub int
	subs    map[int]func(Event)
}

func NewStore(client *api.Client, store storage.Store, nav Navigator, logger *slog.Logger) *Store {
	s := &Store{
		client: client,
		store:  store,
		nav:    nav,
		logger: logger,
		subs:   make(map[int]func(Event)),
	}
	client.OnAuthFailure(s.handleAuthFailure)
	return s
}

// Subscribe registers fn for session events and returns an unsubscribe func.
func (s *Store) Subscribe(fn func(Event)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

func (s *Store) emit(ev Event) {
	s.mu.Lock()
	subs := make([]func(Event), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()
	for _, fn := range subs {
		fn(ev)
	}
}

func (s *Store) User() *domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

func (s *Store) IsAuthenticated() bool {
	return s.User() != nil
}

func (s *Store) IsAdmin() bool {
	u := s.User()
	return u != nil && u.IsAdmin
}

// Err returns the last login/registration failure message, if any.
func (s *Store) Err() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

type authResponse struct {
	Token string `json:"token"`
	domain.User
}

// Login authenticates with the API. Any prior session is cleared first so a
// failed re-login can never leave a stale identity behind.
func (s *Store) Login(ctx context.Context, email, password string) error {
	s.setErr("")
	s.clearSession(ctx)

	var resp authResponse
	err := s.client.Post(ctx, "/api/auth/login", map[string]string{
		"email":    strings.TrimSpace(email),
		"password": strings.TrimSpace(password),
	}, &resp)
	if err != nil {
		msg := api.Message(err, "Login failed")
		s.setErr(msg)
		return fmt.Errorf("%s", msg)
	}

	s.commitSession(ctx, resp.Token, resp.User)
	s.emit(Event{Kind: EventSignedIn, User: s.User()})
	return nil
}

type Registration struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register creates an account and, on success, authenticates like Login.
func (s *Store) Register(ctx context.Context, reg Registration) error {
	s.setErr("")

	var resp authResponse
	if err := s.client.Post(ctx, "/api/auth/register", reg, &resp); err != nil {
		msg := api.Message(err, "Registration failed")
		s.setErr(msg)
		return fmt.Errorf("%s", msg)
	}

	s.commitSession(ctx, resp.Token, resp.User)
	s.emit(Event{Kind: EventSignedIn, User: s.User()})
	return nil
}

// Logout clears the session and returns to the public entry point: the admin
// login for admin surfaces, the storefront root otherwise.
func (s *Store) Logout(ctx context.Context) {
	s.clearSession(ctx)
	s.emit(Event{Kind: EventSignedOut})
	if strings.HasPrefix(s.nav.CurrentPath(), "/admin") {
		s.nav.Navigate(adminLogin)
	} else {
		s.nav.Navigate(publicRoot)
	}
}

// Reconcile restores a persisted session at startup. The cached user is
// trusted immediately to avoid a loading flash, then verified against the
// API in the same call. A session that changed underneath the verification
// (newer login or logout) wins; the stale result is dropped.
func (s *Store) Reconcile(ctx context.Context) {
	tokenSource := api.StorageTokenSource{Store: s.store}
	_, hasToken := tokenSource.Token(ctx)

	var cached domain.User
	hasUser := storage.ReadJSON(ctx, s.store, storage.KeyUser, &cached)

	if !hasToken || !hasUser {
		s.clearSession(ctx)
		return
	}

	s.mu.Lock()
	gen := s.gen
	s.user = &cached
	s.mu.Unlock()
	s.emit(Event{Kind: EventSignedIn, User: &cached})

	var verify struct {
		Valid bool `json:"valid"`
	}
	if err := s.client.Get(ctx, "/api/auth/verify-token", &verify); err != nil {
		// Degrade silently to logged out; mid-session failures are not
		// surfaced as blocking errors.
		s.logger.Warn("token verification failed", "error", err)
		if s.stale(gen) {
			return
		}
		s.clearSession(ctx)
		s.emit(Event{Kind: EventSignedOut})
		return
	}

	if !verify.Valid {
		if s.stale(gen) {
			return
		}
		s.clearSession(ctx)
		s.emit(Event{Kind: EventSignedOut})
		s.redirectToLogin()
		return
	}

	var fresh domain.User
	if err := s.client.Get(ctx, "/api/auth/profile", &fresh); err != nil {
		s.logger.Warn("profile refresh failed", "error", err)
		if s.stale(gen) {
			return
		}
		s.clearSession(ctx)
		s.emit(Event{Kind: EventSignedOut})
		return
	}
	if s.stale(gen) {
		return
	}

	s.mu.Lock()
	s.user = &fresh
	s.mu.Unlock()
	if err := storage.WriteJSON(ctx, s.store, storage.KeyUser, fresh); err != nil {
		s.logger.Warn("failed to persist profile", "error", err)
	}
	s.emit(Event{Kind: EventRefreshed, User: &fresh})
}

// handleAuthFailure reacts to the pipeline's 401/403 signal exactly like a
// failed verification.
func (s *Store) handleAuthFailure() {
	ctx := context.Background()
	s.clearSession(ctx)
	s.emit(Event{Kind: EventSignedOut})
	s.redirectToLogin()
}

func (s *Store) redirectToLogin() {
	path := s.nav.CurrentPath()
	if strings.HasPrefix(path, "/admin") {
		s.nav.Navigate(adminLogin)
		return
	}
	if path != loginPath {
		// Remember where the user was so login can restore it.
		if err := storage.WriteJSON(context.Background(), s.store, storage.KeyReturnPath, path); err != nil {
			s.logger.Warn("failed to save return path", "error", err)
		}
		s.nav.Navigate(loginPath)
	}
}

// ReturnPath pops the path saved before an auth redirect, if any.
func (s *Store) ReturnPath(ctx context.Context) (string, bool) {
	var path string
	if !storage.ReadJSON(ctx, s.store, storage.KeyReturnPath, &path) || path == "" {
		return "", false
	}
	if err := s.store.Delete(ctx, storage.KeyReturnPath); err != nil {
		s.logger.Warn("failed to clear return path", "error", err)
	}
	return path, true
}

// commitSession persists token and user together and installs the identity
// in memory. Token and user are never persisted one without the other.
func (s *Store) commitSession(ctx context.Context, token string, user domain.User) {
	if err := storage.WriteJSON(ctx, s.store, storage.KeyUserToken, token); err != nil {
		s.logger.Warn("failed to persist token", "error", err)
		s.clearPersisted(ctx)
	} else if err := storage.WriteJSON(ctx, s.store, storage.KeyUser, user); err != nil {
		s.logger.Warn("failed to persist user", "error", err)
		s.clearPersisted(ctx)
	}

	s.mu.Lock()
	s.gen++
	s.user = &user
	s.mu.Unlock()
}

func (s *Store) clearSession(ctx context.Context) {
	s.clearPersisted(ctx)
	s.mu.Lock()
	s.gen++
	s.user = nil
	s.mu.Unlock()
}

func (s *Store) clearPersisted(ctx context.Context) {
	if err := s.store.Delete(ctx, storage.KeyUserToken); err != nil {
		s.logger.Warn("failed to clear token", "error", err)
	}
	if err := s.store.Delete(ctx, storage.KeyUser); err != nil {
		s.logger.Warn("failed to clear user", "error", err)
	}
}

func (s *Store) stale(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen != gen
}

func (s *Store) setErr(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = msg
}
