package client

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// State is the session's authentication state. A rejected token collapses
// straight back to StateAnonymous after clearing storage; there is no
// lingering "invalid" state to observe.
type State int

const (
	StateAnonymous State = iota
	StateChecking
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateChecking:
		return "checking"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "anonymous"
	}
}

// UserInfo is the account payload returned by the backend.
type UserInfo struct {
	Email        string `json:"email"`
	IsSubscribed bool   `json:"isSubscribed"`
}

// Session owns the token lifecycle. All state transitions go through its
// methods; nothing else writes the persisted token or the cached asset list.
type Session struct {
	client *Client
	store  TokenStore
	cache  *LocalStore
	log    *logrus.Logger

	mu         sync.Mutex
	state      State
	token      string
	user       *UserInfo
	subscribed bool
}

func newSession(c *Client, store TokenStore, cache *LocalStore, log *logrus.Logger) *Session {
	return &Session{client: c, store: store, cache: cache, log: log, state: StateAnonymous}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

func (s *Session) IsAuthenticated() bool { return s.State() == StateAuthenticated }

func (s *Session) IsSubscribed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subscribed
}

// User returns the current account, when authenticated.
func (s *Session) User() (UserInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return UserInfo{}, false
	}
	return *s.user, true
}

// Start initializes the session from the persisted token. A missing or
// structurally invalid token goes straight to anonymous with no network
// call. A valid-looking token is verified against the backend; rejection
// (401/422) clears the persisted token and cached assets, while transient
// failures keep the token so a network blip does not log the user out.
func (s *Session) Start(ctx context.Context) error {
	token, err := s.store.Load()
	if err != nil {
		s.log.Warnf("load persisted token failed: %v", err)
		token = ""
	}
	if token == "" || !tokenLooksValid(token) {
		if token != "" {
			_ = s.store.Clear()
		}
		s.mu.Lock()
		s.state = StateAnonymous
		s.token = ""
		s.mu.Unlock()
		return nil
	}

	s.mu.Lock()
	s.token = token
	s.state = StateChecking
	s.mu.Unlock()

	var u UserInfo
	if err := s.client.do(ctx, http.MethodGet, "/api/me", nil, &u); err != nil {
		if IsAuthError(err) {
			s.forceInvalidate()
			return nil
		}
		s.mu.Lock()
		if s.state == StateChecking {
			s.state = StateAnonymous
		}
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	s.state = StateAuthenticated
	s.user = &u
	s.subscribed = u.IsSubscribed
	s.mu.Unlock()
	return nil
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Success bool     `json:"success"`
	Token   string   `json:"token"`
	User    UserInfo `json:"user"`
}

func (s *Session) Login(ctx context.Context, email, password string) error {
	return s.authenticate(ctx, "/api/login", email, password)
}

func (s *Session) Register(ctx context.Context, email, password string) error {
	return s.authenticate(ctx, "/api/register", email, password)
}

func (s *Session) authenticate(ctx context.Context, path, email, password string) error {
	if email == "" || password == "" {
		return fmt.Errorf("%w: email and password", ErrMissingRequiredField)
	}
	var resp authResponse
	if err := s.client.do(ctx, http.MethodPost, path, credentials{Email: email, Password: password}, &resp); err != nil {
		return err
	}

	if err := s.store.Save(resp.Token); err != nil {
		s.log.Warnf("persist token failed: %v", err)
	}
	// A different account must never see a previous account's locally cached
	// assets.
	s.clearCache()

	s.mu.Lock()
	s.token = resp.Token
	s.user = &resp.User
	s.subscribed = resp.User.IsSubscribed
	s.state = StateAuthenticated
	s.mu.Unlock()
	return nil
}

// Logout tells the backend best-effort and always clears local state: the
// persisted token, the current user, the subscription flag and any cached
// asset data.
func (s *Session) Logout(ctx context.Context) error {
	if err := s.client.do(ctx, http.MethodPost, "/api/logout", nil, nil); err != nil {
		s.log.Warnf("remote logout failed, clearing local state anyway: %v", err)
	}
	s.forceInvalidate()
	return nil
}

type subscribeRequest struct {
	PaymentMethodID string `json:"paymentMethodId"`
}

// Subscribe forwards the payment method token obtained from the payment
// provider's client library. Authentication state is unchanged; only the
// subscription flag flips on success.
func (s *Session) Subscribe(ctx context.Context, paymentMethodID string) (string, error) {
	if paymentMethodID == "" {
		return "", fmt.Errorf("%w: paymentMethodId", ErrMissingRequiredField)
	}
	var resp struct {
		SubscriptionID string `json:"subscriptionId"`
		Status         string `json:"status"`
	}
	if err := s.client.do(ctx, http.MethodPost, "/api/subscribe", subscribeRequest{PaymentMethodID: paymentMethodID}, &resp); err != nil {
		return "", err
	}

	s.mu.Lock()
	s.subscribed = true
	if s.user != nil {
		s.user.IsSubscribed = true
	}
	s.mu.Unlock()
	return resp.SubscriptionID, nil
}

func (s *Session) CancelSubscription(ctx context.Context) error {
	if err := s.client.do(ctx, http.MethodPost, "/api/cancel-subscription", nil, nil); err != nil {
		return err
	}
	s.mu.Lock()
	s.subscribed = false
	if s.user != nil {
		s.user.IsSubscribed = false
	}
	s.mu.Unlock()
	return nil
}

func (s *Session) CheckSubscription(ctx context.Context) (bool, error) {
	var resp struct {
		IsSubscribed bool `json:"isSubscribed"`
	}
	if err := s.client.do(ctx, http.MethodGet, "/api/check-subscription", nil, &resp); err != nil {
		return false, err
	}
	s.mu.Lock()
	s.subscribed = resp.IsSubscribed
	s.mu.Unlock()
	return resp.IsSubscribed, nil
}

// forceInvalidate clears everything the session owns and returns to
// anonymous. It is the landing point for explicit logout and for any 401
// observed by the request pipeline.
func (s *Session) forceInvalidate() {
	if err := s.store.Clear(); err != nil {
		s.log.Warnf("clear persisted token failed: %v", err)
	}
	s.clearCache()

	s.mu.Lock()
	s.token = ""
	s.user = nil
	s.subscribed = false
	s.state = StateAnonymous
	s.mu.Unlock()
}

func (s *Session) clearCache() {
	if s.cache == nil {
		return
	}
	if err := s.cache.Clear(); err != nil {
		s.log.Warnf("clear cached assets failed: %v", err)
	}
}

// tokenLooksValid is the local structural check run before any network
// call: three dot-separated segments, a decodable JSON payload, and an exp
// claim that is not in the past.
func tokenLooksValid(token string) bool {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return false
	}
	payload, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(parts[1], "="))
	if err != nil {
		return false
	}
	var claims struct {
		Exp int64 `json:"exp"`
	}
	if err := json.Unmarshal(payload, &claims); err != nil {
		return false
	}
	if claims.Exp != 0 && claims.Exp < time.Now().Unix() {
		return false
	}
	return true
}
