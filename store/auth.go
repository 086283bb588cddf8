package store

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"

	"citizen-card-cli/model"
)

const sessionKey = "session"

type AuthAPI interface {
	Register(ctx context.Context, reg model.Registration) (model.AuthResponse, error)
	Login(ctx context.Context, creds model.Credentials) (model.AuthResponse, error)
	Logout(ctx context.Context) error
	GetProfile(ctx context.Context) (model.User, error)
	UpdateProfile(ctx context.Context, update model.ProfileUpdate) (model.User, error)
	ChangePassword(ctx context.Context, current string, next string) error
	RequestPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token string, newPassword string) error
	VerifyEmail(ctx context.Context, token string) error
	ResendVerificationEmail(ctx context.Context) error
	GetCitizenCard(ctx context.Context) (model.CitizenCard, error)
}

// AuthStore owns the session. Token satisfies service.TokenSource, and
// HandleUnauthorized is meant to be the client's 401 hook.
type AuthStore struct {
	base
	api AuthAPI
	now func() time.Time

	token string
	user  *model.User
	card  *model.CitizenCard

	onSessionEnd []func()
}

func NewAuthStore(api AuthAPI, persist *Persister, logger logrus.FieldLogger) *AuthStore {
	return &AuthStore{
		base: newBase(persist, logger),
		api:  api,
		now:  time.Now,
	}
}

// OnSessionEnd registers fn to run after the session is torn down, outside the store lock.
func (s *AuthStore) OnSessionEnd(fn func()) {
	s.mu.Lock()
	s.onSessionEnd = append(s.onSessionEnd, fn)
	s.mu.Unlock()
}

func (s *AuthStore) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

func (s *AuthStore) IsAuthenticated() bool {
	return s.Token() != ""
}

func (s *AuthStore) User() (model.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return model.User{}, false
	}
	return *s.user, true
}

func (s *AuthStore) IsVerified() bool {
	user, ok := s.User()
	return ok && user.IsVerified
}

func (s *AuthStore) Card() (model.CitizenCard, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.card == nil {
		return model.CitizenCard{}, false
	}
	return *s.card, true
}

func (s *AuthStore) Login(ctx context.Context, creds model.Credentials) error {
	s.mu.Lock()
	token := s.start("session")
	s.mu.Unlock()

	resp, err := s.api.Login(ctx, creds)

	s.mu.Lock()
	latest := s.finish("session", token, err)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	if !latest {
		return ErrSuperseded
	}
	s.setSession(ctx, resp.Token, resp.User)
	s.fetchCard(ctx)
	return nil
}

// Register creates the account and, when the server returns a token, starts
// the session with it.
func (s *AuthStore) Register(ctx context.Context, reg model.Registration) error {
	s.mu.Lock()
	token := s.start("session")
	s.mu.Unlock()

	resp, err := s.api.Register(ctx, reg)

	s.mu.Lock()
	latest := s.finish("session", token, err)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	if !latest {
		return ErrSuperseded
	}
	if resp.Token != "" {
		s.setSession(ctx, resp.Token, resp.User)
		s.fetchCard(ctx)
	}
	return nil
}

// Logout notifies the server when a session exists and always clears local
// state. Calling it twice is harmless.
func (s *AuthStore) Logout(ctx context.Context) error {
	if token := s.Token(); token != "" {
		if err := s.api.Logout(ctx); err != nil {
			s.logger.WithError(err).Warn("server logout failed")
		}
	}
	s.clearSession(ctx)
	return nil
}

// HandleUnauthorized tears the session down if tokenUsed is still the
// current token. It reports whether this call performed the teardown, so
// concurrent 401s for the same session produce exactly one.
func (s *AuthStore) HandleUnauthorized(tokenUsed string) bool {
	if tokenUsed == "" {
		return false
	}
	return s.clearSessionIf(context.Background(), tokenUsed)
}

// InitAuth restores a persisted session. A JWT whose exp has passed is
// dropped without a network call; anything else is confirmed by fetching the
// profile and cleared if that fails.
func (s *AuthStore) InitAuth(ctx context.Context) error {
	var session model.Session
	ok, err := s.persist.Load(ctx, sessionKey, &session)
	if err != nil {
		s.logger.WithError(err).Warn("load persisted session")
		_ = s.persist.Delete(ctx, sessionKey)
		return nil
	}
	if !ok || session.Token == "" {
		return nil
	}
	if tokenExpired(session.Token, s.now()) {
		s.logger.Info("persisted session expired")
		_ = s.persist.Delete(ctx, sessionKey)
		return nil
	}

	s.mu.Lock()
	s.token = session.Token
	s.user = session.User
	s.mu.Unlock()

	if err := s.FetchProfile(ctx); err != nil {
		s.clearSessionIf(ctx, session.Token)
		return err
	}
	s.fetchCard(ctx)
	return nil
}

func (s *AuthStore) FetchProfile(ctx context.Context) error {
	s.mu.Lock()
	token := s.start("user")
	s.mu.Unlock()

	user, err := s.api.GetProfile(ctx)

	s.mu.Lock()
	latest := s.finish("user", token, err)
	if err == nil && latest && s.token != "" {
		s.user = &user
	}
	session := model.Session{Token: s.token, User: s.user}
	s.mu.Unlock()
	if err != nil {
		return err
	}
	if !latest {
		return ErrSuperseded
	}
	s.saveSession(ctx, session)
	return nil
}

func (s *AuthStore) UpdateProfile(ctx context.Context, update model.ProfileUpdate) error {
	s.mu.Lock()
	token := s.start("user")
	s.mu.Unlock()

	user, err := s.api.UpdateProfile(ctx, update)

	s.mu.Lock()
	latest := s.finish("user", token, err)
	if err == nil && latest {
		s.user = &user
	}
	session := model.Session{Token: s.token, User: s.user}
	s.mu.Unlock()
	if err != nil {
		return err
	}
	if !latest {
		return ErrSuperseded
	}
	s.saveSession(ctx, session)
	return nil
}

func (s *AuthStore) ChangePassword(ctx context.Context, current string, next string) error {
	return s.run(func() error { return s.api.ChangePassword(ctx, current, next) })
}

func (s *AuthStore) RequestPasswordReset(ctx context.Context, email string) error {
	return s.run(func() error { return s.api.RequestPasswordReset(ctx, email) })
}

func (s *AuthStore) ResetPassword(ctx context.Context, token string, newPassword string) error {
	return s.run(func() error { return s.api.ResetPassword(ctx, token, newPassword) })
}

// VerifyEmail confirms the address and refreshes the profile when logged in.
func (s *AuthStore) VerifyEmail(ctx context.Context, token string) error {
	if err := s.run(func() error { return s.api.VerifyEmail(ctx, token) }); err != nil {
		return err
	}
	if s.IsAuthenticated() {
		return s.FetchProfile(ctx)
	}
	return nil
}

func (s *AuthStore) ResendVerificationEmail(ctx context.Context) error {
	return s.run(func() error { return s.api.ResendVerificationEmail(ctx) })
}

func (s *AuthStore) FetchCitizenCard(ctx context.Context) error {
	s.mu.Lock()
	token := s.start("card")
	s.mu.Unlock()

	card, err := s.api.GetCitizenCard(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.finish("card", token, err) {
		if err != nil {
			return err
		}
		return ErrSuperseded
	}
	if err != nil {
		return err
	}
	if s.token != "" {
		s.card = &card
	}
	return nil
}

// run executes an action that changes no store state beyond loading and error.
func (s *AuthStore) run(action func() error) error {
	s.mu.Lock()
	s.pending++
	s.mu.Unlock()

	err := action()

	s.mu.Lock()
	if s.pending > 0 {
		s.pending--
	}
	if err != nil {
		s.fail(err)
	} else {
		s.err = ""
	}
	s.mu.Unlock()
	return err
}

// fetchCard loads the citizen card after login; failures do not fail the login.
func (s *AuthStore) fetchCard(ctx context.Context) {
	if err := s.FetchCitizenCard(ctx); err != nil {
		s.logger.WithError(err).Debug("citizen card unavailable")
		s.ClearError()
	}
}

func (s *AuthStore) setSession(ctx context.Context, token string, user model.User) {
	s.mu.Lock()
	s.token = token
	s.user = &user
	s.card = nil
	s.mu.Unlock()
	s.saveSession(ctx, model.Session{Token: token, User: &user})
}

func (s *AuthStore) saveSession(ctx context.Context, session model.Session) {
	if session.Token == "" {
		return
	}
	if err := s.persist.Save(ctx, sessionKey, session); err != nil {
		s.logger.WithError(err).Warn("persist session")
	}
}

func (s *AuthStore) clearSession(ctx context.Context) {
	s.mu.Lock()
	s.token = ""
	s.user = nil
	s.card = nil
	s.seq["session"]++
	listeners := append([]func(){}, s.onSessionEnd...)
	s.mu.Unlock()

	if err := s.persist.Delete(ctx, sessionKey); err != nil {
		s.logger.WithError(err).Warn("remove persisted session")
	}
	for _, fn := range listeners {
		fn()
	}
}

// clearSessionIf clears the session only while token is current.
func (s *AuthStore) clearSessionIf(ctx context.Context, token string) bool {
	s.mu.Lock()
	if s.token != token {
		s.mu.Unlock()
		return false
	}
	s.token = ""
	s.mu.Unlock()

	s.clearSession(ctx)
	return true
}

func tokenExpired(token string, now time.Time) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return !now.Before(exp.Time)
}
