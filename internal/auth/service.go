package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"github.com/geocoder89/crewhub/internal/domain/passwordreset"
	"github.com/geocoder89/crewhub/internal/domain/user"
	"github.com/geocoder89/crewhub/internal/notifications"
	"github.com/geocoder89/crewhub/internal/security"
)

var (
	ErrDuplicateEmail        = errors.New("email already registered")
	ErrInvalidCredentials    = errors.New("invalid email or password")
	ErrInvalidOrExpiredToken = errors.New("invalid or expired reset token")
	ErrUserNotFound          = errors.New("user not found")
	ErrInvalidRole           = errors.New("invalid role")
	ErrSelfDemotion          = errors.New("admins cannot remove their own admin role")
)

// UserStore is the credential store. IsAdmin answers false for unknown users.
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (user.User, error)
	FindByID(ctx context.Context, id string) (user.User, error)
	Create(ctx context.Context, email, passwordHash, name string) (user.User, error)
	IsAdmin(ctx context.Context, userID string) (bool, error)
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
	UpdateRole(ctx context.Context, userID, role string) (user.User, error)
	List(ctx context.Context, limit, offset int) ([]user.User, error)
}

// ResetLedger issues and redeems single-use password reset tokens.
// CreateToken must invalidate the user's active tokens and insert the new
// one atomically. FindValidToken reports passwordreset.ErrNotFound for
// unknown, used and expired tokens without distinction. MarkAsUsed reports
// true only for the call that moved an active token to used; repeated calls
// are a no-op returning false.
type ResetLedger interface {
	CreateToken(ctx context.Context, userID string) (passwordreset.Token, error)
	FindValidToken(ctx context.Context, token string) (passwordreset.Token, error)
	MarkAsUsed(ctx context.Context, token string) (bool, error)
	CleanupExpiredTokens(ctx context.Context) (int64, error)
}

type EventRecorder interface {
	AuthEvent(event, outcome string)
}

type RoleInvalidator interface {
	Invalidate(ctx context.Context, userID string)
}

type AuthResult struct {
	User  user.PublicUser `json:"user"`
	Token string          `json:"token"`
}

type Service struct {
	users        UserStore
	resets       ResetLedger
	codec        *Codec
	notifier     notifications.Notifier
	events       EventRecorder
	roles        RoleInvalidator
	log          *slog.Logger
	resetURLBase string
}

type ServiceOption func(*Service)

func WithLogger(log *slog.Logger) ServiceOption {
	return func(s *Service) { s.log = log }
}

func WithEventRecorder(r EventRecorder) ServiceOption {
	return func(s *Service) { s.events = r }
}

func WithRoleInvalidator(r RoleInvalidator) ServiceOption {
	return func(s *Service) { s.roles = r }
}

// WithResetURLBase sets the client page that receives ?token=<raw token>.
func WithResetURLBase(base string) ServiceOption {
	return func(s *Service) { s.resetURLBase = base }
}

func NewService(users UserStore, resets ResetLedger, codec *Codec, notifier notifications.Notifier, opts ...ServiceOption) *Service {
	s := &Service{
		users:    users,
		resets:   resets,
		codec:    codec,
		notifier: notifier,
		log:      slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *Service) Register(ctx context.Context, email, password, name string) (AuthResult, error) {
	email = user.NormalizeEmail(email)

	_, err := s.users.FindByEmail(ctx, email)
	switch {
	case err == nil:
		s.record("register", "duplicate")
		return AuthResult{}, ErrDuplicateEmail
	case !errors.Is(err, user.ErrNotFound):
		return AuthResult{}, fmt.Errorf("register: lookup email: %w", err)
	}

	hash, err := security.HashPassword(password)
	if err != nil {
		return AuthResult{}, fmt.Errorf("register: hash password: %w", err)
	}

	u, err := s.users.Create(ctx, email, hash, strings.TrimSpace(name))
	if err != nil {
		// lost a race with a concurrent registration
		if errors.Is(err, user.ErrEmailTaken) {
			s.record("register", "duplicate")
			return AuthResult{}, ErrDuplicateEmail
		}
		return AuthResult{}, fmt.Errorf("register: create user: %w", err)
	}

	res, err := s.issue(u)
	if err != nil {
		return AuthResult{}, fmt.Errorf("register: %w", err)
	}

	s.record("register", "success")
	s.log.InfoContext(ctx, "user registered", "user_id", u.ID)

	return res, nil
}

func (s *Service) Login(ctx context.Context, email, password string) (AuthResult, error) {
	u, err := s.users.FindByEmail(ctx, user.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			// same bcrypt cost as a real mismatch so timing does not reveal the email
			_ = security.CheckPassword(dummyHash(), password)
			s.record("login", "invalid_credentials")
			return AuthResult{}, ErrInvalidCredentials
		}
		return AuthResult{}, fmt.Errorf("login: lookup email: %w", err)
	}

	if err := security.CheckPassword(u.PasswordHash, password); err != nil {
		if errors.Is(err, security.ErrPasswordMismatch) {
			s.record("login", "invalid_credentials")
			return AuthResult{}, ErrInvalidCredentials
		}
		return AuthResult{}, fmt.Errorf("login: compare password: %w", err)
	}

	res, err := s.issue(u)
	if err != nil {
		return AuthResult{}, fmt.Errorf("login: %w", err)
	}

	s.record("login", "success")
	return res, nil
}

// ForgotPassword returns nil for unknown emails so callers cannot probe
// which accounts exist. Notification failures are logged, not returned.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	u, err := s.users.FindByEmail(ctx, user.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			s.record("forgot_password", "unknown_email")
			return nil
		}
		return fmt.Errorf("forgot password: lookup email: %w", err)
	}

	tok, err := s.resets.CreateToken(ctx, u.ID)
	if err != nil {
		return fmt.Errorf("forgot password: create token: %w", err)
	}

	err = s.notifier.SendPasswordReset(ctx, notifications.PasswordResetInput{
		Email:     u.Email,
		Name:      u.Name,
		ResetURL:  s.resetURL(tok.Token),
		ExpiresAt: tok.ExpiresAt,
	})
	if err != nil {
		s.record("forgot_password", "notify_failed")
		s.log.WarnContext(ctx, "password reset notification failed", "user_id", u.ID, "err", err)
		return nil
	}

	s.record("forgot_password", "sent")
	return nil
}

func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	tok, err := s.resets.FindValidToken(ctx, token)
	if err != nil {
		if errors.Is(err, passwordreset.ErrNotFound) {
			s.record("reset_password", "invalid_token")
			return ErrInvalidOrExpiredToken
		}
		return fmt.Errorf("reset password: find token: %w", err)
	}

	hash, err := security.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("reset password: hash password: %w", err)
	}

	// claim before writing so only one concurrent redemption changes the
	// password; a failed update leaves the token spent
	claimed, err := s.resets.MarkAsUsed(ctx, token)
	if err != nil {
		return fmt.Errorf("reset password: mark token used: %w", err)
	}
	if !claimed {
		s.record("reset_password", "invalid_token")
		return ErrInvalidOrExpiredToken
	}

	if err := s.users.UpdatePassword(ctx, tok.UserID, hash); err != nil {
		if errors.Is(err, user.ErrNotFound) {
			s.record("reset_password", "invalid_token")
			return ErrInvalidOrExpiredToken
		}
		return fmt.Errorf("reset password: update password: %w", err)
	}

	s.record("reset_password", "success")
	s.log.InfoContext(ctx, "password reset", "user_id", tok.UserID)

	return nil
}

// ValidateResetToken is a read-only pre-flight check for the reset form.
func (s *Service) ValidateResetToken(ctx context.Context, token string) (bool, error) {
	_, err := s.resets.FindValidToken(ctx, token)
	if err != nil {
		if errors.Is(err, passwordreset.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("validate reset token: %w", err)
	}
	return true, nil
}

func (s *Service) VerifyToken(token string) (Claim, error) {
	return s.codec.Decode(token)
}

func (s *Service) Me(ctx context.Context, userID string) (user.PublicUser, error) {
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return user.PublicUser{}, ErrUserNotFound
		}
		return user.PublicUser{}, fmt.Errorf("me: %w", err)
	}
	return u.Public(), nil
}

func (s *Service) ListUsers(ctx context.Context, limit, offset int) ([]user.PublicUser, error) {
	users, err := s.users.List(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	out := make([]user.PublicUser, 0, len(users))
	for _, u := range users {
		out = append(out, u.Public())
	}
	return out, nil
}

func (s *Service) ChangeRole(ctx context.Context, actorID, userID, role string) (user.PublicUser, error) {
	if !user.ValidRole(role) {
		return user.PublicUser{}, ErrInvalidRole
	}
	if actorID == userID && role != user.RoleAdmin {
		return user.PublicUser{}, ErrSelfDemotion
	}

	u, err := s.users.UpdateRole(ctx, userID, role)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return user.PublicUser{}, ErrUserNotFound
		}
		return user.PublicUser{}, fmt.Errorf("change role: %w", err)
	}

	if s.roles != nil {
		s.roles.Invalidate(ctx, userID)
	}

	s.log.InfoContext(ctx, "user role changed", "user_id", userID, "role", role, "actor_id", actorID)
	return u.Public(), nil
}

func (s *Service) issue(u user.User) (AuthResult, error) {
	token, err := s.codec.Encode(Claim{UserID: u.ID, Email: u.Email})
	if err != nil {
		return AuthResult{}, fmt.Errorf("issue token: %w", err)
	}
	return AuthResult{User: u.Public(), Token: token}, nil
}

func (s *Service) resetURL(token string) string {
	if s.resetURLBase == "" {
		return token
	}

	u, err := url.Parse(s.resetURLBase)
	if err != nil {
		return s.resetURLBase + "?token=" + url.QueryEscape(token)
	}

	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()

	return u.String()
}

func (s *Service) record(event, outcome string) {
	if s.events != nil {
		s.events.AuthEvent(event, outcome)
	}
}

var (
	dummyOnce sync.Once
	dummy     string
)

func dummyHash() string {
	dummyOnce.Do(func() {
		h, err := security.HashPassword("crewhub-timing-equaliser")
		if err == nil {
			dummy = h
		}
	})
	return dummy
}
