package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/geocoder89/crewhub/internal/actorctx"
	"github.com/geocoder89/crewhub/internal/auth"
	"github.com/geocoder89/crewhub/internal/domain/user"
	"github.com/geocoder89/crewhub/internal/http/handlers"
	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeAuthService struct {
	registerFn      func(ctx context.Context, email, password, name string) (auth.AuthResult, error)
	loginFn         func(ctx context.Context, email, password string) (auth.AuthResult, error)
	forgotFn        func(ctx context.Context, email string) error
	resetFn         func(ctx context.Context, token, newPassword string) error
	validateResetFn func(ctx context.Context, token string) (bool, error)
	meFn            func(ctx context.Context, userID string) (user.PublicUser, error)
}

func (f *fakeAuthService) Register(ctx context.Context, email, password, name string) (auth.AuthResult, error) {
	if f.registerFn != nil {
		return f.registerFn(ctx, email, password, name)
	}
	return auth.AuthResult{}, nil
}

func (f *fakeAuthService) Login(ctx context.Context, email, password string) (auth.AuthResult, error) {
	if f.loginFn != nil {
		return f.loginFn(ctx, email, password)
	}
	return auth.AuthResult{}, nil
}

func (f *fakeAuthService) ForgotPassword(ctx context.Context, email string) error {
	if f.forgotFn != nil {
		return f.forgotFn(ctx, email)
	}
	return nil
}

func (f *fakeAuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if f.resetFn != nil {
		return f.resetFn(ctx, token, newPassword)
	}
	return nil
}

func (f *fakeAuthService) ValidateResetToken(ctx context.Context, token string) (bool, error) {
	if f.validateResetFn != nil {
		return f.validateResetFn(ctx, token)
	}
	return false, nil
}

func (f *fakeAuthService) Me(ctx context.Context, userID string) (user.PublicUser, error) {
	if f.meFn != nil {
		return f.meFn(ctx, userID)
	}
	return user.PublicUser{}, nil
}

type errorEnvelope struct {
	Error handlers.APIError `json:"error"`
}

func newAuthRouter(svc handlers.AuthService, claim *auth.Claim) *gin.Engine {
	h := handlers.NewAuthHandler(svc, nil)

	r := gin.New()
	if claim != nil {
		r.Use(func(c *gin.Context) {
			c.Request = c.Request.WithContext(actorctx.WithClaim(c.Request.Context(), *claim))
			c.Next()
		})
	}

	r.POST("/register", h.Register)
	r.POST("/login", h.Login)
	r.POST("/forgot-password", h.ForgotPassword)
	r.POST("/reset-password", h.ResetPassword)
	r.GET("/reset-password/:token", h.ValidateResetToken)
	r.GET("/me", h.Me)

	return r
}

func doJSON(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()

	var env errorEnvelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("unmarshal error body: %v body=%s", err, w.Body.String())
	}
	return env.Error.Code
}

func TestRegister(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		err      error
		wantCode int
		wantErr  string
	}{
		{name: "created", body: `{"email":"a@x.com","password":"password1","name":"Ana"}`, wantCode: http.StatusCreated},
		{name: "duplicate", body: `{"email":"a@x.com","password":"password1","name":"Ana"}`, err: auth.ErrDuplicateEmail, wantCode: http.StatusConflict, wantErr: "email_taken"},
		{name: "short password", body: `{"email":"a@x.com","password":"short","name":"Ana"}`, wantCode: http.StatusBadRequest, wantErr: "invalid_request"},
		{name: "bad email", body: `{"email":"nope","password":"password1","name":"Ana"}`, wantCode: http.StatusBadRequest, wantErr: "invalid_request"},
		{name: "store failure", body: `{"email":"a@x.com","password":"password1","name":"Ana"}`, err: errors.New("db down"), wantCode: http.StatusInternalServerError, wantErr: "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeAuthService{
				registerFn: func(ctx context.Context, email, password, name string) (auth.AuthResult, error) {
					if tt.err != nil {
						return auth.AuthResult{}, tt.err
					}
					return auth.AuthResult{
						User:  user.PublicUser{ID: "u-1", Email: email, Name: name, Role: user.RoleUser},
						Token: "tok",
					}, nil
				},
			}

			w := doJSON(newAuthRouter(svc, nil), http.MethodPost, "/register", tt.body)

			if w.Code != tt.wantCode {
				t.Fatalf("status got %d, want %d body=%s", w.Code, tt.wantCode, w.Body.String())
			}
			if tt.wantErr != "" {
				if got := errorCode(t, w); got != tt.wantErr {
					t.Fatalf("code got %q, want %q", got, tt.wantErr)
				}
				return
			}

			var res auth.AuthResult
			if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if res.Token != "tok" || res.User.Email != "a@x.com" {
				t.Fatalf("unexpected result %+v", res)
			}
			if bytes.Contains(w.Body.Bytes(), []byte("password")) {
				t.Fatalf("response must not carry password data: %s", w.Body.String())
			}
		})
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	svc := &fakeAuthService{
		loginFn: func(ctx context.Context, email, password string) (auth.AuthResult, error) {
			return auth.AuthResult{}, auth.ErrInvalidCredentials
		},
	}

	w := doJSON(newAuthRouter(svc, nil), http.MethodPost, "/login", `{"email":"a@x.com","password":"pw2"}`)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status got %d, want 401", w.Code)
	}
	if got := errorCode(t, w); got != "invalid_credentials" {
		t.Fatalf("code got %q", got)
	}
}

func TestForgotPassword_AlwaysSuccessShaped(t *testing.T) {
	outcomes := []error{nil, errors.New("db down")}

	var bodies []string
	for _, outcome := range outcomes {
		svc := &fakeAuthService{
			forgotFn: func(ctx context.Context, email string) error { return outcome },
		}

		w := doJSON(newAuthRouter(svc, nil), http.MethodPost, "/forgot-password", `{"email":"ghost@x.com"}`)
		if w.Code != http.StatusOK {
			t.Fatalf("status got %d, want 200", w.Code)
		}
		bodies = append(bodies, w.Body.String())
	}

	if bodies[0] != bodies[1] {
		t.Fatalf("responses differ: %q vs %q", bodies[0], bodies[1])
	}
}

func TestResetPassword(t *testing.T) {
	svc := &fakeAuthService{
		resetFn: func(ctx context.Context, token, newPassword string) error {
			if token == "good" {
				return nil
			}
			return auth.ErrInvalidOrExpiredToken
		},
	}
	r := newAuthRouter(svc, nil)

	w := doJSON(r, http.MethodPost, "/reset-password", `{"token":"good","password":"new-password"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status got %d body=%s", w.Code, w.Body.String())
	}

	w = doJSON(r, http.MethodPost, "/reset-password", `{"token":"used","password":"new-password"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status got %d, want 400", w.Code)
	}
	if got := errorCode(t, w); got != "invalid_or_expired_token" {
		t.Fatalf("code got %q", got)
	}
}

func TestValidateResetToken(t *testing.T) {
	svc := &fakeAuthService{
		validateResetFn: func(ctx context.Context, token string) (bool, error) {
			return token == "live", nil
		},
	}
	r := newAuthRouter(svc, nil)

	for token, want := range map[string]bool{"live": true, "dead": false} {
		w := doJSON(r, http.MethodGet, "/reset-password/"+token, "")
		if w.Code != http.StatusOK {
			t.Fatalf("status got %d", w.Code)
		}

		var body struct {
			Valid bool `json:"valid"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if body.Valid != want {
			t.Fatalf("token %q: valid got %v, want %v", token, body.Valid, want)
		}
	}
}

func TestMe(t *testing.T) {
	svc := &fakeAuthService{
		meFn: func(ctx context.Context, userID string) (user.PublicUser, error) {
			if userID == "u-1" {
				return user.PublicUser{ID: "u-1", Email: "a@x.com"}, nil
			}
			return user.PublicUser{}, auth.ErrUserNotFound
		},
	}

	w := doJSON(newAuthRouter(svc, &auth.Claim{UserID: "u-1", Email: "a@x.com"}), http.MethodGet, "/me", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status got %d body=%s", w.Code, w.Body.String())
	}

	w = doJSON(newAuthRouter(svc, &auth.Claim{UserID: "gone"}), http.MethodGet, "/me", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status got %d, want 404", w.Code)
	}

	w = doJSON(newAuthRouter(svc, nil), http.MethodGet, "/me", "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status got %d, want 401", w.Code)
	}
}
