package auth

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"net/url"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/gophauth/internal/client/api"
	"github.com/iudanet/gophauth/internal/client/storage"
	pkgapi "github.com/iudanet/gophauth/pkg/api"
)

// mockAuthStorage keeps the session in memory
type mockAuthStorage struct {
	data    *storage.AuthData
	saveErr error
	getErr  error
	deleted int
}

func (m *mockAuthStorage) SaveAuth(ctx context.Context, auth *storage.AuthData) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	cp := *auth
	m.data = &cp
	return nil
}

func (m *mockAuthStorage) GetAuth(ctx context.Context) (*storage.AuthData, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	if m.data == nil {
		return nil, storage.ErrAuthNotFound
	}
	cp := *m.data
	return &cp, nil
}

func (m *mockAuthStorage) DeleteAuth(ctx context.Context) error {
	if m.data == nil {
		return storage.ErrAuthNotFound
	}
	m.data = nil
	m.deleted++
	return nil
}

func (m *mockAuthStorage) IsAuthenticated(ctx context.Context) (bool, error) {
	return m.data != nil, nil
}

// mockAPI records calls and answers from function fields
type mockAPI struct {
	RegisterFunc      func(ctx context.Context, req pkgapi.RegisterRequest) (*api.Session, error)
	LoginFunc         func(ctx context.Context, req pkgapi.LoginRequest) (*api.Session, error)
	RefreshFunc       func(ctx context.Context, refreshToken string) (*api.RefreshResult, error)
	LogoutFunc        func(ctx context.Context, refreshToken string) error
	MeFunc            func(ctx context.Context, accessToken string) (*pkgapi.User, error)
	RevokeFunc        func(ctx context.Context, accessToken string) (int, error)
	ResetRequestFunc  func(ctx context.Context, email string) error
	ResetPerformFunc  func(ctx context.Context, token, newPassword string) error
	GetProfileFunc    func(ctx context.Context, accessToken string) (*pkgapi.User, error)
	UpdateProfileFunc func(ctx context.Context, accessToken string, req pkgapi.ProfileRequest) (*pkgapi.User, error)
	ListUsersFunc     func(ctx context.Context, accessToken string) ([]pkgapi.User, error)
}

func (m *mockAPI) Register(ctx context.Context, req pkgapi.RegisterRequest) (*api.Session, error) {
	return m.RegisterFunc(ctx, req)
}

func (m *mockAPI) Login(ctx context.Context, req pkgapi.LoginRequest) (*api.Session, error) {
	return m.LoginFunc(ctx, req)
}

func (m *mockAPI) Refresh(ctx context.Context, refreshToken string) (*api.RefreshResult, error) {
	return m.RefreshFunc(ctx, refreshToken)
}

func (m *mockAPI) Logout(ctx context.Context, refreshToken string) error {
	return m.LogoutFunc(ctx, refreshToken)
}

func (m *mockAPI) Me(ctx context.Context, accessToken string) (*pkgapi.User, error) {
	return m.MeFunc(ctx, accessToken)
}

func (m *mockAPI) Revoke(ctx context.Context, accessToken string) (int, error) {
	return m.RevokeFunc(ctx, accessToken)
}

func (m *mockAPI) RequestPasswordReset(ctx context.Context, email string) error {
	return m.ResetRequestFunc(ctx, email)
}

func (m *mockAPI) PerformPasswordReset(ctx context.Context, token, newPassword string) error {
	return m.ResetPerformFunc(ctx, token, newPassword)
}

func (m *mockAPI) GetProfile(ctx context.Context, accessToken string) (*pkgapi.User, error) {
	return m.GetProfileFunc(ctx, accessToken)
}

func (m *mockAPI) UpdateProfile(ctx context.Context, accessToken string, req pkgapi.ProfileRequest) (*pkgapi.User, error) {
	return m.UpdateProfileFunc(ctx, accessToken, req)
}

func (m *mockAPI) ListUsers(ctx context.Context, accessToken string) ([]pkgapi.User, error) {
	return m.ListUsersFunc(ctx, accessToken)
}

var testNow = time.Unix(1_700_000_000, 0)

// testToken builds a JWT that expires at exp; the client never verifies it
func testToken(t *testing.T, subject string, exp time.Time) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("client-test"))
	require.NoError(t, err)
	return token
}

func newTestService(apiClient APIClient, store storage.AuthStorage) *SessionService {
	svc := NewService(apiClient, store, slog.New(slog.NewTextHandler(io.Discard, nil)))
	svc.now = func() time.Time { return testNow }
	return svc
}

func TestSessionService_Login(t *testing.T) {
	access := testToken(t, "access", testNow.Add(15*time.Minute))
	refresh := testToken(t, "refresh", testNow.Add(7*24*time.Hour))

	tests := []struct {
		loginErr error
		name     string
		email    string
		password string
		cookie   string
		wantErr  bool
	}{
		{name: "success", email: "alice@x.com", password: "pw123", cookie: refresh},
		{name: "missing password", email: "alice@x.com", wantErr: true},
		{name: "server rejects", email: "alice@x.com", password: "bad", loginErr: &api.APIError{StatusCode: 401, Kind: "AuthError"}, wantErr: true},
		{name: "no cookie", email: "alice@x.com", password: "pw123", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &mockAuthStorage{}
			apiClient := &mockAPI{
				LoginFunc: func(ctx context.Context, req pkgapi.LoginRequest) (*api.Session, error) {
					assert.Equal(t, tt.email, req.Email)
					if tt.loginErr != nil {
						return nil, tt.loginErr
					}
					return &api.Session{
						User:         pkgapi.User{ID: "user-1", Email: req.Email},
						AccessToken:  access,
						RefreshToken: tt.cookie,
					}, nil
				},
			}

			data, err := newTestService(apiClient, store).Login(context.Background(), tt.email, tt.password)
			if tt.wantErr {
				require.Error(t, err)
				assert.Nil(t, store.data)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, "user-1", data.UserID)
			assert.Equal(t, testNow.Add(15*time.Minute).Unix(), data.AccessExpiresAt)
			assert.Equal(t, testNow.Add(7*24*time.Hour).Unix(), data.RefreshExpiresAt)
			assert.Equal(t, data, store.data)
		})
	}
}

func TestSessionService_RegisterValidates(t *testing.T) {
	apiClient := &mockAPI{
		RegisterFunc: func(ctx context.Context, req pkgapi.RegisterRequest) (*api.Session, error) {
			t.Fatal("server must not be called for invalid input")
			return nil, nil
		},
	}
	svc := newTestService(apiClient, &mockAuthStorage{})

	_, err := svc.Register(context.Background(), "not-an-email", "pw")
	assert.ErrorContains(t, err, "invalid email")

	_, err = svc.Register(context.Background(), "alice@x.com", "")
	assert.ErrorContains(t, err, "invalid password")
}

func TestSessionService_Refresh(t *testing.T) {
	newAccess := testToken(t, "access", testNow.Add(15*time.Minute))
	newRefresh := testToken(t, "refresh", testNow.Add(7*24*time.Hour))

	t.Run("rotates and saves", func(t *testing.T) {
		store := &mockAuthStorage{data: &storage.AuthData{Email: "alice@x.com", RefreshToken: "old"}}
		apiClient := &mockAPI{
			RefreshFunc: func(ctx context.Context, refreshToken string) (*api.RefreshResult, error) {
				assert.Equal(t, "old", refreshToken)
				return &api.RefreshResult{OK: true, AccessToken: newAccess, RefreshToken: newRefresh}, nil
			},
		}

		data, err := newTestService(apiClient, store).Refresh(context.Background())
		require.NoError(t, err)
		assert.Equal(t, newAccess, data.AccessToken)
		assert.Equal(t, newRefresh, store.data.RefreshToken)
		assert.Equal(t, "alice@x.com", store.data.Email)
	})

	t.Run("rejected drops session", func(t *testing.T) {
		store := &mockAuthStorage{data: &storage.AuthData{RefreshToken: "revoked"}}
		apiClient := &mockAPI{
			RefreshFunc: func(ctx context.Context, refreshToken string) (*api.RefreshResult, error) {
				return &api.RefreshResult{OK: false}, nil
			},
		}

		_, err := newTestService(apiClient, store).Refresh(context.Background())
		assert.ErrorIs(t, err, ErrSessionExpired)
		assert.Nil(t, store.data)
	})

	t.Run("no session", func(t *testing.T) {
		_, err := newTestService(&mockAPI{}, &mockAuthStorage{}).Refresh(context.Background())
		assert.ErrorIs(t, err, ErrNotAuthenticated)
	})

	t.Run("storage failure", func(t *testing.T) {
		store := &mockAuthStorage{getErr: errors.New("disk")}
		_, err := newTestService(&mockAPI{}, store).Refresh(context.Background())
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrNotAuthenticated)
	})
}

func TestSessionService_MeRefreshesExpiredAccess(t *testing.T) {
	newAccess := testToken(t, "access", testNow.Add(15*time.Minute))

	store := &mockAuthStorage{data: &storage.AuthData{
		AccessToken:      "stale",
		AccessExpiresAt:  testNow.Add(-time.Minute).Unix(),
		RefreshToken:     "cookie",
		RefreshExpiresAt: testNow.Add(time.Hour).Unix(),
	}}

	refreshed := 0
	apiClient := &mockAPI{
		RefreshFunc: func(ctx context.Context, refreshToken string) (*api.RefreshResult, error) {
			refreshed++
			return &api.RefreshResult{OK: true, AccessToken: newAccess}, nil
		},
		MeFunc: func(ctx context.Context, accessToken string) (*pkgapi.User, error) {
			assert.Equal(t, newAccess, accessToken)
			return &pkgapi.User{ID: "user-1"}, nil
		},
	}

	user, err := newTestService(apiClient, store).Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "user-1", user.ID)
	assert.Equal(t, 1, refreshed)
	// server kept the cookie, so the old one stays
	assert.Equal(t, "cookie", store.data.RefreshToken)
}

func TestSessionService_MeRejected(t *testing.T) {
	store := &mockAuthStorage{data: &storage.AuthData{
		AccessToken:     "access",
		AccessExpiresAt: testNow.Add(time.Hour).Unix(),
	}}
	apiClient := &mockAPI{
		MeFunc: func(ctx context.Context, accessToken string) (*pkgapi.User, error) {
			return nil, nil
		},
	}

	_, err := newTestService(apiClient, store).Me(context.Background())
	assert.ErrorIs(t, err, ErrSessionExpired)
}

func TestSessionService_Logout(t *testing.T) {
	t.Run("server failure still clears local session", func(t *testing.T) {
		store := &mockAuthStorage{data: &storage.AuthData{RefreshToken: "cookie"}}
		apiClient := &mockAPI{
			LogoutFunc: func(ctx context.Context, refreshToken string) error {
				assert.Equal(t, "cookie", refreshToken)
				return errors.New("connection refused")
			},
		}

		require.NoError(t, newTestService(apiClient, store).Logout(context.Background()))
		assert.Nil(t, store.data)
	})

	t.Run("not logged in", func(t *testing.T) {
		err := newTestService(&mockAPI{}, &mockAuthStorage{}).Logout(context.Background())
		assert.ErrorIs(t, err, ErrNotAuthenticated)
	})
}

func TestSessionService_Revoke(t *testing.T) {
	store := &mockAuthStorage{data: &storage.AuthData{
		AccessToken:     "access",
		AccessExpiresAt: testNow.Add(time.Hour).Unix(),
	}}
	apiClient := &mockAPI{
		RevokeFunc: func(ctx context.Context, accessToken string) (int, error) {
			assert.Equal(t, "access", accessToken)
			return 2, nil
		},
	}

	version, err := newTestService(apiClient, store).Revoke(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, version)
	assert.Nil(t, store.data)
}

func TestSessionService_PasswordReset(t *testing.T) {
	// 43 characters, the length of a real token
	const token = "Zm9vYmFyYmF6cXV4LV9hYmNkZWZnaGlqa2xtbm9wcXJ"
	rpt := base64.StdEncoding.EncodeToString([]byte(token))

	inputs := map[string]string{
		"raw token": token,
		"rpt value": rpt,
		"full link": "http://localhost:3000/change-password?rpt=" + url.QueryEscape(rpt),
	}

	for name, input := range inputs {
		t.Run(name, func(t *testing.T) {
			store := &mockAuthStorage{data: &storage.AuthData{RefreshToken: "old"}}
			apiClient := &mockAPI{
				ResetPerformFunc: func(ctx context.Context, got, newPassword string) error {
					assert.Equal(t, token, got)
					assert.Equal(t, "newpw", newPassword)
					return nil
				},
			}

			require.NoError(t, newTestService(apiClient, store).PerformPasswordReset(context.Background(), input, "newpw"))
			assert.Nil(t, store.data, "reset revokes every session")
		})
	}

	t.Run("request validates email", func(t *testing.T) {
		err := newTestService(&mockAPI{}, &mockAuthStorage{}).RequestPasswordReset(context.Background(), "bad")
		assert.ErrorContains(t, err, "invalid email")
	})

	t.Run("request forwards", func(t *testing.T) {
		called := false
		apiClient := &mockAPI{
			ResetRequestFunc: func(ctx context.Context, email string) error {
				called = true
				assert.Equal(t, "alice@x.com", email)
				return nil
			},
		}
		require.NoError(t, newTestService(apiClient, &mockAuthStorage{}).RequestPasswordReset(context.Background(), "alice@x.com"))
		assert.True(t, called)
	})
}

func TestParseResetToken(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "raw", input: "abc-DEF_123", want: "abc-DEF_123"},
		{name: "trimmed", input: "  abc\n", want: "abc"},
		{name: "rpt", input: base64.StdEncoding.EncodeToString([]byte("abcd")), want: "abcd"},
		{name: "link", input: "https://app.example/reset?rpt=" + base64.StdEncoding.EncodeToString([]byte("tok")), want: "tok"},
		{name: "empty", input: " ", wantErr: true},
		{name: "link without value", input: "https://app.example/reset?rpt=", wantErr: true},
		{name: "bad rpt", input: "abc=def", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseResetToken(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSessionService_Profile(t *testing.T) {
	store := &mockAuthStorage{data: &storage.AuthData{
		AccessToken:     "access",
		AccessExpiresAt: testNow.Add(time.Hour).Unix(),
	}}
	apiClient := &mockAPI{
		UpdateProfileFunc: func(ctx context.Context, accessToken string, req pkgapi.ProfileRequest) (*pkgapi.User, error) {
			return &pkgapi.User{FirstName: req.FirstName, LastName: req.LastName}, nil
		},
		ListUsersFunc: func(ctx context.Context, accessToken string) ([]pkgapi.User, error) {
			return []pkgapi.User{{ID: "a"}, {ID: "b"}}, nil
		},
	}
	svc := newTestService(apiClient, store)

	user, err := svc.UpdateProfile(context.Background(), "Alice", "Smith")
	require.NoError(t, err)
	assert.Equal(t, "Smith", user.LastName)

	_, err = svc.UpdateProfile(context.Background(), "Al\x00ice", "")
	assert.ErrorContains(t, err, "invalid first name")

	users, err := svc.Users(context.Background())
	require.NoError(t, err)
	assert.Len(t, users, 2)
}
