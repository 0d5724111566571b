package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/gophauth/internal/models"
	"github.com/iudanet/gophauth/internal/server/auth"
	"github.com/iudanet/gophauth/pkg/api"
)

// mockProfileService keeps users in a map
type mockProfileService struct {
	users   map[string]*models.User
	listErr error
}

func newMockProfileService() *mockProfileService {
	return &mockProfileService{users: map[string]*models.User{
		"user-1": {ID: "user-1", Email: "alice@x.com"},
		"user-2": {ID: "user-2", Email: "bob@x.com", FirstName: "Bob"},
	}}
}

func (m *mockProfileService) GetProfile(_ context.Context, userID string) (*models.User, error) {
	u, ok := m.users[userID]
	if !ok {
		return nil, &auth.Error{Kind: auth.KindNotFound, Message: "user not found"}
	}
	return u, nil
}

func (m *mockProfileService) UpdateProfile(ctx context.Context, userID string, p models.Profile) (*models.User, error) {
	if strings.Contains(p.FirstName, "\n") {
		return nil, &auth.Error{Kind: auth.KindValidation, Message: "first name: name must not contain control characters"}
	}
	u, err := m.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	u.FirstName, u.LastName = p.FirstName, p.LastName
	return u, nil
}

func (m *mockProfileService) ListUsers(context.Context) ([]*models.User, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return []*models.User{m.users["user-1"], m.users["user-2"]}, nil
}

func authedRequest(method, target, body, userID string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if userID != "" {
		req = req.WithContext(WithUserID(req.Context(), userID))
	}
	return req
}

func TestProfileHandler_Get(t *testing.T) {
	h := NewProfileHandler(setupTestLogger(), newMockProfileService())

	tests := []struct {
		name     string
		userID   string
		wantCode int
	}{
		{name: "own profile", userID: "user-2", wantCode: http.StatusOK},
		{name: "deleted user", userID: "ghost", wantCode: http.StatusBadRequest},
		{name: "unauthenticated", wantCode: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			h.Get(w, authedRequest(http.MethodGet, "/api/v1/profile", "", tt.userID))

			assert.Equal(t, tt.wantCode, w.Code)
			if tt.wantCode == http.StatusOK {
				var u api.User
				require.NoError(t, json.NewDecoder(w.Body).Decode(&u))
				assert.Equal(t, "Bob", u.FirstName)
			}
		})
	}
}

func TestProfileHandler_Update(t *testing.T) {
	h := NewProfileHandler(setupTestLogger(), newMockProfileService())

	t.Run("updated", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.Update(w, authedRequest(http.MethodPut, "/api/v1/profile",
			`{"firstName":"Alice","lastName":"Liddell"}`, "user-1"))

		require.Equal(t, http.StatusOK, w.Code)
		var u api.User
		require.NoError(t, json.NewDecoder(w.Body).Decode(&u))
		assert.Equal(t, api.User{ID: "user-1", Email: "alice@x.com", FirstName: "Alice", LastName: "Liddell"}, u)
	})

	t.Run("invalid name", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.Update(w, authedRequest(http.MethodPut, "/api/v1/profile",
			`{"firstName":"A\nB"}`, "user-1"))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "ValidationError", decodeError(t, w.Body).ErrorKind)
	})

	t.Run("bad body", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.Update(w, authedRequest(http.MethodPut, "/api/v1/profile", `[`, "user-1"))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestProfileHandler_ListUsers(t *testing.T) {
	svc := newMockProfileService()
	h := NewProfileHandler(setupTestLogger(), svc)

	w := httptest.NewRecorder()
	h.ListUsers(w, authedRequest(http.MethodGet, "/api/v1/users", "", "user-1"))

	require.Equal(t, http.StatusOK, w.Code)
	var body api.UsersResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	require.Len(t, body.Users, 2)
	assert.Equal(t, "bob@x.com", body.Users[1].Email)

	svc.listErr = &auth.Error{Kind: auth.KindDependency, Message: auth.GenericMessage}
	w = httptest.NewRecorder()
	h.ListUsers(w, authedRequest(http.MethodGet, "/api/v1/users", "", "user-1"))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
