package group

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mw "github.com/mzahran/huddle/pkg/middleware"
	"github.com/mzahran/huddle/pkg/response"
)

func doJSON(t *testing.T, router http.Handler, userID int64, method, path string, body any) (*httptest.ResponseRecorder, *response.APIResponse) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req = req.WithContext(mw.WithUserID(context.Background(), userID))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	resp := &response.APIResponse{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), resp))
	return rec, resp
}

func newTestRouter(t *testing.T) (http.Handler, *Service, *memStore) {
	t.Helper()
	svc, store, _ := newTestService()
	seedUsers(store)
	return NewHandler(svc).Routes(), svc, store
}

func TestHandler_CreateGroup(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec, resp := doJSON(t, router, ownerID, http.MethodPost, "/", CreateGroupBody{
		Name:             "Team",
		RequiresApproval: true,
	})
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, resp.Success)

	rec, resp = doJSON(t, router, ownerID, http.MethodPost, "/", CreateGroupBody{Name: ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, resp.Success)
}

func TestHandler_JoinUnknownCode(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec, resp := doJSON(t, router, joinerID, http.MethodPost, "/join", JoinByCodeBody{Code: "ZZZZZZ"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "NOT_FOUND", resp.Error.Code)
}

func TestHandler_PermissionDenialsMapTo403(t *testing.T) {
	router, svc, _ := newTestRouter(t)
	ctx := context.Background()
	group := createTeam(t, svc, false)

	// Second admin, both with full delegation: removal must still be denied.
	_, err := svc.AddMember(ctx, group.ID, joinerID, MemberRoleAdmin, MemberStatusActive, true)
	require.NoError(t, err)
	_, err = svc.ToggleAdminPermission(ctx, group.ID, adminID, true, ownerID)
	require.NoError(t, err)

	rec, resp := doJSON(t, router, adminID, http.MethodDelete,
		fmt.Sprintf("/%d/members/%d", group.ID, joinerID), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrAdminsCannotRemoveAdmin.Error(), resp.Error.Message)

	rec, resp = doJSON(t, router, adminID, http.MethodPut,
		fmt.Sprintf("/%d/members/%d/role", group.ID, memberID),
		UpdateRoleBody{Role: MemberRoleAdmin})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrOnlyOwnerCanChangeRoles.Error(), resp.Error.Message)
}

func TestHandler_AddMemberRequiresManager(t *testing.T) {
	router, svc, _ := newTestRouter(t)
	group := createTeam(t, svc, false)

	rec, _ := doJSON(t, router, memberID, http.MethodPost,
		fmt.Sprintf("/%d/members", group.ID),
		AddMemberBody{UserID: joinerID})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, resp := doJSON(t, router, ownerID, http.MethodPost,
		fmt.Sprintf("/%d/members", group.ID),
		AddMemberBody{UserID: joinerID})
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, resp.Success)
}

func TestHandler_AlreadyMemberConflict(t *testing.T) {
	router, svc, _ := newTestRouter(t)
	group := createTeam(t, svc, false)

	rec, resp := doJSON(t, router, memberID, http.MethodPost, "/join", JoinByCodeBody{Code: group.JoinCode})
	assert.Equal(t, http.StatusConflict, rec.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "CONFLICT", resp.Error.Code)
}

func TestHandler_JoinDoesNotEchoCode(t *testing.T) {
	router, svc, _ := newTestRouter(t)
	group := createTeam(t, svc, false)

	rec, resp := doJSON(t, router, joinerID, http.MethodPost, "/join", JoinByCodeBody{Code: group.JoinCode})
	require.Equal(t, http.StatusOK, rec.Code)

	payload, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	var join JoinResponse
	require.NoError(t, json.Unmarshal(payload, &join))
	assert.Equal(t, group.ID, join.Group.ID)
	assert.Empty(t, join.Group.JoinCode)
}
