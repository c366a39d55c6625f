package group

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/mzahran/huddle/pkg/middleware"
	"github.com/mzahran/huddle/pkg/response"
)

// Handler handles HTTP requests for group and membership operations
type Handler struct {
	service  *Service
	validate *validator.Validate
}

// NewHandler creates a new group handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service, validate: validator.New()}
}

// Routes returns the router for group endpoints
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Post("/join", h.JoinByCode)
	r.Post("/direct", h.DirectChat)
	r.Get("/{id}", h.GetByID)
	r.Put("/{id}", h.Rename)
	r.Post("/{id}/regenerate-code", h.RegenerateJoinCode)
	r.Post("/{id}/leave", h.Leave)

	// Member management
	r.Post("/{id}/members", h.AddMember)
	r.Get("/{id}/members", h.GetMembers)
	r.Get("/{id}/members/pending", h.GetPendingMembers)
	r.Delete("/{id}/members/{userId}", h.RemoveMember)
	r.Put("/{id}/members/{userId}/role", h.UpdateMemberRole)
	r.Put("/{id}/members/{userId}/permission", h.ToggleAdminPermission)
	r.Put("/{id}/members/{userId}/status", h.UpdateMemberStatus)

	return r
}

// serviceError maps service errors to HTTP responses. Permission denials map
// to 403 with the specific reason; state conflicts to 409; lookups to 404.
func serviceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrGroupNotFound),
		errors.Is(err, ErrMemberNotFound),
		errors.Is(err, ErrInvalidJoinCode):
		response.NotFound(w, err.Error())
	case errors.Is(err, ErrAlreadyMember), errors.Is(err, ErrAlreadyPending):
		response.Conflict(w, err.Error())
	case errors.Is(err, ErrInvalidRole), errors.Is(err, ErrInvalidStatus):
		response.BadRequest(w, err.Error())
	case IsPermissionDenied(err):
		response.Forbidden(w, err.Error())
	default:
		response.InternalError(w, "Something went wrong")
	}
}

// Create handles POST /groups
// @Summary      Create a new group
// @Description  Create a group with a fresh join code; the creator becomes its owner and initial members are added as active
// @Tags         groups
// @Accept       json
// @Produce      json
// @Param        request body CreateGroupBody true "Group creation request"
// @Success      201 {object} response.APIResponse{data=GroupResponse}
// @Failure      400 {object} response.APIResponse
// @Router       /groups [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	var body CreateGroupBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}
	if err := h.validate.Struct(&body); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	group, err := h.service.Create(r.Context(), userID, &CreateGroupRequest{
		Name:             body.Name,
		RequiresApproval: body.RequiresApproval,
		MemberIDs:        body.MemberIDs,
		Roles:            body.Roles,
	})
	if err != nil {
		serviceError(w, err)
		return
	}

	response.JSON(w, http.StatusCreated, group.ToResponse())
}

// List handles GET /groups
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))

	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}

	groups, total, err := h.service.ListByUserID(r.Context(), userID, page, perPage)
	if err != nil {
		response.InternalError(w, "Failed to list groups")
		return
	}

	groupResponses := make([]*GroupResponse, len(groups))
	for i, g := range groups {
		groupResponses[i] = g.ToResponse()
	}

	totalPages := (total + perPage - 1) / perPage
	meta := &response.Meta{
		Page:       page,
		PerPage:    perPage,
		Total:      total,
		TotalPages: totalPages,
	}

	response.JSONWithMeta(w, http.StatusOK, groupResponses, meta)
}

// GetByID handles GET /groups/{id}
func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
	groupID, err := groupIDParam(r)
	if err != nil {
		response.BadRequest(w, "Invalid group ID")
		return
	}

	group, err := h.service.GetByID(r.Context(), groupID)
	if err != nil {
		serviceError(w, err)
		return
	}

	members, err := h.service.GetGroupMembers(r.Context(), groupID)
	if err != nil {
		serviceError(w, err)
		return
	}

	groupResp := group.ToResponse()
	groupResp.Members = make([]*MemberResponse, len(members))
	for i, m := range members {
		groupResp.Members[i] = m.ToResponse()
	}

	response.JSON(w, http.StatusOK, groupResp)
}

// Rename handles PUT /groups/{id}
func (h *Handler) Rename(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	groupID, err := groupIDParam(r)
	if err != nil {
		response.BadRequest(w, "Invalid group ID")
		return
	}

	var body RenameGroupBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}
	if err := h.validate.Struct(&body); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	group, err := h.service.Rename(r.Context(), groupID, body.Name, userID)
	if err != nil {
		serviceError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, group.ToResponse())
}

// JoinByCode handles POST /groups/join
// @Summary      Join a group by code
// @Description  Join the group behind a share code; lands as pending when the group requires approval
// @Tags         groups
// @Accept       json
// @Produce      json
// @Param        request body JoinByCodeBody true "Join request"
// @Success      200 {object} response.APIResponse{data=JoinResponse}
// @Failure      404 {object} response.APIResponse
// @Failure      409 {object} response.APIResponse
// @Router       /groups/join [post]
func (h *Handler) JoinByCode(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	var body JoinByCodeBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}
	if err := h.validate.Struct(&body); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	result, err := h.service.JoinByCode(r.Context(), body.Code, userID)
	if err != nil {
		serviceError(w, err)
		return
	}

	groupResp := result.Group.ToResponse()
	groupResp.JoinCode = "" // never echo the code back to a joiner
	response.JSON(w, http.StatusOK, &JoinResponse{Status: result.Status, Group: groupResp})
}

// DirectChat handles POST /groups/direct
func (h *Handler) DirectChat(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	var body DirectChatBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}
	if err := h.validate.Struct(&body); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	groupID, err := h.service.GetOrCreateDirectChat(r.Context(), userID, body.UserID)
	if err != nil {
		serviceError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, map[string]int64{"group_id": groupID})
}

// RegenerateJoinCode handles POST /groups/{id}/regenerate-code
func (h *Handler) RegenerateJoinCode(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	groupID, err := groupIDParam(r)
	if err != nil {
		response.BadRequest(w, "Invalid group ID")
		return
	}

	code, err := h.service.RegenerateJoinCode(r.Context(), groupID, userID)
	if err != nil {
		serviceError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, map[string]string{"join_code": code})
}

// Leave handles POST /groups/{id}/leave
func (h *Handler) Leave(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	groupID, err := groupIDParam(r)
	if err != nil {
		response.BadRequest(w, "Invalid group ID")
		return
	}

	if err := h.service.LeaveGroup(r.Context(), groupID, userID); err != nil {
		serviceError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, map[string]string{"message": "Left group successfully"})
}

// AddMember handles POST /groups/{id}/members
// @Summary      Add member to group
// @Description  Add a user to the group; idempotent for existing members
// @Tags         groups
// @Accept       json
// @Produce      json
// @Param        id path int true "Group ID"
// @Param        request body AddMemberBody true "Member to add"
// @Success      201 {object} response.APIResponse{data=MemberResponse}
// @Failure      403 {object} response.APIResponse
// @Failure      404 {object} response.APIResponse
// @Router       /groups/{id}/members [post]
func (h *Handler) AddMember(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	groupID, err := groupIDParam(r)
	if err != nil {
		response.BadRequest(w, "Invalid group ID")
		return
	}

	var body AddMemberBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}
	if err := h.validate.Struct(&body); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	// Only managers may add members directly.
	requester, err := h.service.store.GetMember(r.Context(), groupID, userID)
	if err != nil {
		response.InternalError(w, "Failed to add member")
		return
	}
	if !CanManageMembers(requester) {
		response.Forbidden(w, ErrNoManagePermission.Error())
		return
	}

	role := body.Role
	if role == "" {
		role = MemberRoleMember
	}
	if role == MemberRoleOwner {
		response.BadRequest(w, ErrInvalidRole.Error())
		return
	}
	status := body.Status
	if status == "" {
		status = MemberStatusActive
	}

	member, err := h.service.AddMember(r.Context(), groupID, body.UserID, role, status, false)
	if err != nil {
		serviceError(w, err)
		return
	}

	response.JSON(w, http.StatusCreated, member.ToResponse())
}

// GetMembers handles GET /groups/{id}/members
func (h *Handler) GetMembers(w http.ResponseWriter, r *http.Request) {
	groupID, err := groupIDParam(r)
	if err != nil {
		response.BadRequest(w, "Invalid group ID")
		return
	}

	members, err := h.service.GetGroupMembers(r.Context(), groupID)
	if err != nil {
		serviceError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, membersToResponse(members))
}

// GetPendingMembers handles GET /groups/{id}/members/pending
func (h *Handler) GetPendingMembers(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	groupID, err := groupIDParam(r)
	if err != nil {
		response.BadRequest(w, "Invalid group ID")
		return
	}

	// The approval queue is only visible to managers.
	requester, err := h.service.store.GetMember(r.Context(), groupID, userID)
	if err != nil {
		response.InternalError(w, "Failed to get pending members")
		return
	}
	if !CanManageMembers(requester) {
		response.Forbidden(w, ErrNoManagePermission.Error())
		return
	}

	members, err := h.service.GetPendingMembers(r.Context(), groupID)
	if err != nil {
		serviceError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, membersToResponse(members))
}

// RemoveMember handles DELETE /groups/{id}/members/{userId}
func (h *Handler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	requesterID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	groupID, targetID, err := memberParams(r)
	if err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	if err := h.service.RemoveMember(r.Context(), groupID, targetID, requesterID); err != nil {
		serviceError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, map[string]string{"message": "Member removed successfully"})
}

// UpdateMemberRole handles PUT /groups/{id}/members/{userId}/role
func (h *Handler) UpdateMemberRole(w http.ResponseWriter, r *http.Request) {
	requesterID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	groupID, targetID, err := memberParams(r)
	if err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	var body UpdateRoleBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	member, err := h.service.UpdateMemberRole(r.Context(), groupID, targetID, body.Role, requesterID)
	if err != nil {
		serviceError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, member.ToResponse())
}

// ToggleAdminPermission handles PUT /groups/{id}/members/{userId}/permission
func (h *Handler) ToggleAdminPermission(w http.ResponseWriter, r *http.Request) {
	requesterID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	groupID, targetID, err := memberParams(r)
	if err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	var body UpdatePermissionBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	member, err := h.service.ToggleAdminPermission(r.Context(), groupID, targetID, body.CanManageMembers, requesterID)
	if err != nil {
		serviceError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, member.ToResponse())
}

// UpdateMemberStatus handles PUT /groups/{id}/members/{userId}/status
func (h *Handler) UpdateMemberStatus(w http.ResponseWriter, r *http.Request) {
	requesterID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	groupID, targetID, err := memberParams(r)
	if err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	var body UpdateStatusBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	member, err := h.service.UpdateMemberStatus(r.Context(), groupID, targetID, body.Status, requesterID)
	if err != nil {
		serviceError(w, err)
		return
	}

	if member == nil {
		response.JSON(w, http.StatusOK, map[string]string{"message": "Join request rejected"})
		return
	}
	response.JSON(w, http.StatusOK, member.ToResponse())
}

func groupIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func memberParams(r *http.Request) (groupID, userID int64, err error) {
	groupID, err = strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, 0, errors.New("invalid group ID")
	}
	userID, err = strconv.ParseInt(chi.URLParam(r, "userId"), 10, 64)
	if err != nil {
		return 0, 0, errors.New("invalid user ID")
	}
	return groupID, userID, nil
}

func membersToResponse(members []*Membership) []*MemberResponse {
	out := make([]*MemberResponse, len(members))
	for i, m := range members {
		out[i] = m.ToResponse()
	}
	return out
}
