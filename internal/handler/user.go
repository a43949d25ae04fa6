package handler

import (
	"encoding/json"
	"mime"
	"net/http"
	"strconv"

	"github.com/clickfit/clickfit/internal/service"
)

type UserHandler struct {
	userService *service.UserService
}

func NewUserHandler(userService *service.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

type createUserRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Type     string `json:"type"`
	Active   *bool  `json:"active"`
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.userService.List(r.Context())
	if err != nil {
		writeServiceError(w, r, err, "Error retrieving users")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"count":   len(users),
		"users":   users,
	})
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, err := h.userService.ByID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err, "Error retrieving user")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user":    user,
	})
}

// Create accepts a JSON body or a urlencoded/multipart form
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeCreateUser(w, r)
	if !ok {
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "INVALID_INPUT", "Email and password required")
		return
	}

	user, err := h.userService.Create(r.Context(), service.CreateUserInput{
		Email:    req.Email,
		Password: req.Password,
		Type:     req.Type,
		Active:   req.Active,
	})
	if err != nil {
		writeServiceError(w, r, err, "Error creating user")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"userId":  user.ID,
		"message": "User created successfully",
	})
}

func decodeCreateUser(w http.ResponseWriter, r *http.Request) (createUserRequest, bool) {
	var req createUserRequest
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		err := json.NewDecoder(r.Body).Decode(&req)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_INPUT", "Invalid JSON body")
			return req, false
		}
		return req, true
	}

	var err error
	if mediaType == "multipart/form-data" {
		err = r.ParseMultipartForm(1 << 20)
	} else {
		err = r.ParseForm()
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_INPUT", "Invalid form body")
		return req, false
	}

	req.Email = r.FormValue("email")
	req.Password = r.FormValue("password")
	req.Type = r.FormValue("type")
	if raw := r.FormValue("active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_INPUT", "active must be true or false")
			return req, false
		}
		req.Active = &active
	}
	return req, true
}
