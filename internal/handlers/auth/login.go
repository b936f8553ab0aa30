package auth

import (
	"encoding/json"
	"net/http"
	"time"

	"messagely/internal/common"
	"messagely/internal/services"
	"messagely/internal/utils"
)

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginHandler struct {
	Users     *services.UserService
	JWTSecret []byte
	JWTTTL    time.Duration
}

// ServeHTTP handles POST /auth/login
func (h *LoginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.Error(w, r, common.ValidationError("Invalid request body"))
		return
	}
	if req.Username == "" || req.Password == "" {
		utils.Error(w, r, common.ValidationError("Username and password required."))
		return
	}

	// 1. Verify credentials; an unknown username surfaces as an AuthError
	ok, err := h.Users.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		utils.Error(w, r, err)
		return
	}
	if !ok {
		utils.Error(w, r, common.ValidationError("Invalid username/password."))
		return
	}

	// 2. Stamp the login
	if err := h.Users.UpdateLoginTimestamp(r.Context(), req.Username); err != nil {
		utils.Error(w, r, err)
		return
	}

	// 3. Issue the token
	token, err := utils.GenerateJWT(req.Username, h.JWTSecret, h.JWTTTL)
	if err != nil {
		utils.Error(w, r, err)
		return
	}

	utils.JSON(w, http.StatusOK, TokenResponse{Token: token})
}
