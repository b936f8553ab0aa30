package auth

import (
	"encoding/json"
	"net/http"
	"time"

	"messagely/internal/common"
	"messagely/internal/services"
	"messagely/internal/utils"
)

type TokenResponse struct {
	Token string `json:"token"`
}

type RegisterHandler struct {
	Users     *services.UserService
	JWTSecret []byte
	JWTTTL    time.Duration
}

// ServeHTTP handles POST /auth/register
func (h *RegisterHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req services.RegisterInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.Error(w, r, common.ValidationError("Invalid request body"))
		return
	}

	user, err := h.Users.Register(r.Context(), req)
	if err != nil {
		utils.Error(w, r, err)
		return
	}

	token, err := utils.GenerateJWT(user.Username, h.JWTSecret, h.JWTTTL)
	if err != nil {
		utils.Error(w, r, err)
		return
	}

	utils.LoggerFrom(r.Context()).WithField("user", user.Username).Info("user registered")
	utils.JSON(w, http.StatusOK, TokenResponse{Token: token})
}
