package user

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"messagely/internal/models"
	"messagely/internal/services"
	"messagely/internal/utils"
)

type DetailResponse struct {
	User *models.User `json:"user"`
}

type DetailHandler struct {
	Users *services.UserService
}

// ServeHTTP handles GET /users/{username}
func (h *DetailHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	user, err := h.Users.Get(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		utils.Error(w, r, err)
		return
	}
	utils.JSON(w, http.StatusOK, DetailResponse{User: user})
}
