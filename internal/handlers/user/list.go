package user

import (
	"net/http"

	"messagely/internal/models"
	"messagely/internal/services"
	"messagely/internal/utils"
)

type ListResponse struct {
	Users []models.UserSummary `json:"users"`
}

type ListHandler struct {
	Users *services.UserService
}

// ServeHTTP handles GET /users/
func (h *ListHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	users, err := h.Users.All(r.Context())
	if err != nil {
		utils.Error(w, r, err)
		return
	}
	utils.JSON(w, http.StatusOK, ListResponse{Users: users})
}
