package user

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"messagely/internal/models"
	"messagely/internal/services"
	"messagely/internal/utils"
)

type InboxResponse struct {
	Messages []models.ReceivedMessage `json:"messages"`
}

type OutboxResponse struct {
	Messages []models.SentMessage `json:"messages"`
}

// MessagesToHandler lists what the user received.
type MessagesToHandler struct {
	Users *services.UserService
}

// ServeHTTP handles GET /users/{username}/to
func (h *MessagesToHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	messages, err := h.Users.MessagesTo(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		utils.Error(w, r, err)
		return
	}
	utils.JSON(w, http.StatusOK, InboxResponse{Messages: messages})
}

// MessagesFromHandler lists what the user sent.
type MessagesFromHandler struct {
	Users *services.UserService
}

// ServeHTTP handles GET /users/{username}/from
func (h *MessagesFromHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	messages, err := h.Users.MessagesFrom(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		utils.Error(w, r, err)
		return
	}
	utils.JSON(w, http.StatusOK, OutboxResponse{Messages: messages})
}
