package message

import (
	"encoding/json"
	"net/http"

	"messagely/internal/common"
	"messagely/internal/middleware"
	"messagely/internal/models"
	"messagely/internal/services"
	"messagely/internal/utils"
)

type CreateRequest struct {
	ToUsername string `json:"to_username"`
	Body       string `json:"body"`
}

type CreateResponse struct {
	Message *models.Message `json:"message"`
}

type CreateHandler struct {
	Messages *services.MessageService
}

// ServeHTTP handles POST /messages/. The sender is always the caller.
func (h *CreateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.Username(r.Context())
	if !ok {
		utils.Error(w, r, common.AuthError("Unauthorized"))
		return
	}

	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.Error(w, r, common.ValidationError("Invalid request body"))
		return
	}

	msg, err := h.Messages.Create(r.Context(), services.NewMessage{
		FromUsername: caller,
		ToUsername:   req.ToUsername,
		Body:         req.Body,
	})
	if err != nil {
		utils.Error(w, r, err)
		return
	}

	utils.LoggerFrom(r.Context()).WithField("message_id", msg.ID).Info("message sent")
	utils.JSON(w, http.StatusOK, CreateResponse{Message: msg})
}
