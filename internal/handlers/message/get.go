package message

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"messagely/internal/common"
	"messagely/internal/middleware"
	"messagely/internal/models"
	"messagely/internal/services"
	"messagely/internal/utils"
)

type DetailResponse struct {
	Message *models.MessageDetail `json:"message"`
}

type GetHandler struct {
	Messages *services.MessageService
}

// ServeHTTP handles GET /messages/{id}. Only the sender or the recipient may
// see the message.
func (h *GetHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.Username(r.Context())
	if !ok {
		utils.Error(w, r, common.AuthError("Unauthorized"))
		return
	}

	id, err := messageID(r)
	if err != nil {
		utils.Error(w, r, err)
		return
	}

	msg, err := h.Messages.Get(r.Context(), id)
	if err != nil {
		utils.Error(w, r, err)
		return
	}
	if caller != msg.FromUser.Username && caller != msg.ToUser.Username {
		utils.Error(w, r, common.AuthError("Unauthorized."))
		return
	}

	utils.JSON(w, http.StatusOK, DetailResponse{Message: msg})
}

// messageID parses the {id} path segment. Anything that is not a positive
// integer cannot name a message.
func messageID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, common.NotFoundError("No such message.")
	}
	return id, nil
}
