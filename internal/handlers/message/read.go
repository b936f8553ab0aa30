package message

import (
	"net/http"

	"messagely/internal/common"
	"messagely/internal/middleware"
	"messagely/internal/models"
	"messagely/internal/services"
	"messagely/internal/utils"
)

type ReadResult struct {
	Results *models.ReadReceipt `json:"results"`
}

type ReadResponse struct {
	Message ReadResult `json:"message"`
}

type MarkReadHandler struct {
	Messages *services.MessageService
}

// ServeHTTP handles POST /messages/{id}/read. Only the recipient may mark a
// message read.
func (h *MarkReadHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
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
	if caller != msg.ToUser.Username {
		utils.Error(w, r, common.AuthError("Unauthorized."))
		return
	}

	receipt, err := h.Messages.MarkRead(r.Context(), id)
	if err != nil {
		utils.Error(w, r, err)
		return
	}

	utils.JSON(w, http.StatusOK, ReadResponse{Message: ReadResult{Results: receipt}})
}
