package handler

import (
	"encoding/json"
	"net/http"

	"github.com/eduflow/billing-engine/internal/domain"
	"github.com/eduflow/billing-engine/pkg/response"
)

// AccessControl runs one of the batch sweeps on demand. The sweeps are
// idempotent, so external schedulers may hit this endpoint as often as they
// like.
func (h *BillingHandler) AccessControl(w http.ResponseWriter, r *http.Request) {
	var req domain.AccessControlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", err)
		return
	}
	if !req.Action.Valid() {
		response.BadRequest(w, "Unknown access control action", nil)
		return
	}

	summary, err := h.service.RunAccessControl(r.Context(), req.Action)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.Success(w, summary)
}
