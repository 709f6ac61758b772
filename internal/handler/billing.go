package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/eduflow/billing-engine/internal/domain"
	"github.com/eduflow/billing-engine/internal/service"
	customError "github.com/eduflow/billing-engine/pkg/errors"
	"github.com/eduflow/billing-engine/pkg/response"
)

type BillingHandler struct {
	service   *service.BillingService
	validator *validator.Validate
}

func NewBillingHandler(service *service.BillingService) *BillingHandler {
	return &BillingHandler{
		service:   service,
		validator: validator.New(),
	}
}

// Enroll creates an enrollment plus its initial payment obligation.
func (h *BillingHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	var req domain.EnrollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", err)
		return
	}
	if err := h.validator.Struct(&req); err != nil {
		response.BadRequest(w, "Validation failed", err)
		return
	}

	userID, _ := uuid.Parse(req.UserID)
	courseID, _ := uuid.Parse(req.CourseID)

	enrollment, payment, err := h.service.Enroll(r.Context(), userID, courseID, req.Notes)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.Created(w, domain.EnrollResponse{Enrollment: enrollment, Payment: payment})
}

// CreatePayment records a new payment obligation.
func (h *BillingHandler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	var req domain.CreatePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", err)
		return
	}
	if err := h.validator.Struct(&req); err != nil {
		response.BadRequest(w, "Validation failed", err)
		return
	}

	payment, err := h.service.CreatePayment(r.Context(), &req)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.Created(w, payment)
}

// UpdatePayment applies a PATCH to a payment; status changes trigger the
// reconciliation side effects.
func (h *BillingHandler) UpdatePayment(w http.ResponseWriter, r *http.Request) {
	paymentID, ok := pathUUID(w, r, "paymentId")
	if !ok {
		return
	}

	var req domain.UpdatePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", err)
		return
	}

	payment, err := h.service.UpdatePayment(r.Context(), paymentID, &req)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.Success(w, payment)
}

// DeletePayment removes a payment; PAID payments are refused with 409.
func (h *BillingHandler) DeletePayment(w http.ResponseWriter, r *http.Request) {
	paymentID, ok := pathUUID(w, r, "paymentId")
	if !ok {
		return
	}

	if err := h.service.DeletePayment(r.Context(), paymentID); err != nil {
		writeServiceError(w, err)
		return
	}

	response.NoContent(w)
}

// BulkPaymentAction applies one transition to many payments, best effort.
func (h *BillingHandler) BulkPaymentAction(w http.ResponseWriter, r *http.Request) {
	var req domain.BulkPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", err)
		return
	}
	if err := h.validator.Struct(&req); err != nil {
		response.BadRequest(w, "Validation failed", err)
		return
	}

	ids := make([]uuid.UUID, 0, len(req.IDs))
	for _, raw := range req.IDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			response.BadRequest(w, "Invalid payment id "+raw, err)
			return
		}
		ids = append(ids, id)
	}

	result, err := h.service.BulkPaymentAction(r.Context(), req.Action, ids)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.Success(w, result)
}

// ListPayments returns a filtered, paginated slice of the ledger.
func (h *BillingHandler) ListPayments(w http.ResponseWriter, r *http.Request) {
	filter, err := parsePaymentFilter(r)
	if err != nil {
		response.BadRequest(w, "Invalid filter", err)
		return
	}

	list, err := h.service.ListPayments(r.Context(), filter)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.Success(w, list)
}

// PaymentStats returns aggregate ledger statistics.
func (h *BillingHandler) PaymentStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.PaymentStats(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.Success(w, stats)
}

func parsePaymentFilter(r *http.Request) (domain.PaymentFilter, error) {
	var filter domain.PaymentFilter
	q := r.URL.Query()

	if raw := q.Get("status"); raw != "" {
		status := domain.PaymentStatus(raw)
		if !status.Valid() {
			return filter, customError.WrapInvalidArgument("unknown status " + raw)
		}
		filter.Status = &status
	}
	if raw := q.Get("payment_type"); raw != "" {
		ptype := domain.PaymentType(raw)
		if !ptype.Valid() {
			return filter, customError.WrapInvalidArgument("unknown payment_type " + raw)
		}
		filter.PaymentType = &ptype
	}
	if raw := q.Get("user_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return filter, customError.WrapInvalidArgument("user_id is not a valid UUID")
		}
		filter.UserID = &id
	}
	if raw := q.Get("course_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return filter, customError.WrapInvalidArgument("course_id is not a valid UUID")
		}
		filter.CourseID = &id
	}
	if raw := q.Get("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil {
			return filter, customError.WrapInvalidArgument("page must be an integer")
		}
		filter.Page = page
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return filter, customError.WrapInvalidArgument("limit must be an integer")
		}
		filter.Limit = limit
	}

	return filter, nil
}

func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)[name])
	if err != nil {
		response.BadRequest(w, name+" is not a valid UUID", err)
		return uuid.Nil, false
	}
	return id, true
}

// writeServiceError maps the error taxonomy onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case customError.IsNotFound(err):
		response.NotFound(w, err.Error())
	case customError.IsInvalidArgument(err):
		response.BadRequest(w, err.Error(), nil)
	case customError.IsConflict(err):
		response.Conflict(w, err.Error())
	case customError.IsInvalidState(err):
		response.UnprocessableEntity(w, err.Error())
	default:
		response.InternalServerError(w, "Internal server error", err)
	}
}
