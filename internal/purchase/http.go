// Copyright (c) 2026 Coursehub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package purchase

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	requestutil "github.com/taibuivan/coursehub/internal/platform/request"
	"github.com/taibuivan/coursehub/internal/platform/respond"
	"github.com/taibuivan/coursehub/internal/platform/validate"
	"github.com/taibuivan/coursehub/internal/session"
)

// ParamCourseID is the URL parameter carrying the course id.
const ParamCourseID = "courseID"

// Handler exposes the checkout workflow to the browser.
type Handler struct {
	registry    *session.Registry
	coordinator *Coordinator
}

// NewHandler constructs a new [Handler].
func NewHandler(registry *session.Registry, coordinator *Coordinator) *Handler {
	return &Handler{registry: registry, coordinator: coordinator}
}

// Routes is mounted at /courses/{courseID}/checkout.
//
// # Endpoints
//   - GET  /        : Current checkout state.
//   - POST /        : Create a gateway order.
//   - POST /confirm : Verify the gateway payment reference.
//   - POST /cancel  : Gateway dismissed.
//   - POST /fail    : Gateway reported payment.failed.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	router.Get("/", handler.status)
	router.Post("/", handler.begin)
	router.Post("/confirm", handler.confirm)
	router.Post("/cancel", handler.cancel)
	router.Post("/fail", handler.fail)

	return router
}

// HistoryRoutes is mounted at /purchases.
//
// # Endpoints
//   - GET / : Recorded checkout attempts of the signed-in user.
func (handler *Handler) HistoryRoutes() chi.Router {
	router := chi.NewRouter()
	router.Get("/", handler.history)
	return router
}

// resolve validates the course id and returns the caller's session loader.
func (handler *Handler) resolve(writer http.ResponseWriter, request *http.Request) (*session.Loader, session.Snapshot, string, bool) {
	courseID := requestutil.Param(request, ParamCourseID)

	validator := &validate.Validator{}
	if err := validator.CourseID(ParamCourseID, courseID).Err(); err != nil {
		respond.Error(writer, request, err)
		return nil, session.Snapshot{}, "", false
	}

	loader, snapshot, err := handler.registry.RequireUser(request.Context())
	if err != nil {
		respond.Error(writer, request, err)
		return nil, session.Snapshot{}, "", false
	}

	return loader, snapshot, courseID, true
}

// status handles GET /api/v1/courses/{courseID}/checkout.
func (handler *Handler) status(writer http.ResponseWriter, request *http.Request) {
	_, snapshot, courseID, ok := handler.resolve(writer, request)
	if !ok {
		return
	}

	respond.OK(writer, handler.coordinator.State(snapshot.User().ID, courseID))
}

// begin handles POST /api/v1/courses/{courseID}/checkout.
func (handler *Handler) begin(writer http.ResponseWriter, request *http.Request) {
	loader, _, courseID, ok := handler.resolve(writer, request)
	if !ok {
		return
	}

	status, err := handler.coordinator.Begin(request.Context(), loader, courseID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Created(writer, status)
}

type confirmRequest struct {
	PaymentID string `json:"payment_id"`
	OrderID   string `json:"order_id"`
	Signature string `json:"signature"`
}

// confirmResponse carries the refreshed session so the browser can update
// its views without another round trip.
type confirmResponse struct {
	Result
	Session session.View `json:"session"`
}

// confirm handles POST /api/v1/courses/{courseID}/checkout/confirm.
func (handler *Handler) confirm(writer http.ResponseWriter, request *http.Request) {
	var input confirmRequest
	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	loader, _, courseID, ok := handler.resolve(writer, request)
	if !ok {
		return
	}

	result, err := handler.coordinator.Complete(request.Context(), loader, courseID, PaymentReference{
		PaymentID: input.PaymentID,
		OrderID:   input.OrderID,
		Signature: input.Signature,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, confirmResponse{Result: result, Session: session.NewView(loader.Snapshot())})
}

// cancel handles POST /api/v1/courses/{courseID}/checkout/cancel.
func (handler *Handler) cancel(writer http.ResponseWriter, request *http.Request) {
	loader, _, courseID, ok := handler.resolve(writer, request)
	if !ok {
		return
	}

	status, err := handler.coordinator.Cancel(request.Context(), loader, courseID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, status)
}

type failRequest struct {
	Reason string `json:"reason"`
}

// fail handles POST /api/v1/courses/{courseID}/checkout/fail.
func (handler *Handler) fail(writer http.ResponseWriter, request *http.Request) {
	var input failRequest
	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	validator := &validate.Validator{}
	if err := validator.MaxLen("reason", input.Reason, 500).Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	loader, _, courseID, ok := handler.resolve(writer, request)
	if !ok {
		return
	}

	status, err := handler.coordinator.Fail(request.Context(), loader, courseID, input.Reason)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, status)
}

// history handles GET /api/v1/purchases?limit=N.
func (handler *Handler) history(writer http.ResponseWriter, request *http.Request) {
	_, snapshot, err := handler.registry.RequireUser(request.Context())
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	limit, _ := strconv.Atoi(request.URL.Query().Get("limit"))

	attempts, err := handler.coordinator.History(request.Context(), snapshot.User().ID, limit)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	if attempts == nil {
		attempts = []Attempt{}
	}

	respond.OK(writer, attempts)
}
