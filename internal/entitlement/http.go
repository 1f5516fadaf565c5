// Copyright (c) 2026 Coursehub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package entitlement

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/coursehub/internal/platform/apperr"
	requestutil "github.com/taibuivan/coursehub/internal/platform/request"
	"github.com/taibuivan/coursehub/internal/platform/respond"
	"github.com/taibuivan/coursehub/internal/platform/validate"
	"github.com/taibuivan/coursehub/internal/session"
)

// ParamCourseID is the URL parameter carrying the course id.
const ParamCourseID = "courseID"

// Handler exposes access checks to the browser so protected views can
// redirect before requesting content.
type Handler struct {
	registry *session.Registry
	checker  *Checker
}

// NewHandler constructs a new [Handler].
func NewHandler(registry *session.Registry, checker *Checker) *Handler {
	return &Handler{registry: registry, checker: checker}
}

// Routes is mounted at /courses/{courseID}/access.
//
// # Endpoints
//   - GET / : 200 with the decision, 403 when not entitled, 401 when anonymous.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()
	router.Get("/", handler.access)
	return router
}

// access handles GET /api/v1/courses/{courseID}/access.
func (handler *Handler) access(writer http.ResponseWriter, request *http.Request) {
	courseID := requestutil.Param(request, ParamCourseID)

	validator := &validate.Validator{}
	if err := validator.CourseID(ParamCourseID, courseID).Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	_, snapshot, err := handler.registry.RequireUser(request.Context())
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	decision := handler.checker.Check(request.Context(), snapshot.User(), courseID)
	if !decision.Entitled {
		respond.Error(writer, request, apperr.Forbidden("You have not purchased this course"))
		return
	}

	respond.OK(writer, decision)
}
