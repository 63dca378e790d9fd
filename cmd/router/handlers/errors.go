package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/moogar0880/problems"

	"github.com/lyzr/workflow-router/cmd/router/service"
	"github.com/lyzr/workflow-router/common/clients"
	"github.com/lyzr/workflow-router/common/editor"
	"github.com/lyzr/workflow-router/common/logger"
	"github.com/lyzr/workflow-router/common/store"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// requestError is a malformed or invalid request body or parameter
type requestError struct {
	detail string
	err    error
}

func (e *requestError) Error() string {
	if e.err != nil {
		return e.detail + ": " + e.err.Error()
	}
	return e.detail
}

func (e *requestError) Unwrap() error {
	return e.err
}

func badRequestErr(detail string, err error) error {
	return &requestError{detail: detail, err: err}
}

// bind decodes the body into req and validates it
func bind(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return badRequestErr("invalid request body", err)
	}
	if err := validate.Struct(req); err != nil {
		return badRequestErr("validation failed", err)
	}
	return nil
}

func problem(c echo.Context, status int, kind, detail string) error {
	p := problems.NewStatusProblem(status).
		WithInstance(c.Path()).
		WithType(kind).
		WithDetail(detail)
	return c.JSON(status, p)
}

func notFound(c echo.Context, detail string) error {
	return problem(c, http.StatusNotFound, "not_found", detail)
}

// handleServiceError maps service and store errors to problem responses
func handleServiceError(c echo.Context, log *logger.Logger, err error) error {
	var reqErr *requestError
	var schemaErr *clients.SchemaError
	var statusErr *clients.StatusError

	switch {
	case errors.As(err, &reqErr):
		return problem(c, http.StatusBadRequest, "validation_error", reqErr.Error())

	case errors.Is(err, store.ErrNotFound):
		return problem(c, http.StatusNotFound, "not_found", "resource not found")

	case errors.Is(err, editor.ErrUnknownNode):
		return problem(c, http.StatusNotFound, "node_not_found", "node is not on the canvas")

	case errors.Is(err, editor.ErrUnknownEdge):
		return problem(c, http.StatusNotFound, "edge_not_found", "edge is not on the canvas")

	case errors.Is(err, editor.ErrSaveInProgress):
		return problem(c, http.StatusConflict, "save_in_progress", "a save of this workflow is already running")

	case errors.Is(err, service.ErrBadPassword), errors.Is(err, service.ErrInvalidToken):
		return problem(c, http.StatusUnauthorized, "unauthorized", "invalid credentials")

	case errors.Is(err, clients.ErrGeneratorDisabled):
		return problem(c, http.StatusServiceUnavailable, "generator_disabled", "workflow generation is not configured")

	case errors.As(err, &schemaErr):
		return problem(c, http.StatusBadGateway, "invalid_generation", schemaErr.Error())

	case errors.Is(err, clients.ErrNoStructuredResult):
		return problem(c, http.StatusBadGateway, "invalid_generation", "the generator did not return structured output")

	case errors.As(err, &statusErr):
		log.Warn("generator upstream error", "status", statusErr.StatusCode, "path", c.Path())
		return problem(c, http.StatusBadGateway, "upstream_error", "the generator request failed")

	case errors.Is(err, context.DeadlineExceeded):
		return problem(c, http.StatusGatewayTimeout, "timeout", "the request timed out")

	default:
		ctx := c.Request().Context()
		log.WithContext(ctx).ErrorContext(ctx, "request failed", "path", c.Path(), "error", err)
		p := problems.NewStatusProblem(http.StatusInternalServerError).
			WithInstance(c.Path()).
			WithType("internal_error").
			WithError(err)
		return c.JSON(http.StatusInternalServerError, p)
	}
}
