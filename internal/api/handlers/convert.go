package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"bizportal.io/portal/internal/domain"
	"bizportal.io/portal/internal/governance/audit"
	apperrors "bizportal.io/portal/internal/pkg/errors"
)

const (
	defaultPerPage = 50
	maxPerPage     = 200
	maxPage        = 100000
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// defaultPagination normalizes page/perPage from query params.
func defaultPagination(page, perPage int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if page > maxPage {
		page = maxPage
	}
	if perPage <= 0 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	return page, perPage
}

func paginationFromQuery(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.Query("page"))
	perPage, _ := strconv.Atoi(c.Query("per_page"))
	return defaultPagination(page, perPage)
}

// bindJSON decodes the body into req and runs struct validation. An empty
// body is accepted when allowEmpty is set.
func bindJSON(c *gin.Context, req any, allowEmpty bool) bool {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		if !allowEmpty {
			_ = c.Error(apperrors.BadRequest(apperrors.CodeValidationFailed, "request body is required"))
			return false
		}
	} else if err := c.ShouldBindJSON(req); err != nil {
		_ = c.Error(apperrors.Wrap(err, apperrors.CodeValidationFailed, "malformed request body", http.StatusBadRequest))
		return false
	}

	if err := validate.Struct(req); err != nil {
		_ = c.Error(validationError(err))
		return false
	}
	return true
}

func validationError(err error) *apperrors.AppError {
	appErr := apperrors.BadRequest(apperrors.CodeValidationFailed, "request validation failed")
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		appErr.Err = err
		return appErr
	}
	fields := make([]apperrors.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, apperrors.FieldError{
			Field: fe.Field(),
			Code:  fe.Tag(),
		})
	}
	return appErr.WithFieldErrors(fields)
}

// logFilterFromQuery reads the shared filter parameters of the log list and
// export endpoints.
func logFilterFromQuery(c *gin.Context) (audit.Filter, error) {
	f := audit.Filter{
		Action:     domain.AllocationAction(strings.TrimSpace(c.Query("action"))),
		PlanID:     strings.TrimSpace(c.Query("plan_id")),
		CustomerID: strings.TrimSpace(c.Query("customer_id")),
		PortID:     strings.TrimSpace(c.Query("port_id")),
		Search:     strings.TrimSpace(c.Query("q")),
	}
	if f.Action != "" && !f.Action.Valid() {
		return f, apperrors.BadRequest(apperrors.CodeValidationFailed, "unknown action").
			WithParams(map[string]interface{}{"action": string(f.Action)})
	}

	for _, p := range []struct {
		name string
		dst  **time.Time
	}{{"from", &f.From}, {"to", &f.To}} {
		raw := strings.TrimSpace(c.Query(p.name))
		if raw == "" {
			continue
		}
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return f, apperrors.Wrap(err, apperrors.CodeValidationFailed, p.name+" must be an RFC 3339 timestamp", http.StatusBadRequest)
		}
		*p.dst = &ts
	}
	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		return f, apperrors.BadRequest(apperrors.CodeValidationFailed, "to must not be before from")
	}
	return f, nil
}
