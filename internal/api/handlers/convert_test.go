package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bizportal.io/portal/internal/domain"
	apperrors "bizportal.io/portal/internal/pkg/errors"
)

func TestDefaultPagination(t *testing.T) {
	tests := []struct {
		page, perPage         int
		wantPage, wantPerPage int
	}{
		{0, 0, 1, defaultPerPage},
		{-3, 10, 1, 10},
		{4, 5000, 4, maxPerPage},
		{20_000_000, 200, maxPage, maxPerPage},
	}
	for _, tc := range tests {
		page, perPage := defaultPagination(tc.page, tc.perPage)
		assert.Equal(t, tc.wantPage, page)
		assert.Equal(t, tc.wantPerPage, perPage)
	}
}

func queryContext(rawQuery string) *gin.Context {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/logs?"+rawQuery, nil)
	return c
}

func TestLogFilterFromQuery(t *testing.T) {
	f, err := logFilterFromQuery(queryContext(
		"action=RELEASED&plan_id=plan-1&customer_id=cust-1&port_id=port-1&q=+acme+" +
			"&from=2026-01-01T00:00:00Z&to=2026-02-01T00:00:00Z"))
	require.NoError(t, err)
	assert.Equal(t, domain.ActionReleased, f.Action)
	assert.Equal(t, "plan-1", f.PlanID)
	assert.Equal(t, "cust-1", f.CustomerID)
	assert.Equal(t, "port-1", f.PortID)
	assert.Equal(t, "acme", f.Search)
	require.NotNil(t, f.From)
	require.NotNil(t, f.To)

	for _, bad := range []string{
		"action=EXPLODED",
		"from=yesterday",
		"from=2026-02-01T00:00:00Z&to=2026-01-01T00:00:00Z",
	} {
		_, err := logFilterFromQuery(queryContext(bad))
		assert.True(t, apperrors.HasCode(err, apperrors.CodeValidationFailed), bad)
	}
}

func TestValidationErrorCarriesFields(t *testing.T) {
	err := validate.Struct(&createPortRequest{InstanceURL: "nope"})
	require.Error(t, err)

	appErr := validationError(err)
	assert.Equal(t, http.StatusBadRequest, appErr.HTTPStatus)
	fields := map[string]string{}
	for _, fe := range appErr.FieldErrors {
		fields[fe.Field] = fe.Code
	}
	assert.Equal(t, "url", fields["InstanceURL"])
	assert.Equal(t, "required", fields["DBName"])
}
