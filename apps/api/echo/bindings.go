package echoapi

import (
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/cheo/core"
)

var limitParam = "limit"

// bindID reads a positive integer path param. Anything else is a 404.
func bindID(ctx echo.Context, name string) (int, error) {
	id, err := strconv.Atoi(ctx.Param(name))
	if err != nil || id <= 0 {
		return 0, errHttpNotFound
	}
	return id, nil
}

// bindLimit reads the limit query param. 0 leaves the default to the service.
func bindLimit(ctx echo.Context) (int, error) {
	val := ctx.QueryParam(limitParam)
	if val == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(val)
	if err != nil {
		return 0, core.NewValidationError(
			errors.Errorf("invalid limit %q", val),
			core.FieldError{Field: limitParam, Error: "must be an integer"},
		)
	}
	return limit, nil
}
