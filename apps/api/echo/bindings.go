package echoapi

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
)

const orderingParam = "ordering"

type Ordering struct {
	Orderings []core.DBOrdering
}

// Bind reads `?ordering=a,-b` (a ascending, then b descending).
func (ord *Ordering) Bind(ctx echo.Context) {
	val := ctx.QueryParam(orderingParam)
	if val == "" {
		return
	}
	for _, field := range strings.Split(val, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field == "" {
			continue
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

func bindOrdering(ctx echo.Context) []core.DBOrdering {
	ord := new(Ordering)
	ord.Bind(ctx)
	return ord.Orderings
}

// bind binds the request into data; malformed bodies are client errors.
func bind(ctx echo.Context, data interface{}) error {
	if err := ctx.Bind(data); err != nil {
		if herr, ok := err.(*echo.HTTPError); ok {
			return core.NewValidationError(errors.Errorf("invalid request: %v", herr.Message))
		}
		return errors.Wrap(err, "binding request")
	}
	return nil
}

// SuccessResponse is the body of every successful mutation.
type SuccessResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func success(ctx echo.Context, code int, msg string, data ...interface{}) error {
	resp := SuccessResponse{Success: true, Message: msg}
	if len(data) > 0 {
		resp.Data = data[0]
	}
	return ctx.JSON(code, resp)
}

func created(ctx echo.Context, msg string, data interface{}) error {
	return success(ctx, http.StatusCreated, msg, data)
}
