package routes

import (
	"errors"
	"net/http"

	"raven/internal/server/middleware"
	"raven/pkg/logger"
	"raven/pkg/store"
	storepgx "raven/pkg/store/pgx"

	_ "github.com/go-playground/validator"
	"github.com/labstack/echo/v4"
)

// GetGraphHandler returns summary data for a persisted graph snapshot.
func GetGraphHandler(c echo.Context) error {
	type getGraphParams struct {
		GraphID string `param:"id" validate:"required"`
	}

	type getGraphResponse struct {
		Message string           `json:"message"`
		Graph   *store.GraphInfo `json:"graph,omitempty"`
	}

	params := new(getGraphParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, getGraphResponse{
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, getGraphResponse{
			Message: "Invalid request body",
		})
	}

	ctx := c.Request().Context()
	app := c.(*middleware.AppContext).App

	info, err := app.Snapshots.GetGraphInfo(ctx, params.GraphID)
	if err != nil {
		if errors.Is(err, storepgx.ErrGraphNotFound) {
			return c.JSON(http.StatusNotFound, getGraphResponse{
				Message: "Graph not found",
			})
		}
		logger.Error("Failed to get graph info", "graph_id", params.GraphID, "err", err)
		return c.JSON(http.StatusInternalServerError, getGraphResponse{
			Message: "Internal server error",
		})
	}

	return c.JSON(http.StatusOK, getGraphResponse{
		Message: "OK",
		Graph:   &info,
	})
}
