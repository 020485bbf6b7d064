package routes

import (
	"errors"
	"net/http"

	"raven/internal/server/middleware"
	"raven/pkg/graph"
	"raven/pkg/logger"
	storepgx "raven/pkg/store/pgx"

	_ "github.com/go-playground/validator"
	"github.com/labstack/echo/v4"
)

// GetNodeHandler answers a structural query: the node for the given key plus
// its direct successors and predecessors. An unknown key returns empty
// neighbor lists, not an error.
func GetNodeHandler(c echo.Context) error {
	type getNodeParams struct {
		GraphID string `param:"id" validate:"required"`
		Key     string `param:"key" validate:"required"`
	}

	type getNodeResponse struct {
		Message      string           `json:"message"`
		Node         *graph.Node      `json:"node,omitempty"`
		Successors   []graph.Neighbor `json:"successors"`
		Predecessors []graph.Neighbor `json:"predecessors"`
	}

	params := new(getNodeParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, getNodeResponse{
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, getNodeResponse{
			Message: "Invalid request body",
		})
	}

	ctx := c.Request().Context()
	app := c.(*middleware.AppContext).App

	ks, err := app.Stores.Get(ctx, params.GraphID)
	if err != nil {
		if errors.Is(err, storepgx.ErrGraphNotFound) {
			return c.JSON(http.StatusNotFound, getNodeResponse{
				Message: "Graph not found",
			})
		}
		logger.Error("Failed to load graph", "graph_id", params.GraphID, "err", err)
		return c.JSON(http.StatusInternalServerError, getNodeResponse{
			Message: "Internal server error",
		})
	}

	neighbors := ks.Neighbors(params.Key)
	return c.JSON(http.StatusOK, getNodeResponse{
		Message:      "OK",
		Node:         neighbors.Node,
		Successors:   neighbors.Successors,
		Predecessors: neighbors.Predecessors,
	})
}
