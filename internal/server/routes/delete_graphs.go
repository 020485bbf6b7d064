package routes

import (
	"net/http"

	"raven/internal/queue"
	"raven/internal/server/middleware"
	"raven/internal/util"
	"raven/pkg/logger"

	_ "github.com/go-playground/validator"
	"github.com/labstack/echo/v4"
)

// DeleteGraphHandler enqueues the removal of a persisted graph snapshot.
func DeleteGraphHandler(c echo.Context) error {
	type deleteGraphParams struct {
		GraphID string `param:"id" validate:"required"`
	}

	type deleteGraphResponse struct {
		Message string `json:"message"`
	}

	params := new(deleteGraphParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, deleteGraphResponse{
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, deleteGraphResponse{
			Message: "Invalid request body",
		})
	}

	app := c.(*middleware.AppContext).App
	app.Stores.Invalidate(params.GraphID)

	msg := queue.DeleteMessage{GraphID: params.GraphID}
	err := util.RetryErr(3, func() error {
		return queue.PublishFIFO(app.Queue, queue.DeleteQueue, []byte(util.ConvertStructToJson(msg)))
	})
	if err != nil {
		logger.Error("Failed to publish to delete_queue", "err", err)
		return c.JSON(http.StatusInternalServerError, deleteGraphResponse{
			Message: "Internal server error",
		})
	}

	return c.JSON(http.StatusAccepted, deleteGraphResponse{
		Message: "Graph delete queued",
	})
}
