package routes

import (
	"net/http"

	"raven/internal/queue"
	"raven/internal/server/middleware"
	"raven/internal/util"
	"raven/pkg/logger"

	_ "github.com/go-playground/validator"
	"github.com/labstack/echo/v4"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// CreateGraphHandler enqueues a full graph build from a JSON corpus. The
// build itself runs on the worker; this only validates the request and
// publishes the build message.
func CreateGraphHandler(c echo.Context) error {
	type createGraphBody struct {
		GraphID  string `json:"graph_id"`
		Path     string `json:"path" validate:"required"`
		Source   string `json:"source" validate:"required,oneof=fs s3"`
		Platform string `json:"platform"`

		SynthesizeUnknownKeys bool `json:"synthesize_unknown_keys"`
	}

	type createGraphResponse struct {
		Message string `json:"message"`
		GraphID string `json:"graph_id,omitempty"`
	}

	data := new(createGraphBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, createGraphResponse{
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, createGraphResponse{
			Message: "Invalid request body",
		})
	}

	graphID := data.GraphID
	if graphID == "" {
		id, err := gonanoid.New()
		if err != nil {
			return c.JSON(http.StatusInternalServerError, createGraphResponse{
				Message: "Internal server error",
			})
		}
		graphID = id
	}

	app := c.(*middleware.AppContext).App

	// The next read of this graph must come from the rebuilt snapshot.
	app.Stores.Invalidate(graphID)

	msg := queue.BuildMessage{
		GraphID:               graphID,
		Path:                  data.Path,
		Source:                data.Source,
		Platform:              data.Platform,
		SynthesizeUnknownKeys: data.SynthesizeUnknownKeys,
	}
	err := util.RetryErr(3, func() error {
		return queue.PublishFIFO(app.Queue, queue.BuildQueue, []byte(util.ConvertStructToJson(msg)))
	})
	if err != nil {
		logger.Error("Failed to publish to build_queue", "err", err)
		return c.JSON(http.StatusInternalServerError, createGraphResponse{
			Message: "Internal server error",
		})
	}

	return c.JSON(http.StatusAccepted, createGraphResponse{
		Message: "Graph build queued",
		GraphID: graphID,
	})
}
