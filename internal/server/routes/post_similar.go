package routes

import (
	"errors"
	"net/http"

	"raven/internal/server/middleware"
	"raven/pkg/ai"
	"raven/pkg/logger"
	"raven/pkg/store"
	storepgx "raven/pkg/store/pgx"
	"raven/pkg/vecindex"

	_ "github.com/go-playground/validator"
	"github.com/labstack/echo/v4"
)

// SimilarHandler answers a similarity query. A text query is embedded the
// same way the indexed node labels were; a pre-computed query vector is
// normalized and searched directly. Returns 409 while the graph has no built
// index.
func SimilarHandler(c echo.Context) error {
	type similarRequest struct {
		GraphID string    `param:"id" validate:"required"`
		Text    string    `json:"text"`
		Vector  []float32 `json:"vector"`
		TopK    int       `json:"top_k"`
	}

	type similarResponse struct {
		Message string           `json:"message"`
		Matches []store.Match    `json:"matches,omitempty"`
		Metrics *ai.ModelMetrics `json:"metrics,omitempty"`
	}

	data := new(similarRequest)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, similarResponse{
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, similarResponse{
			Message: "Invalid request body",
		})
	}
	if data.Text == "" && len(data.Vector) == 0 {
		return c.JSON(http.StatusBadRequest, similarResponse{
			Message: "Either text or vector is required",
		})
	}
	if data.TopK <= 0 {
		data.TopK = 5
	}

	ctx := c.Request().Context()
	app := c.(*middleware.AppContext).App

	ks, err := app.Stores.Get(ctx, data.GraphID)
	if err != nil {
		if errors.Is(err, storepgx.ErrGraphNotFound) {
			return c.JSON(http.StatusNotFound, similarResponse{
				Message: "Graph not found",
			})
		}
		logger.Error("Failed to load graph", "graph_id", data.GraphID, "err", err)
		return c.JSON(http.StatusInternalServerError, similarResponse{
			Message: "Internal server error",
		})
	}

	var matches []store.Match
	if data.Text != "" {
		matches, err = ks.Similar(ctx, data.Text, data.TopK)
	} else {
		vecindex.NormalizeL2(data.Vector)
		matches, err = ks.SimilarByVector(data.Vector, data.TopK)
	}
	if err != nil {
		if errors.Is(err, store.ErrIndexNotReady) {
			return c.JSON(http.StatusConflict, similarResponse{
				Message: "Graph index is not built yet",
			})
		}
		logger.Error("Similarity query failed", "graph_id", data.GraphID, "err", err)
		return c.JSON(http.StatusInternalServerError, similarResponse{
			Message: "Internal server error",
		})
	}

	metrics := app.Encoder.GetMetrics()
	return c.JSON(http.StatusOK, similarResponse{
		Message: "OK",
		Matches: matches,
		Metrics: &metrics,
	})
}
