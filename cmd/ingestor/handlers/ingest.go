package handlers

import (
	"context"
	"net/http"

	"github.com/carvault/ingestor/cmd/ingestor/service"
	"github.com/carvault/ingestor/common/logger"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// IngestHandler accepts batch ingestion requests
type IngestHandler struct {
	ingestor *service.Ingestor
	log      *logger.Logger
}

// NewIngestHandler creates a new ingest handler
func NewIngestHandler(ingestor *service.Ingestor, log *logger.Logger) *IngestHandler {
	return &IngestHandler{
		ingestor: ingestor,
		log:      log,
	}
}

// IngestRequest is the batch submission body. Concurrency, when set,
// overrides the configured per-archive block concurrency for this batch.
type IngestRequest struct {
	Archives    []service.Locator `json:"archives"`
	Filter      string            `json:"filter,omitempty"`
	Concurrency int               `json:"concurrency,omitempty"`
}

// IngestResponse acknowledges an accepted batch
type IngestResponse struct {
	BatchID  string `json:"batch_id"`
	Archives int    `json:"archives"`
}

// Ingest handles POST /v1/ingest. The batch runs in the background; the
// store side effect is the output, so the response only carries the batch
// ID for log correlation.
func (h *IngestHandler) Ingest(c echo.Context) error {
	var req IngestRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if len(req.Archives) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "archives is required")
	}
	for _, loc := range req.Archives {
		if loc.Bucket == "" || loc.Key == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "every archive needs bucket and key")
		}
	}
	if req.Concurrency < 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "concurrency must be positive")
	}

	// Reject bad filter expressions up front, before accepting the batch.
	if req.Filter != "" {
		if _, err := service.NewArchiveFilter(req.Filter); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
	}

	batchID := uuid.New().String()

	go func() {
		ctx := context.Background()
		if err := h.ingestor.IngestBatch(ctx, batchID, req.Archives, req.Filter, req.Concurrency); err != nil {
			h.log.Error("batch ingestion failed", "batch_id", batchID, "error", err)
		}
	}()

	h.log.Info("batch accepted", "batch_id", batchID, "archives", len(req.Archives))

	return c.JSON(http.StatusAccepted, IngestResponse{
		BatchID:  batchID,
		Archives: len(req.Archives),
	})
}
