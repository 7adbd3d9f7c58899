package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/carvault/ingestor/cmd/ingestor/carstream"
	"github.com/carvault/ingestor/cmd/ingestor/codec"
	"github.com/carvault/ingestor/cmd/ingestor/service"
	"github.com/carvault/ingestor/common/logger"
	"github.com/carvault/ingestor/common/store"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHandler() *IngestHandler {
	log := logger.New("error", "json")
	ingestor := service.NewIngestor(
		store.NewMemoryStore(),
		carstream.NewMemoryOpener(),
		codec.NewRegistry(),
		nil,
		1,
		log,
	)
	return NewIngestHandler(ingestor, log)
}

func post(t *testing.T, h *IngestHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/ingest", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.Ingest(c)
	if err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec
}

func TestIngest_AcceptsBatch(t *testing.T) {
	rec := post(t, newHandler(), `{"archives":[{"bucket":"b","key":"k.car"}]}`)

	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Contains(t, rec.Body.String(), "batch_id")
}

func TestIngest_RejectsEmptyBatch(t *testing.T) {
	rec := post(t, newHandler(), `{"archives":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIngest_RejectsIncompleteLocator(t *testing.T) {
	rec := post(t, newHandler(), `{"archives":[{"bucket":"b"}]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIngest_AcceptsConcurrencyOverride(t *testing.T) {
	rec := post(t, newHandler(), `{"archives":[{"bucket":"b","key":"k.car"}],"concurrency":8}`)

	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Contains(t, rec.Body.String(), "batch_id")
}

func TestIngest_RejectsNegativeConcurrency(t *testing.T) {
	rec := post(t, newHandler(), `{"archives":[{"bucket":"b","key":"k.car"}],"concurrency":-2}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIngest_RejectsInvalidFilter(t *testing.T) {
	rec := post(t, newHandler(), `{"archives":[{"bucket":"b","key":"k.car"}],"filter":"archive.bucket =="}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
