package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/metron/internal/events"
	"github.com/aristath/metron/internal/modules/calculations"
	"github.com/aristath/metron/internal/modules/correlation"
	"github.com/aristath/metron/internal/modules/metrics"
	"github.com/aristath/metron/internal/modules/panel"
	"github.com/aristath/metron/internal/modules/pipeline"
	testingpkg "github.com/aristath/metron/internal/testing"
)

type handlerFixture struct {
	handler *Handler
	runner  *pipeline.Runner
	repo    *pipeline.Repository
}

func setupHandler(t *testing.T) *handlerFixture {
	t.Helper()

	logger := zerolog.New(nil).Level(zerolog.Disabled)

	panelDB, cleanupPanel := testingpkg.NewTestDB(t, "panel")
	t.Cleanup(cleanupPanel)
	metricsDB, cleanupMetrics := testingpkg.NewTestDB(t, "metrics")
	t.Cleanup(cleanupMetrics)
	cacheDB, cleanupCache := testingpkg.NewTestDB(t, "cache")
	t.Cleanup(cleanupCache)

	eventMgr := events.NewManager(events.NewBus(logger), logger)

	panelRepo := panel.NewRepository(panelDB.Conn(), logger)
	panelSvc := panel.NewService(panelRepo, panel.NewValidator(logger), eventMgr, logger)
	require.NoError(t, panelRepo.UpsertPrices(testingpkg.GeneratePriceSeries("AAPL", "2024-01-01", 12, 100)))

	metricsSvc := metrics.NewService(
		metrics.NewCalculator(3, logger),
		metrics.NewRepository(metricsDB.Conn(), logger),
		logger,
	)
	corrSvc := correlation.NewService(
		correlation.NewEngine(logger),
		correlation.NewRepository(metricsDB.Conn(), logger),
		eventMgr,
		logger,
	)

	repo := pipeline.NewRepository(metricsDB.Conn(), logger)
	runner := pipeline.NewRunner(
		panelSvc,
		metricsSvc,
		corrSvc,
		calculations.NewCache(cacheDB.Conn(), 0, logger),
		repo,
		eventMgr,
		1,
		logger,
	)

	return &handlerFixture{
		handler: NewHandler(runner, repo, logger),
		runner:  runner,
		repo:    repo,
	}
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	data, ok := response["data"].(map[string]interface{})
	require.True(t, ok, "response must carry a data object: %s", w.Body.String())
	return data
}

// waitForRun polls the run record until it leaves the running state.
func waitForRun(t *testing.T, repo *pipeline.Repository, runID string) *pipeline.Run {
	t.Helper()

	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		run, err := repo.GetRun(runID)
		require.NoError(t, err)
		if run != nil && run.Status != pipeline.StatusRunning {
			return run
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("run %s did not finish in time", runID)
	return nil
}

func TestHandleTriggerRun(t *testing.T) {
	f := setupHandler(t)

	w := httptest.NewRecorder()
	f.handler.HandleTriggerRun(w, httptest.NewRequest("POST", "/api/pipeline/run", nil))

	require.Equal(t, http.StatusAccepted, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, "started", data["status"])

	runID, ok := data["run_id"].(string)
	require.True(t, ok)
	require.NotEmpty(t, runID)

	run := waitForRun(t, f.repo, runID)
	assert.Equal(t, pipeline.StatusCompleted, run.Status)
	assert.Equal(t, 1, run.SymbolsOK)
}

func TestHandleListRuns(t *testing.T) {
	f := setupHandler(t)

	_, err := f.runner.Run(context.Background())
	require.NoError(t, err)
	_, err = f.runner.Run(context.Background())
	require.NoError(t, err)

	t.Run("all runs", func(t *testing.T) {
		w := httptest.NewRecorder()
		f.handler.HandleListRuns(w, httptest.NewRequest("GET", "/api/pipeline/runs", nil))

		require.Equal(t, http.StatusOK, w.Code)
		data := decodeData(t, w)
		assert.Equal(t, float64(2), data["count"])
	})

	t.Run("limit", func(t *testing.T) {
		w := httptest.NewRecorder()
		f.handler.HandleListRuns(w, httptest.NewRequest("GET", "/api/pipeline/runs?limit=1", nil))

		require.Equal(t, http.StatusOK, w.Code)
		data := decodeData(t, w)
		assert.Equal(t, float64(1), data["count"])
	})
}

func TestHandleGetRun(t *testing.T) {
	f := setupHandler(t)

	run, err := f.runner.Run(context.Background())
	require.NoError(t, err)

	t.Run("found", func(t *testing.T) {
		w := httptest.NewRecorder()
		f.handler.HandleGetRun(w, httptest.NewRequest("GET", "/api/pipeline/runs/"+run.ID, nil), run.ID)

		require.Equal(t, http.StatusOK, w.Code)
		data := decodeData(t, w)

		record := data["run"].(map[string]interface{})
		assert.Equal(t, run.ID, record["id"])
		assert.Equal(t, pipeline.StatusCompleted, record["status"])
	})

	t.Run("unknown id", func(t *testing.T) {
		w := httptest.NewRecorder()
		f.handler.HandleGetRun(w, httptest.NewRequest("GET", "/api/pipeline/runs/nope", nil), "nope")

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
