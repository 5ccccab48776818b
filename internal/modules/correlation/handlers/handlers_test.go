package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/metron/internal/events"
	"github.com/aristath/metron/internal/modules/correlation"
	"github.com/aristath/metron/internal/modules/metrics"
	testingpkg "github.com/aristath/metron/internal/testing"
)

func setupHandler(t *testing.T) (*Handler, *correlation.Service) {
	t.Helper()

	logger := zerolog.New(nil).Level(zerolog.Disabled)
	db, cleanup := testingpkg.NewTestDB(t, "metrics")
	t.Cleanup(cleanup)

	bus := events.NewBus(logger)
	service := correlation.NewService(
		correlation.NewEngine(logger),
		correlation.NewRepository(db.Conn(), logger),
		events.NewManager(bus, logger),
		logger,
	)
	return NewHandler(service, logger), service
}

// storeMatrices computes and persists both matrices from small
// synthetic inputs.
func storeMatrices(t *testing.T, service *correlation.Service) {
	t.Helper()

	rows := make([]correlation.FeatureRow, 12)
	for i := range rows {
		f := float64(i + 1)
		rows[i] = correlation.FeatureRow{
			Symbol: "AAPL",
			Date:   fmt.Sprintf("2024-01-%02d", i+2),
			Values: []float64{100 + f, f, 5 - f, 0.5 * f, 1000 * f, 10 * f},
		}
	}
	_, err := service.ComputeFeatureMatrix(rows)
	require.NoError(t, err)

	bySymbol := map[string][]metrics.DerivedPricePoint{
		"AAPL": makeReturns("AAPL", []float64{1.0, -0.5, 0.8, 0.2, -1.1}),
		"MSFT": makeReturns("MSFT", []float64{0.9, -0.4, 0.7, 0.1, -1.0}),
	}
	_, err = service.ComputeSymbolMatrix(bySymbol)
	require.NoError(t, err)
}

func makeReturns(symbol string, returns []float64) []metrics.DerivedPricePoint {
	points := make([]metrics.DerivedPricePoint, len(returns))
	for i := range returns {
		r := returns[i]
		points[i] = metrics.DerivedPricePoint{
			Symbol:      symbol,
			Date:        fmt.Sprintf("2024-02-%02d", i+1),
			DailyReturn: &r,
		}
	}
	return points
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	data, ok := response["data"].(map[string]interface{})
	require.True(t, ok, "response must carry a data object: %s", w.Body.String())
	return data
}

func TestHandleGetFeatureMatrix(t *testing.T) {
	t.Run("not computed yet", func(t *testing.T) {
		handler, _ := setupHandler(t)

		w := httptest.NewRecorder()
		handler.HandleGetFeatureMatrix(w, httptest.NewRequest("GET", "/api/correlations/features", nil))

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("stored matrix", func(t *testing.T) {
		handler, service := setupHandler(t)
		storeMatrices(t, service)

		w := httptest.NewRecorder()
		handler.HandleGetFeatureMatrix(w, httptest.NewRequest("GET", "/api/correlations/features", nil))

		require.Equal(t, http.StatusOK, w.Code)
		data := decodeData(t, w)

		features := data["features"].([]interface{})
		assert.Len(t, features, len(correlation.FeatureNames))

		matrix := data["matrix"].(map[string]interface{})
		assert.Equal(t, float64(12), matrix["observations"])
	})
}

func TestHandleGetFeatureMatrixLong(t *testing.T) {
	handler, service := setupHandler(t)
	storeMatrices(t, service)

	w := httptest.NewRecorder()
	handler.HandleGetFeatureMatrixLong(w, httptest.NewRequest("GET", "/api/correlations/features/long", nil))

	require.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)

	n := len(correlation.FeatureNames)
	assert.Equal(t, float64(n*n), data["count"])
	assert.Equal(t, float64(12), data["observations"])
}

func TestHandleGetSymbolMatrix(t *testing.T) {
	t.Run("not computed yet", func(t *testing.T) {
		handler, _ := setupHandler(t)

		w := httptest.NewRecorder()
		handler.HandleGetSymbolMatrix(w, httptest.NewRequest("GET", "/api/correlations/symbols", nil))

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("stored matrix", func(t *testing.T) {
		handler, service := setupHandler(t)
		storeMatrices(t, service)

		w := httptest.NewRecorder()
		handler.HandleGetSymbolMatrix(w, httptest.NewRequest("GET", "/api/correlations/symbols", nil))

		require.Equal(t, http.StatusOK, w.Code)
		data := decodeData(t, w)

		symbols := data["symbols"].([]interface{})
		assert.ElementsMatch(t, []interface{}{"AAPL", "MSFT"}, symbols)

		cells := data["cells"].([]interface{})
		assert.Len(t, cells, 4)
	})
}
