package correlation

import (
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/metron/internal/events"
	"github.com/aristath/metron/internal/modules/metrics"
)

func setupService(t *testing.T) (*Service, *events.Bus) {
	t.Helper()

	db := setupTestDB(t)
	log := zerolog.Nop()
	bus := events.NewBus(log)
	manager := events.NewManager(bus, log)

	service := NewService(NewEngine(log), NewRepository(db, log), manager, log)
	return service, bus
}

// pooledRows builds complete-case rows where every feature column varies.
func pooledRows(n int) []FeatureRow {
	rows := make([]FeatureRow, n)
	for i := range rows {
		f := float64(i + 1)
		rows[i] = FeatureRow{
			Symbol: "AAPL",
			Date:   fmt.Sprintf("2024-01-%02d", i+2),
			Values: []float64{100 + f, f, 5 - f, 0.5 * f, 1000 * f, 10 * f},
		}
	}
	return rows
}

func TestService_ComputeFeatureMatrix(t *testing.T) {
	service, bus := setupService(t)

	var announced []*events.CorrelationUpdatedData
	bus.Subscribe(events.CorrelationUpdated, func(e *events.Event) {
		if data, ok := e.GetTypedData().(*events.CorrelationUpdatedData); ok {
			announced = append(announced, data)
		}
	})

	m, err := service.ComputeFeatureMatrix(pooledRows(10))
	require.NoError(t, err)
	require.Equal(t, FeatureNames, m.Keys)

	loaded, err := service.FeatureMatrix()
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, m.Keys, loaded.Keys)
	assert.Equal(t, 10, loaded.Observations)

	require.Len(t, announced, 1)
	assert.Equal(t, MatrixFeatures, announced[0].Matrix)
	assert.Equal(t, len(FeatureNames), announced[0].Size)
	assert.Equal(t, 10, announced[0].Observations)
}

func TestService_ComputeSymbolMatrix(t *testing.T) {
	service, bus := setupService(t)

	var announced []*events.CorrelationUpdatedData
	bus.Subscribe(events.CorrelationUpdated, func(e *events.Event) {
		if data, ok := e.GetTypedData().(*events.CorrelationUpdatedData); ok {
			announced = append(announced, data)
		}
	})

	dates := []string{"2024-01-02", "2024-01-03", "2024-01-04"}
	bySymbol := map[string][]metrics.DerivedPricePoint{
		"AAPL": returnSeries("AAPL", dates, []*float64{floatPtr(1), floatPtr(2), floatPtr(3)}),
		"MSFT": returnSeries("MSFT", dates, []*float64{floatPtr(3), floatPtr(2), floatPtr(1)}),
	}

	m, err := service.ComputeSymbolMatrix(bySymbol)
	require.NoError(t, err)
	require.Equal(t, []string{"AAPL", "MSFT"}, m.Keys)

	loaded, err := service.SymbolMatrix()
	require.NoError(t, err)
	require.NotNil(t, loaded)

	pair := loaded.Value("AAPL", "MSFT")
	require.NotNil(t, pair)
	assert.InDelta(t, -1.0, *pair, 1e-12)

	require.Len(t, announced, 1)
	assert.Equal(t, MatrixSymbols, announced[0].Matrix)
	assert.Equal(t, 2, announced[0].Size)
	assert.Equal(t, 3, announced[0].Observations)
}

func TestService_NotComputedReadsAreNil(t *testing.T) {
	service, _ := setupService(t)

	features, err := service.FeatureMatrix()
	require.NoError(t, err)
	assert.Nil(t, features)

	symbols, err := service.SymbolMatrix()
	require.NoError(t, err)
	assert.Nil(t, symbols)
}
