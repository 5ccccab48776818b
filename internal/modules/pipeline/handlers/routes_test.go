package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterRoutes(t *testing.T) {
	f := setupHandler(t)

	router := chi.NewRouter()

	// Should not panic
	assert.NotPanics(t, func() {
		f.handler.RegisterRoutes(router)
	}, "RegisterRoutes should not panic")
}

func TestRegisterRoutes_Dispatch(t *testing.T) {
	f := setupHandler(t)

	run, err := f.runner.Run(context.Background())
	require.NoError(t, err)

	router := chi.NewRouter()
	f.handler.RegisterRoutes(router)

	req := httptest.NewRequest("GET", "/pipeline/runs", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	req = httptest.NewRequest("GET", "/pipeline/runs/"+run.ID, nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
}
