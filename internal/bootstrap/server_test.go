package bootstrap

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Domenick1991/skybook/api"
	"github.com/Domenick1991/skybook/config"
	"github.com/Domenick1991/skybook/internal/middleware"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func emptyHandlers() api.Handlers {
	return api.Handlers{
		Holds:    api.NewHoldHandler(nil),
		Bookings: api.NewBookingHandler(nil),
		Pricing:  api.NewPricingHandler(nil),
		Wallet:   api.NewWalletHandler(nil),
		Flights:  api.NewFlightHandler(nil, nil),
		Payments: api.NewPaymentHandler(nil),
	}
}

func TestNewRouter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	docFile := filepath.Join(t.TempDir(), "openapi.json")
	require.NoError(t, os.WriteFile(docFile, []byte(`{"openapi":"3.0.3"}`), 0o600))

	router := NewRouter(config.HTTPConfig{OpenAPIFile: docFile}, zap.NewNop(), emptyHandlers())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/docs/openapi.json", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "3.0.3")

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/swagger/index.html", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestNewRouter_NoDocs(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := NewRouter(config.HTTPConfig{}, zap.NewNop(), emptyHandlers())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/swagger/index.html", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRun_StopsOnCancel(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, config.HTTPConfig{Address: "127.0.0.1:0", ShutdownSeconds: 1}, zap.NewNop(), emptyHandlers())
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}
