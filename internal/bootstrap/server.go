package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Domenick1991/skybook/api"
	"github.com/Domenick1991/skybook/config"
	"github.com/Domenick1991/skybook/internal/middleware"
	"github.com/gin-gonic/gin"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"
)

const openAPIPath = "/docs/openapi.json"

// NewRouter builds the HTTP engine: request ids, access log, panic recovery, the API routes
// and, when an OpenAPI document is configured, the swagger UI on /swagger/.
func NewRouter(cfg config.HTTPConfig, log *zap.Logger, h api.Handlers) *gin.Engine {
	engine := gin.New()
	engine.Use(middleware.RequestID(), middleware.Logger(log), middleware.Recovery(log))

	api.RegisterRoutes(engine, h)

	if cfg.OpenAPIFile != "" {
		engine.StaticFile(openAPIPath, cfg.OpenAPIFile)
		engine.GET("/swagger/*any", gin.WrapH(httpSwagger.Handler(httpSwagger.URL(openAPIPath))))
	}
	return engine
}

// Run serves HTTP and blocks until ctx is canceled or the listener fails.
func Run(ctx context.Context, cfg config.HTTPConfig, log *zap.Logger, h api.Handlers) error {
	srv := &http.Server{
		Addr:              cfg.Address,
		Handler:           NewRouter(cfg, log, h),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", zap.String("addr", cfg.Address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen http %s: %w", cfg.Address, err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ShutdownSeconds)*time.Second)
		defer cancel()
		log.Info("shutting down http server")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	}
}
