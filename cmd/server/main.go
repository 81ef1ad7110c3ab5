package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"boardapp/app"
	"boardapp/config"
	"boardapp/pkg/logger"
	"boardapp/router"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := logger.New("boardapp", "info")
		boot.Fatal().Err(err).Msg("load config")
	}

	log := logger.New(cfg.App.Name, cfg.App.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	a, err := app.New(ctx, cfg, log)
	cancel()
	if err != nil {
		log.Fatal().Err(err).Msg("initialize app")
	}

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:    ":" + cfg.App.Port,
		Handler: router.New(a),
	}

	go func() {
		log.Info().Str("port", cfg.App.Port).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}
	a.Close(shutdownCtx)
	log.Info().Msg("server exited")
}
