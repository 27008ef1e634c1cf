package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	httpRouter "github.com/jhoicas/integraciones-api/internal/interfaces/http"
	"github.com/jhoicas/integraciones-api/pkg/config"
	"github.com/jhoicas/integraciones-api/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:     cfg.App.Env,
		Level:   cfg.App.LogLevel,
		Service: cfg.App.Name,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("pac", cfg.CFDI.PACProvider).
		Msg("iniciando aplicación")

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	svc, err := build(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("inicialización de servicios")
	}

	// Health checks y retención en segundo plano
	healthDone := svc.Health.Start(ctx)
	retentionDone := svc.Retention.Start(ctx)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 10,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	httpRouter.Router(app, httpRouter.RouterDeps{
		Service:  cfg.App.Name,
		Health:   svc.Health,
		Metrics:  svc.Metrics,
		Sync:     svc.Billing,
		OpsToken: cfg.HTTP.OpsToken,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	stop()
	<-healthDone
	<-retentionDone
	svc.close(shutdownCtx, log.Zerolog())

	log.Info().Msg("aplicación detenida")
}
