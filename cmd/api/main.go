package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"bloodhero/internal/adapter/repo"
	"bloodhero/internal/directions"
	"bloodhero/internal/donation"
	"bloodhero/internal/http/handlers"
	"bloodhero/internal/http/httpapi"
	"bloodhero/internal/infra"
	"bloodhero/internal/infra/geoip"
	"bloodhero/internal/matching"
	"bloodhero/internal/notify"
	"bloodhero/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	if err := infra.MigrateDB(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database")
	}

	ctx := context.Background()
	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()

	users := repo.NewUserRepository(dbpool)
	requests := repo.NewRequestRepository(dbpool)
	confirmations := repo.NewConfirmationRepository(dbpool)

	proofs, err := storage.NewFileStore(cfg.UploadDir)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to prepare upload directory")
	}

	geoResolver, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip disabled")
	}
	if geoResolver != nil {
		defer geoResolver.Close()
	}

	routeClient, err := directions.NewClient(directions.Options{
		BaseURL: cfg.DirectionsBaseURL,
		Logger:  logger,
	})
	if err != nil {
		logger.Warn().Err(err).Msg("directions disabled")
	}

	dispatcher := notify.NewLogDispatcher(logger)
	engine := matching.NewEngine(requests, dispatcher, logger, matching.Options{
		DefaultRadiusKm: cfg.DefaultRadiusKm,
		MaxRadiusKm:     cfg.MaxRadiusKm,
	})
	workflow := donation.NewWorkflow(requests, confirmations, proofs, dispatcher, logger, cfg.ProofRetryLimit)

	app := &handlers.App{
		Users:         users,
		Requests:      requests,
		Engine:        engine,
		Workflow:      workflow,
		Logger:        logger,
		JWTSecret:     cfg.JWTSecret,
		MaxProofBytes: cfg.MaxProofBytes,
	}
	if routeClient != nil {
		app.Directions = routeClient
	}
	if geoResolver != nil {
		app.GeoIP = geoResolver
	}

	server := infra.NewHTTPServer(cfg, httpapi.NewRouter(app, cfg, logger))

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
