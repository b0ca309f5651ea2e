package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"cacao-server/auth"
	"cacao-server/cache"
	"cacao-server/confs"
	"cacao-server/db"
	"cacao-server/handlers"
	httpHandler "cacao-server/handlers/http"
	"cacao-server/repositories"
	"cacao-server/usecases"
	"cacao-server/ws"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type Server struct {
	app     *gin.Engine
	cfg     *confs.Config
	db      db.Database
	log     *zap.Logger
	manager *ws.Manager
	http    *http.Server

	authUseCase   *usecases.AuthUseCase
	ingestUseCase *usecases.IngestionUseCase
}

// NewServer builds the use cases over database and snapshotCache and
// registers every route.
func NewServer(cfg *confs.Config, database db.Database, snapshotCache cache.SnapshotCache, log *zap.Logger) (*Server, error) {
	tokens, err := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		return nil, fmt.Errorf("jwt manager: %w", err)
	}

	s := &Server{
		app:     gin.New(),
		cfg:     cfg,
		db:      database,
		log:     log,
		manager: ws.NewManager(),
	}
	s.setup(tokens, snapshotCache)
	return s, nil
}

func (s *Server) setup(tokens *auth.JWTManager, snapshotCache cache.SnapshotCache) {
	s.app.Use(gin.Recovery(), httpHandler.RequestID(), httpHandler.AccessLog(s.log), httpHandler.Metrics())

	// Setup CORS middleware
	config := cors.DefaultConfig()
	if len(s.cfg.CORSOrigins) == 0 {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = s.cfg.CORSOrigins
	}
	config.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	config.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", httpHandler.RequestIDHeader}
	config.ExposeHeaders = []string{httpHandler.RequestIDHeader, "Content-Disposition"}
	s.app.Use(cors.New(config))

	// Setup healthcheck route
	s.app.GET("/health", s.health)
	s.app.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Initialize repositories
	store := repositories.NewPgStore(s.db)

	// Initialize use cases
	s.authUseCase = usecases.NewAuthUseCase(store, tokens, s.log)
	s.ingestUseCase = usecases.NewIngestionUseCase(store, snapshotCache, s.log)
	deviceUseCase := usecases.NewDeviceUseCase(store, s.log)
	measurementUseCase := usecases.NewMeasurementUseCase(store, snapshotCache, s.log)
	snapshotUseCase := usecases.NewSnapshotUseCase(store, snapshotCache, s.log)
	fermentationUseCase := usecases.NewFermentationUseCase(store, s.log)
	compositionUseCase := usecases.NewCompositionUseCase(store, s.log)
	genotypeUseCase := usecases.NewGenotypeUseCase(store)
	turnUseCase := usecases.NewTurnUseCase(store)

	// Initialize handlers
	limiter := httpHandler.NewKeyedLimiter(s.cfg.IngestRatePerMin)
	loginHandler := httpHandler.NewLoginHandler(s.authUseCase, s.log)
	deviceHandler := httpHandler.NewDeviceHandler(deviceUseCase, s.log)
	measurementHandler := httpHandler.NewMeasurementHandler(s.ingestUseCase, measurementUseCase, limiter, s.log)
	fermentationHandler := httpHandler.NewFermentationHandler(fermentationUseCase, snapshotUseCase, s.log)
	compositionHandler := httpHandler.NewCompositionHandler(compositionUseCase, s.log)
	genotypeHandler := httpHandler.NewGenotypeHandler(genotypeUseCase, s.log)
	turnHandler := httpHandler.NewTurnHandler(turnUseCase, s.log)
	wsHandler := handlers.NewWSHandler(s.manager, s.ingestUseCase, limiter, s.log)
	cacheHandler := handlers.NewCacheHandler(snapshotCache, s.log)

	api := s.app.Group("/api", httpHandler.Timeout(s.cfg.RequestTimeout))
	{
		// Public routes
		api.POST("/register", loginHandler.Register)
		api.POST("/login", loginHandler.Login)
		api.POST("/measurements", measurementHandler.Ingest) // device ingestion

		protected := api.Group("", httpHandler.RequireAuth(tokens))

		protected.GET("/user", loginHandler.User)

		// Device routes
		devices := protected.Group("/devices")
		{
			devices.POST("", deviceHandler.CreateDevice)
			devices.GET("", deviceHandler.GetAllDevices)
			devices.GET("/connected", wsHandler.GetConnectedDevices)
			devices.GET("/:id", deviceHandler.GetDevice)
			devices.GET("/:id/sensors", deviceHandler.GetDeviceSensors)
			devices.PUT("/:id", deviceHandler.UpdateDevice)
			devices.PUT("/:id/status", deviceHandler.UpdateDeviceStatus)
			devices.DELETE("/:id", deviceHandler.DeleteDevice)
		}

		// Sensor routes
		sensors := protected.Group("/sensors")
		{
			sensors.POST("", deviceHandler.CreateSensor)
			sensors.GET("", deviceHandler.GetAllSensors)
			sensors.GET("/:id", deviceHandler.GetSensor)
			sensors.PUT("/:id", deviceHandler.UpdateSensor)
			sensors.DELETE("/:id", deviceHandler.DeleteSensor)
		}

		// Measurement admin routes
		measurements := protected.Group("/measurements")
		{
			measurements.GET("", measurementHandler.GetMeasurements)
			measurements.GET("/:id", measurementHandler.GetMeasurement)
			measurements.PUT("/:id", measurementHandler.UpdateMeasurement)
			measurements.DELETE("/:id", measurementHandler.DeleteMeasurement)
		}

		// Fermentation routes
		fermentations := protected.Group("/fermentations")
		{
			fermentations.POST("", fermentationHandler.CreateFermentation)
			fermentations.GET("", fermentationHandler.GetAllFermentations)
			fermentations.GET("/summary", fermentationHandler.GetSummary)
			fermentations.GET("/:id", fermentationHandler.GetFermentation)
			fermentations.PUT("/:id", fermentationHandler.UpdateFermentation)
			fermentations.PUT("/:id/status", fermentationHandler.UpdateStatus)
			fermentations.DELETE("/:id", fermentationHandler.DeleteFermentation)
			fermentations.GET("/:id/measurements", fermentationHandler.GetSnapshots)
			fermentations.GET("/:id/measurements/latest", fermentationHandler.GetLatestSnapshot)
			fermentations.GET("/:id/export", fermentationHandler.ExportSnapshots)
			fermentations.GET("/:id/turns", turnHandler.GetFermentationTurns)

			fermentations.GET("/:id/genotypes", compositionHandler.GetGenotypes)
			fermentations.POST("/:id/genotypes", compositionHandler.AttachGenotypes)
			fermentations.PUT("/:id/genotypes", compositionHandler.SyncGenotypes)
			fermentations.DELETE("/:id/genotypes", compositionHandler.DetachGenotypes)
			fermentations.PUT("/:id/genotypes/:genotypeId", compositionHandler.UpdateQuantity)
		}

		// Genotype routes
		genotypes := protected.Group("/genotypes")
		{
			genotypes.POST("", genotypeHandler.CreateGenotype)
			genotypes.GET("", genotypeHandler.GetAllGenotypes)
			genotypes.GET("/:id", genotypeHandler.GetGenotype)
			genotypes.PUT("/:id", genotypeHandler.UpdateGenotype)
			genotypes.DELETE("/:id", genotypeHandler.DeleteGenotype)
		}

		// Turn routes
		turns := protected.Group("/turns")
		{
			turns.POST("", turnHandler.CreateTurn)
			turns.GET("", turnHandler.GetAllTurns)
			turns.GET("/:id", turnHandler.GetTurn)
			turns.PUT("/:id", turnHandler.UpdateTurn)
			turns.DELETE("/:id", turnHandler.DeleteTurn)
		}

		// Snapshot cache management
		protected.GET("/cache/stats", cacheHandler.GetCacheStats)
		protected.DELETE("/cache", cacheHandler.FlushCache)
	}

	// Long-lived device connections stay outside the request timeout.
	s.app.GET("/ws", wsHandler.HandleDeviceWS)
}

func (s *Server) health(c *gin.Context) {
	sqlDB, err := s.db.GetDB().DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		s.log.Warn("health check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "DOWN"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":            "OK",
		"connected_devices": len(s.manager.List()),
	})
}

// Handler exposes the router, used by tests and by Start.
func (s *Server) Handler() http.Handler { return s.app }

// Ingestion is the use case shared with non-HTTP transports.
func (s *Server) Ingestion() *usecases.IngestionUseCase { return s.ingestUseCase }

// Bootstrap creates the configured admin account when it does not exist yet.
func (s *Server) Bootstrap(ctx context.Context) error {
	return s.authUseCase.EnsureAdmin(ctx, s.cfg.Admin)
}

// Start serves HTTP until Shutdown is called.
func (s *Server) Start() error {
	s.http = &http.Server{
		Addr:              s.cfg.HTTPAddr,
		Handler:           s.app,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.log.Info("http server listening", zap.String("addr", s.cfg.HTTPAddr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drops device websockets and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.manager.CloseAll()
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}
