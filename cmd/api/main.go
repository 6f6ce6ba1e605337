package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "milkrun/api/swagger" // swagger docs
	"milkrun/internal/app"
	"milkrun/internal/config"
	"milkrun/internal/database"
	"milkrun/internal/handler"
	"milkrun/internal/logger"
	"milkrun/internal/middleware"
	"milkrun/internal/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @title           Milk Delivery API
// @version         1.0
// @description     Attendance, reconciliation and billing for daily milk delivery routes.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	envErr := godotenv.Load("configs/.env")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	if err := logger.Setup(cfg.GetLoggerConfig()); err != nil {
		log.Fatal().Err(err).Msg("Failed to set up logger")
	}
	if envErr != nil {
		log.Info().Msg("No configs/.env file found or error loading it")
	}

	db, err := database.NewConnection(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Database connection failed")
	}
	if err := database.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("Database migration failed")
	}
	log.Info().Msg("Connected to PostgreSQL successfully.")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Set up dependencies (Repository -> Service -> Handler)
	application, err := app.Build(ctx, cfg, db, true)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire application")
	}
	go application.Hub.Run()

	if err := handler.RegisterValidators(); err != nil {
		log.Fatal().Err(err).Msg("Failed to register validators")
	}
	auth := middleware.NewAuth(cfg.Secret(), cfg.GinMode == gin.ReleaseMode)

	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger())

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept", middleware.RequestIDHeader}
	corsConfig.ExposeHeaders = []string{"Content-Disposition", middleware.RequestIDHeader}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	// Swagger route
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	})

	// WebSocket endpoint
	router.GET("/ws", func(c *gin.Context) {
		websocket.ServeWs(application.Hub, c, auth.Secret())
	})

	// API Routing
	api := router.Group("")
	handler.NewUserHandler(application.Users, auth).RegisterRoutes(api)
	handler.NewAttendanceHandler(application.Attendance, application.Invoices).RegisterRoutes(api, auth)
	handler.NewDraftHandler(application.Drafts).RegisterRoutes(api, auth)
	handler.NewInvoiceHandler(application.Invoices).RegisterRoutes(api, auth)
	handler.NewStatisticsHandler(application.Statistics, application.Revenue).RegisterRoutes(api, auth)
	handler.NewAuditHandler(application.Audit).RegisterRoutes(api, auth)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}
	application.Shutdown(shutdownCtx)

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
