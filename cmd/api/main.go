package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	_ "approval-ledger/api/swagger" // swagger docs
	"approval-ledger/internal/config"
	"approval-ledger/internal/database"
	"approval-ledger/internal/handler"
	"approval-ledger/internal/ledger"
	"approval-ledger/internal/middleware"
	"approval-ledger/internal/model"
	"approval-ledger/internal/notify"
	"approval-ledger/internal/repository"
	"approval-ledger/internal/service"
	"approval-ledger/internal/storage"
	"approval-ledger/internal/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"golang.org/x/sync/errgroup"
)

// @title           Approval Ledger API
// @version         1.0
// @description     Purchase and expense request approval workflow.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	if err := run(); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load("configs")
	if err != nil {
		return err
	}
	logFile, logWriter, err := config.InitLogging(cfg.Log)
	if err != nil {
		return err
	}
	if logFile != nil {
		defer logFile.Close()
	}
	gin.SetMode(cfg.Server.Mode)
	gin.DefaultWriter = logWriter
	gin.DefaultErrorWriter = logWriter
	middleware.InitAuth(cfg.JWT.Secret)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewConnection(cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	slog.Info("connected to PostgreSQL")

	store, closeStore, err := database.OpenStore(ctx, cfg, db)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStore(context.Background()); err != nil {
			slog.Warn("failed to close document store", "error", err)
		}
	}()

	rules, err := ledger.ParseTransitions(cfg.Ledger.Transitions)
	if err != nil {
		return err
	}

	// Set up dependencies (Repository -> Service -> Handler)
	userRepo := repository.NewUserRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	wsHub := websocket.NewHub()

	opts := []ledger.Option{
		ledger.WithTransitions(rules),
		ledger.WithListener(wsHub),
		ledger.WithListener(service.NewAuditRecorder(auditRepo)),
	}
	if cfg.SMTP.Enabled() {
		opts = append(opts, ledger.WithListener(notify.NewMailer(cfg.SMTP).Async()))
		slog.Info("mail notifications enabled", "host", cfg.SMTP.Host)
	}
	docLedger := ledger.New(store, opts...)
	slog.Info("ledger ready", "transitions", rules.Name(), "store", cfg.Store.Driver)

	var publisher service.Publisher
	if cfg.S3.Enabled() {
		uploader, err := storage.NewUploader(ctx, cfg.S3)
		if err != nil {
			return err
		}
		publisher = uploader
		slog.Info("export publishing enabled", "bucket", cfg.S3.Bucket)
	}

	userService := service.NewUserService(userRepo, auditRepo, cfg.JWT.Expiration)
	auditService := service.NewAuditService(auditRepo)
	documentService := service.NewDocumentService(docLedger, publisher)

	created, err := userService.EnsureAdmin(ctx, service.CreateUserRequest{
		Username: cfg.Admin.Username,
		Email:    cfg.Admin.Email,
		Password: cfg.Admin.Password,
		Role:     model.RoleAdmin,
	})
	if err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	if created {
		slog.Info("seeded admin account", "email", cfg.Admin.Email)
	}

	router := newRouter(cfg, wsHub,
		handler.NewUserHandler(userService),
		handler.NewAuditHandler(auditService),
		handler.NewDocumentHandler(documentService),
	)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return wsHub.Run(gctx)
	})
	g.Go(func() error {
		slog.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		slog.Info("shutting down server")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

type routeRegistrar interface {
	RegisterRoutes(router *gin.RouterGroup)
}

func newRouter(cfg *config.Config, wsHub *websocket.Hub, handlers ...routeRegistrar) *gin.Engine {
	router := gin.Default()

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.Server.CORSOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.ExposeHeaders = []string{"Content-Disposition"}
	router.Use(cors.New(corsConfig))

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	})

	router.GET("/ws", func(c *gin.Context) {
		websocket.ServeWs(wsHub, c, middleware.GetJWTSecret())
	})

	for _, h := range handlers {
		h.RegisterRoutes(router.Group(""))
	}
	return router
}
