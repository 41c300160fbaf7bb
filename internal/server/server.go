package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"opentry/internal/ai/chain"
	"opentry/internal/catalog"
	"opentry/internal/config"
	"opentry/internal/handler"
	authHandler "opentry/internal/handler/auth"
	paymentHandler "opentry/internal/handler/payment"
	productionHandler "opentry/internal/handler/production"
	reelHandler "opentry/internal/handler/reel"
	socialHandler "opentry/internal/handler/social"
	templateHandler "opentry/internal/handler/template"
	"opentry/internal/pkg/ark"
	"opentry/internal/pkg/cache"
	"opentry/internal/pkg/creatomate"
	"opentry/internal/pkg/mongodb"
	"opentry/internal/pkg/razorpay"
	"opentry/internal/pkg/storage"
	"opentry/internal/pkg/storagefactory"
	"opentry/internal/pkg/tts"
	"opentry/internal/production"
	"opentry/internal/reel"
	"opentry/internal/reel/providers"
	authRepo "opentry/internal/repository/auth"
	paymentRepo "opentry/internal/repository/payment"
	prodRepo "opentry/internal/repository/production"
	reelRepo "opentry/internal/repository/reel"
	socialRepo "opentry/internal/repository/social"
	"opentry/internal/server/middleware"
	"opentry/internal/service"
)

// Server HTTP 服务器
type Server struct {
	cfg    *config.Config
	engine *gin.Engine
	mongo  *mongodb.Client
	redis  *cache.RedisCache

	services *Services
}

// Services 装配好的业务服务，serve 与 sweep 命令共用
type Services struct {
	Auth       *service.AuthService
	Payment    *service.PaymentService
	Reel       *service.ReelService
	Production *service.ProductionService
	Social     *service.SocialService
	Catalog    *catalog.Catalog
	Sweeper    *service.PaymentSweeper
}

// New 创建服务器实例
func New(ctx context.Context, cfg *config.Config) (*Server, error) {
	switch cfg.Server.Mode {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	mongoClient, err := mongodb.New(&cfg.Mongo)
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}
	log.Info().Str("database", cfg.Mongo.Database).Msg("connected to MongoDB")

	if err := mongodb.EnsureIndexes(ctx, mongoClient.Database()); err != nil {
		log.Warn().Err(err).Msg("failed to ensure indexes")
	}

	// Redis 可选，未配置时使用进程内锁
	var redisCache *cache.RedisCache
	if cfg.Redis.Addr != "" {
		rc, err := cache.NewRedisCache(&cfg.Redis)
		if err != nil {
			log.Warn().Err(err).Msg("failed to connect to Redis, falling back to in-process locks")
		} else {
			redisCache = rc
			log.Info().Str("addr", cfg.Redis.Addr).Msg("connected to Redis")
		}
	}

	srv := &Server{
		cfg:    cfg,
		engine: gin.New(),
		mongo:  mongoClient,
		redis:  redisCache,
	}

	services, err := srv.buildServices(ctx)
	if err != nil {
		_ = mongoClient.Close(context.Background())
		return nil, err
	}
	srv.services = services

	srv.setupRoutes()
	return srv, nil
}

// buildServices 创建存储、厂商客户端与业务服务
func (s *Server) buildServices(ctx context.Context) (*Services, error) {
	cfg := s.cfg
	db := s.mongo.Database()

	var locker service.Locker = cache.NewMemoryLocker()
	if s.redis != nil {
		locker = s.redis
	}

	store, err := storagefactory.NewStorage(ctx, &cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("create storage: %w", err)
	}

	templates, err := catalog.Default()
	if err != nil {
		return nil, fmt.Errorf("load template catalog: %w", err)
	}

	vendors, err := newVendors(ctx, cfg, store)
	if err != nil {
		return nil, err
	}

	// 未配置 Razorpay 时支付接口返回 ErrPaymentUnavailable
	var gateway service.PaymentGateway
	if rz, err := razorpay.NewClient(razorpay.Config{
		KeyID:         cfg.Razorpay.KeyID,
		KeySecret:     cfg.Razorpay.KeySecret,
		WebhookSecret: cfg.Razorpay.WebhookSecret,
	}); err != nil {
		log.Warn().Err(err).Msg("razorpay disabled")
	} else {
		gateway = rz
	}

	payments := service.NewPaymentService(paymentRepo.NewTransactionRepo(db), gateway, locker, service.PaymentOptions{
		Window:       cfg.Payment.Window,
		PollInterval: cfg.Payment.PollInterval,
		ProceedDelay: cfg.Payment.ProceedDelay,
	})

	sweeper, err := service.NewPaymentSweeper(payments, cfg.Payment.SweepSchedule)
	if err != nil {
		return nil, fmt.Errorf("create payment sweeper: %w", err)
	}

	runner := reel.NewRunner(vendors.images, vendors.videos, vendors.render)

	return &Services{
		Auth:    service.NewAuthService(authRepo.NewUserRepo(db), cfg.Auth.JWTSecret, cfg.Auth.AccessTokenExpiry),
		Payment: payments,
		Reel: service.NewReelService(
			reelRepo.NewProjectRepo(db), templates, runner, payments, store, locker, service.ReelOptions{},
		),
		Production: service.NewProductionService(prodRepo.NewProductionRepo(db), production.Deps{
			Treatment: vendors.treatment,
			Images:    vendors.images,
			Shots:     vendors.videos,
			Voice:     vendors.voice,
			Master:    vendors.render,
		}, store, service.ProductionOptions{SubstepDelay: cfg.Production.SubstepDelay}),
		Social:  service.NewSocialService(socialRepo.NewConnectionRepo(db)),
		Catalog: templates,
		Sweeper: sweeper,
	}, nil
}

// vendors 外部生成服务
type vendors struct {
	images    reel.ImageGenerator
	videos    *providers.ArkVideoProvider
	render    *creatomate.Client
	voice     *providers.VoiceoverProvider
	treatment *chain.TreatmentChain
}

func newVendors(ctx context.Context, cfg *config.Config, store storage.Storage) (*vendors, error) {
	images, err := providers.NewImageGenerator(cfg.ImageGen, store)
	if err != nil {
		return nil, err
	}

	videoClient, err := ark.NewVideoClient(ark.VideoConfig{
		APIKey:       cfg.VideoGen.APIKey,
		BaseURL:      cfg.VideoGen.BaseURL,
		Model:        cfg.VideoGen.Model,
		Ratio:        cfg.VideoGen.Ratio,
		Duration:     cfg.VideoGen.Duration,
		PollInterval: cfg.VideoGen.PollInterval,
		MaxAttempts:  cfg.VideoGen.MaxAttempts,
	})
	if err != nil {
		return nil, fmt.Errorf("create video client: %w", err)
	}

	render, err := creatomate.NewClient(creatomate.Config{
		BaseURL:            cfg.Render.BaseURL,
		APIKey:             cfg.Render.APIKey,
		PollInterval:       cfg.Render.PollInterval,
		MaxAttempts:        cfg.Render.MaxAttempts,
		MasterPollInterval: cfg.Render.MasterPollInterval,
		MasterMaxAttempts:  cfg.Render.MasterMaxAttempts,
	})
	if err != nil {
		return nil, fmt.Errorf("create render client: %w", err)
	}

	voiceClient, err := tts.NewClient(tts.Config{
		BaseURL: cfg.Voice.BaseURL,
		APIKey:  cfg.Voice.APIKey,
		Model:   cfg.Voice.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("create voice client: %w", err)
	}

	treatment, err := chain.NewTreatmentChain(ctx, &cfg.AI)
	if err != nil {
		return nil, fmt.Errorf("create treatment chain: %w", err)
	}

	return &vendors{
		images:    images,
		videos:    providers.NewArkVideoProvider(videoClient),
		render:    render,
		voice:     providers.NewVoiceoverProvider(voiceClient, store),
		treatment: treatment,
	}, nil
}

// setupRoutes 设置路由
func (s *Server) setupRoutes() {
	svc := s.services

	s.engine.Use(middleware.Recovery())
	s.engine.Use(middleware.RequestID())
	s.engine.Use(middleware.Logger())
	s.engine.Use(middleware.CORS(s.cfg.Server.AllowOrigins))

	probes := map[string]handler.Probe{
		"mongodb": s.mongo.Ping,
	}
	if s.redis != nil {
		probes["redis"] = s.redis.Ping
	}
	healthHandler := handler.NewHealthHandler(probes)
	s.engine.GET("/health", healthHandler.Health)
	s.engine.GET("/ready", healthHandler.Ready)

	s.engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// 本地存储时直接提供文件访问，base_url 需指向该路径
	if local := s.cfg.Storage.Local; (s.cfg.Storage.Type == "local" || s.cfg.Storage.Type == "") && local != nil {
		s.engine.Static("/files", local.BasePath)
	}

	authHdl := authHandler.NewHandler(svc.Auth)
	templateHdl := templateHandler.NewHandler(svc.Catalog)
	reelHdl := reelHandler.NewHandler(svc.Reel)
	paymentHdl := paymentHandler.NewHandler(svc.Payment)
	productionHdl := productionHandler.NewHandler(svc.Production)
	socialHdl := socialHandler.NewHandler(svc.Social)

	v1 := s.engine.Group("/api/v1")
	{
		// 公开接口
		v1.POST("/auth/register", authHdl.Register)
		v1.POST("/auth/login", authHdl.Login)
		v1.GET("/templates", templateHdl.List)
		v1.GET("/templates/:id", templateHdl.Get)
		v1.POST("/payments/razorpay/webhook", paymentHdl.Webhook)

		// 浏览器会话接口
		social := v1.Group("/social", middleware.Session())
		{
			social.GET("/connections", socialHdl.List)
			social.POST("/connections", socialHdl.Save)
			social.DELETE("/connections/:platform", socialHdl.Disconnect)
			social.POST("/post", socialHdl.Post)
		}

		// 需要登录的接口
		authed := v1.Group("", middleware.Auth(svc.Auth))
		{
			authed.GET("/auth/me", authHdl.GetMe)

			authed.POST("/reels", reelHdl.Create)
			authed.GET("/reels", reelHdl.List)
			authed.GET("/reels/:id", reelHdl.Get)
			authed.POST("/reels/:id/images", reelHdl.GenerateImages)
			authed.POST("/reels/:id/images/:imageId/regenerate", reelHdl.RegenerateImage)
			authed.POST("/reels/:id/payment", reelHdl.StartPayment)
			authed.GET("/reels/:id/payment", reelHdl.PaymentStatus)
			authed.POST("/reels/:id/videos", reelHdl.GenerateVideos)
			authed.POST("/reels/:id/compose", reelHdl.Compose)

			authed.POST("/payments/:id/check", paymentHdl.Check)
			authed.POST("/payments/verify", paymentHdl.Verify)

			authed.POST("/productions", productionHdl.Create)
			authed.GET("/productions/:id", productionHdl.Get)
			authed.POST("/productions/:id/reset", productionHdl.Reset)
		}
	}
}

// Run 启动服务器与支付过期清理任务，ctx 取消后优雅退出
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.engine,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	s.services.Sweeper.Start()

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down server...")
	case runErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown")
	}
	s.services.Sweeper.Stop()
	s.services.Reel.Close()
	s.services.Production.Close()
	s.Close(shutdownCtx)

	return runErr
}

// Close 关闭数据库与缓存连接
func (s *Server) Close(ctx context.Context) {
	if err := s.mongo.Close(ctx); err != nil {
		log.Error().Err(err).Msg("failed to close MongoDB connection")
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close Redis connection")
		}
	}
}

// Services 返回已装配的业务服务
func (s *Server) Services() *Services {
	return s.services
}

// Engine 获取 Gin 引擎 (用于测试)
func (s *Server) Engine() *gin.Engine {
	return s.engine
}
