package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"shorturl-service/docs"
	"shorturl-service/internal/cache"
	"shorturl-service/internal/config"
	"shorturl-service/internal/handler"
	"shorturl-service/internal/metrics"
	"shorturl-service/internal/middleware"
	"shorturl-service/internal/policy"
	"shorturl-service/internal/service"
	"shorturl-service/internal/shortcode"
	"shorturl-service/internal/store"
	"shorturl-service/pkg/database"
	auth "shorturl-service/pkg/jwt"
	"shorturl-service/pkg/logger"
	"shorturl-service/pkg/redis"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

// @title 短链接服务 API
// @version 1.0
// @description 短码生成、跳转与所有权管理
// @BasePath /
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name Authorization
func main() {
	configPath := flag.String("config", "configs/config.yaml", "配置文件路径")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "配置加载失败: %v\n", err)
		os.Exit(1)
	}

	logger.InitLogger(logger.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	defer func() {
		if err := logger.Logger.Sync(); err != nil {
			fmt.Println("日志同步失败:", err)
		}
	}()
	sugaredLogger := zap.S()

	db, err := database.Open(database.Options{
		Driver:   cfg.Database.Driver,
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		Name:     cfg.Database.Name,
		Charset:  cfg.Database.Charset,
		MaxOpen:  cfg.Database.MaxOpen,
		MaxIdle:  cfg.Database.MaxIdle,
	})
	if err != nil {
		sugaredLogger.Fatalf("数据库初始化失败: %v", err)
	}
	sugaredLogger.Info("✅ 数据库连接成功")

	linkStore := store.NewGormStore(db)
	userStore := store.NewUserStore(db)
	if err := linkStore.AutoMigrate(); err != nil {
		sugaredLogger.Fatalf("数据库迁移失败: %v", err)
	}
	if err := userStore.AutoMigrate(); err != nil {
		sugaredLogger.Fatalf("数据库迁移失败: %v", err)
	}
	sugaredLogger.Info("✅ 数据库迁移成功")

	rdb, err := redis.NewRedisClient(&redis.Options{
		Host: cfg.Cache.Host, Port: cfg.Cache.Port, Password: cfg.Cache.Password, DB: cfg.Cache.DB,
	})
	if err != nil {
		sugaredLogger.Warnf("缓存连接失败，仅使用本地缓存: %v", err)
		rdb = nil
	} else if rdb != nil {
		defer func() {
			if err := rdb.Close(); err != nil {
				sugaredLogger.Errorf("关闭 Redis 连接失败: %v", err)
			}
		}()
		sugaredLogger.Info("✅ 缓存连接成功")
	}

	local, err := cache.NewLocalCache(cfg.Cache.LocalItems, time.Duration(cfg.Cache.LocalTTLSecs)*time.Second)
	if err != nil {
		sugaredLogger.Fatalf("本地缓存初始化失败: %v", err)
	}
	linkCache := cache.NewLinkCache(rdb, local, time.Duration(cfg.Cache.TTLMinutes)*time.Minute)
	defer linkCache.Close()

	codeFilter := cache.NewCodeFilter(cfg.Cache.BloomCapacity, 0.01)
	if err := warmFilter(context.Background(), linkStore, codeFilter); err != nil {
		sugaredLogger.Fatalf("加载已有短码失败: %v", err)
	}
	sugaredLogger.Infof("✅ 布隆过滤器已加载 %d 个短码", codeFilter.Count())

	metrics.Register()

	generator := shortcode.NewGenerator(cfg.Shortcode.Length)
	resolver := shortcode.NewResolver(generator, linkStore, codeFilter, cfg.Shortcode.MaxAttempts, sugaredLogger)
	linkService := service.NewLinkService(linkStore, resolver, policy.New(), userStore, sugaredLogger,
		service.WithCache(linkCache),
		service.WithBaseURL(cfg.App.BaseURL),
	)

	tokenManager := auth.NewManager(cfg.Auth.Secret, cfg.Auth.Issuer, cfg.Auth.ExpirationHours)
	sugaredLogger.Info("✅ 认证管理器初始化成功")

	if cfg.Auth.AdminUsername != "" && cfg.Auth.AdminPassword != "" {
		created, err := userStore.EnsureAdmin(context.Background(), cfg.Auth.AdminUsername, cfg.Auth.AdminEmail, cfg.Auth.AdminPassword)
		if err != nil {
			sugaredLogger.Errorf("创建管理员失败: %v", err)
		} else if created {
			sugaredLogger.Infow("✅ 默认管理员创建成功", "username", cfg.Auth.AdminUsername)
		}
	}

	if cfg.App.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.GinZapRecovery(logger.Logger, true))
	router.Use(middleware.GinZapLogger(logger.Logger))
	router.Use(middleware.RateLimit(&cfg.RateLimit))

	docs.SwaggerInfo.Host = fmt.Sprintf("localhost:%d", cfg.Server.Port)
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	urlHandler := handler.NewShortLinkHandler(linkService, sugaredLogger)
	authHandler := handler.NewAuthHandler(userStore, tokenManager, sugaredLogger)
	handler.RegisterRoutes(router, urlHandler, authHandler, middleware.IdentityMiddleware(tokenManager))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		sugaredLogger.Infof("🚀 服务启动成功, 访问 http://localhost:%d", cfg.Server.Port)
		sugaredLogger.Infof("📚 Swagger 文档地址: http://localhost:%d/swagger/index.html", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sugaredLogger.Fatalf("服务启动失败: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	sugaredLogger.Info("正在关闭服务...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		sugaredLogger.Errorf("服务关闭失败: %v", err)
	}
}

// warmFilter 用已有短码填充布隆过滤器
func warmFilter(ctx context.Context, links store.LinkStore, filter *cache.CodeFilter) error {
	all, err := links.ListAll(ctx)
	if err != nil {
		return err
	}
	for i := range all {
		filter.Add(all[i].ShortCode)
	}
	return nil
}
