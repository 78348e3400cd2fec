package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"mail-auth/internal/config"
	"mail-auth/internal/db"
	"mail-auth/internal/email"
	apihttp "mail-auth/internal/http"
	"mail-auth/internal/repository"
	"mail-auth/internal/service"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	var (
		userRepo    repository.UserRepository
		pendingRepo repository.PendingRepository
	)
	if cfg.DatabaseURL != "" {
		pool, err := db.NewPool(ctx, cfg)
		if err != nil {
			logger.Fatal("db connect", zap.Error(err))
		}
		defer pool.Close()
		if err := db.Ping(ctx, pool); err != nil {
			logger.Fatal("db ping", zap.Error(err))
		}
		userRepo = repository.NewPgUserRepository(pool)
		pendingRepo = repository.NewPgPendingRepository(pool)
	} else {
		store, err := repository.NewFileStore(cfg.UsersFile)
		if err != nil {
			logger.Fatal("file store init", zap.Error(err))
		}
		logger.Info("using file store", zap.String("path", cfg.UsersFile))
		userRepo = store
		pendingRepo = store.PendingRepo()
	}

	emailSender := email.NewDisabledSender("email sender not configured")
	if cfg.SMTPHost != "" {
		sender, err := email.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom, cfg.SMTPFromName, cfg.SMTPUseTLS)
		if err != nil {
			logger.Warn("smtp sender init failed", zap.Error(err))
		} else {
			emailSender = sender
		}
	}

	otpTTL := time.Duration(cfg.OTPTTLMinutes) * time.Minute
	var (
		otpLimiter service.OTPRateLimiter
		denylist   service.SessionDenylist
	)
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed", zap.Error(err))
		} else {
			otpLimiter = service.NewRedisOTPRateLimiter(redisClient, otpTTL, cfg.OTPRateMax)
			denylist = service.NewRedisSessionDenylist(redisClient)
		}
		cancel()
	}
	if otpLimiter == nil {
		otpLimiter = service.NewOTPRateLimiter(otpTTL, cfg.OTPRateMax)
	}

	hasher := service.NewPasswordHasher(cfg.KDFIterations)
	tokenSvc := service.NewTokenServiceWithDenylist(
		cfg.JWTSecret,
		time.Duration(cfg.TokenTTLHours)*time.Hour,
		denylist,
	)
	otpSvc := service.NewOTPService(logger, userRepo, pendingRepo, hasher, emailSender, otpLimiter, otpTTL, cfg.OTPMaxAttempts)
	authSvc := service.NewAuthService(logger, userRepo, otpSvc, hasher, tokenSvc)

	authHandler := apihttp.NewAuthHandler(logger, authSvc)
	router := apihttp.NewRouter(logger, authSvc, authHandler)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("starting server", zap.String("port", cfg.HTTPPort))

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("server error", zap.Error(err))
	}
}
