package main // Entry point package

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/tlemaire/biblio-backend/internal/config"
	"github.com/tlemaire/biblio-backend/internal/database"
	"github.com/tlemaire/biblio-backend/internal/handler"
	"github.com/tlemaire/biblio-backend/internal/middleware"
	"github.com/tlemaire/biblio-backend/internal/model"
	"github.com/tlemaire/biblio-backend/internal/queue"
	"github.com/tlemaire/biblio-backend/internal/repository"
	"github.com/tlemaire/biblio-backend/internal/router"
	"github.com/tlemaire/biblio-backend/internal/service"
)

func main() {
	_ = godotenv.Load() // .env is optional; real deployments set the environment

	cfg := config.Load()

	db, err := database.Open(database.Options{
		User:            cfg.DBUser,
		Pass:            cfg.DBPass,
		Host:            cfg.DBHost,
		Port:            cfg.DBPort,
		Name:            cfg.DBName,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
	})
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Redis is optional: without it the blacklist, rate limiter and
	// response cache all degrade to no-ops.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Printf("redis: unavailable, token blacklist / rate limit / cache disabled")
	}
	blacklist := repository.NewTokenBlacklist(rdb)

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	books := repository.NewBookRepo(db)
	samples := repository.NewSampleRepo(db)
	borrows := repository.NewBorrowRepo(db)
	notifs := repository.NewNotificationRepo(db)

	lifecycle := service.NewBorrowLifecycle(db, borrows, samples, users, notifs, cfg.BorrowAutoApprove)
	scanner := service.NewNotificationScanner(borrows, notifs, lifecycle)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go scanner.Run(ctx, cfg.ScanInterval)
	go func() {
		if err := queue.StartBorrowConsumer(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("borrow-consumer: %v", err)
		}
	}()

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{AllowOrigins: cfg.CORSOrigins}))
	e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))
	cacheMW := middleware.NewRedisCache(config.LoadCacheConfig(), rdb)

	authH := handler.NewAuthHandler(cfg, users, tokens, blacklist)
	bookH := handler.NewBookHandler(books, samples)
	sampleH := handler.NewSampleHandler(samples, books, borrows)
	borrowH := handler.NewBorrowHandler(lifecycle, borrows)
	notifH := handler.NewNotificationHandler(notifs)
	memberH := handler.NewUserAdminHandler(users, model.RoleMember)
	librarianH := handler.NewUserAdminHandler(users, model.RoleLibrarian)

	router.RegisterRoutes(e)
	router.RegisterAuth(e, authH, cfg.JWTSecret, blacklist)
	router.RegisterCatalog(e, bookH, sampleH, cfg.JWTSecret, blacklist, cacheMW)
	router.RegisterBorrows(e, borrowH, cfg.JWTSecret, blacklist)
	router.RegisterUserAdmin(e, memberH, librarianH, cfg.JWTSecret, blacklist)
	router.RegisterNotifications(e, notifH, cfg.JWTSecret, blacklist)

	// Stop accepting requests once a signal lands; in-flight requests get
	// a grace period to finish before the listener is torn down.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}()

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}
