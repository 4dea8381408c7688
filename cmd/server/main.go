package main // Entry point package

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/agritrust/connect-api/internal/config"
	"github.com/agritrust/connect-api/internal/database"
	"github.com/agritrust/connect-api/internal/handler"
	"github.com/agritrust/connect-api/internal/queue"
	"github.com/agritrust/connect-api/internal/repository"
	"github.com/agritrust/connect-api/internal/router"
	"github.com/agritrust/connect-api/internal/storage"
	"github.com/agritrust/connect-api/internal/utils"
)

func main() {
	_ = godotenv.Load() // optional .env for local development
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Println("redis unavailable; auth rate limiting disabled")
	}

	tokens := utils.NewTokenService(
		cfg.AccessSecret, cfg.RefreshSecret,
		cfg.TokenIssuer, cfg.TokenAudience,
		time.Duration(cfg.AccessTTLMin)*time.Minute,
		time.Duration(cfg.RefreshTTLDays)*24*time.Hour,
	)

	accounts := repository.NewAccountRepo(db)
	claims := repository.NewClaimRepo(db)
	uploads := storage.NewClient(cfg.StorageCloud, cfg.StorageKey, cfg.StorageSecret, cfg.StorageFolder)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.Logger())

	router.Register(e, router.Deps{
		Cfg:      cfg,
		Redis:    rdb,
		Tokens:   tokens,
		Accounts: accounts,
		Auth:     handler.NewAuthHandler(cfg, accounts, tokens),
		User:     handler.NewUserHandler(cfg, accounts),
		Claim:    handler.NewClaimHandler(cfg, claims, uploads),
		Health:   handler.NewHealthHandler(db, cfg.DBName),
	})

	// Reviewer intake trail; reconnects forever in the background.
	go func() {
		if err := queue.StartClaimConsumer(); err != nil {
			log.Printf("claim consumer stopped: %v", err)
		}
	}()

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	go func() {
		if err := e.Start(addr); err != nil {
			log.Printf("http server stopped: %v", err)
		}
	}()

	// Shutdown hook: drain in-flight requests, then release the DB pool via
	// the deferred Close above.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
