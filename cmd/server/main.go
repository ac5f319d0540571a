package main // Entry point package

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/moran1024a/Library-Control-web/internal/config"
	"github.com/moran1024a/Library-Control-web/internal/database"
	"github.com/moran1024a/Library-Control-web/internal/handler"
	"github.com/moran1024a/Library-Control-web/internal/queue"
	"github.com/moran1024a/Library-Control-web/internal/repository"
	"github.com/moran1024a/Library-Control-web/internal/router"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database open: %v", err)
	}
	defer db.Close()

	if err := database.MigrateUp(db, cfg.DBName); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	// Redis is optional: with no reachable instance the cache and rate
	// limit middleware become pass-throughs.
	rdb := config.NewRedisClient()
	cacheCfg := config.LoadCacheConfig()
	rlCfg := config.LoadRateLimitConfig()

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	books := repository.NewBookRepo(db)
	borrows := repository.NewBorrowRepo(db)
	logs := repository.NewLogRepo(db)

	authH := handler.NewAuthHandler(cfg, users, tokens)
	bookH := handler.NewBookHandler(cfg, books)
	borrowH := handler.NewBorrowHandler(cfg, borrows)
	logH := handler.NewLogHandler(cfg, logs)

	// The audit consumer drains action events into the logs table.  It
	// reconnects on failure; without a broker the API still serves.
	go func() {
		if err := queue.StartAuditConsumer(logs); err != nil {
			log.Printf("audit consumer stopped: %v", err)
		}
	}()

	e := echo.New()
	e.HideBanner = true

	router.RegisterRoutes(e, bookH, cacheCfg, rdb)
	router.RegisterAuth(e, authH, cfg.JWTSecret)
	router.RegisterLibrary(e, bookH, borrowH, logH, cfg.JWTSecret, rlCfg, rdb)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)

	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
