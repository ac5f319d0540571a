package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/moran1024a/Library-Control-web/internal/config"
	"github.com/moran1024a/Library-Control-web/internal/handler"
	"github.com/moran1024a/Library-Control-web/internal/middleware"
	"github.com/moran1024a/Library-Control-web/internal/model"
)

// RegisterRoutes registers routes that do not require authentication:
// the health check and the public catalogue browse/search endpoints.
// Catalogue reads sit behind the Redis response cache when one is
// configured; the middleware is a pass-through otherwise.
func RegisterRoutes(e *echo.Echo, b *handler.BookHandler, cacheCfg config.CacheConfig, rdb *redis.Client) {
	// Load balancers and monitoring probe this endpoint.
	e.GET("/healthz", handler.Health)

	pub := e.Group("/v1", middleware.NewRedisCache(cacheCfg, rdb))
	pub.GET("/books", b.List)
	pub.GET("/books/:id", b.Get)
	pub.GET("/search/books", b.Search)
}

// RegisterAuth registers the account endpoints.  Register/login/refresh
// live under /v1/auth and need no session; profile endpoints require a
// valid access token.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)

	auth := e.Group("/v1", middleware.JWTAuth(jwtSecret))
	auth.POST("/auth/logout", a.Logout)
	auth.GET("/me", a.Me)
	auth.PUT("/me", a.UpdateProfile)
}

// RegisterLibrary registers the borrow/return engine and the admin-only
// catalogue mutations.  All routes require a valid access token; the
// token bucket limiter throttles per user before any handler runs.
func RegisterLibrary(e *echo.Echo, b *handler.BookHandler, br *handler.BorrowHandler, lg *handler.LogHandler, jwtSecret string, rlCfg config.RateLimitConfig, rdb *redis.Client) {
	auth := e.Group("/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin, model.RoleUser),
		middleware.NewTokenBucket(rlCfg, rdb),
	)
	auth.POST("/borrow/:book_id", br.Borrow)
	auth.POST("/return/:record_id", br.Return)
	auth.GET("/records", br.Records)

	admin := e.Group("/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin),
	)
	admin.POST("/books", b.Create)
	admin.PUT("/books/:id", b.Update)
	admin.DELETE("/books/:id", b.Delete)
	admin.GET("/stats/borrow", br.Statistics)
	admin.POST("/records/overdue-check", br.CheckOverdue)
	admin.GET("/logs", lg.Recent)
}
