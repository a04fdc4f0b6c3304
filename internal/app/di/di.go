// Package di provides dependency injection factories for creating
// application components.
package di

import (
	"os"
	"time"

	redisv9 "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"campus_backend/internal/feature/auth/adapters"
	"campus_backend/internal/feature/auth/cas"
	authhandler "campus_backend/internal/feature/auth/transport/handler"
	authusecase "campus_backend/internal/feature/auth/usecase"
	"campus_backend/internal/feature/bykc"
	bykchandler "campus_backend/internal/feature/bykc/transport/handler"
	"campus_backend/internal/platform/cache"
	platformhttp "campus_backend/internal/platform/http"
	jwtmw "campus_backend/internal/platform/jwt"
)

// NewSessionManager wires the durable cookie store and the per-user HTTP
// client factory into a session manager.
func NewSessionManager(db *gorm.DB) *authusecase.SessionManager {
	cookies := adapters.NewCookieGorm(db)
	meta := adapters.NewSessionMetaGorm(db)

	factory := func(owner string) *authusecase.SessionClients {
		jar := adapters.NewUserJar(cookies, owner)
		clients := platformhttp.NewSessionClients(jar)
		return &authusecase.SessionClients{
			Standard: clients.Standard,
			Inspect:  clients.Inspect,
			Close:    clients.Close,
		}
	}

	return authusecase.NewSessionManager(cookies, meta, factory, authusecase.DefaultSessionTTL)
}

// NewAuthHandler assembles the full login stack on top of a session manager.
func NewAuthHandler(sessions *authusecase.SessionManager) *authhandler.AuthHandler {
	casCfg := cas.LoadConfig()
	loginCfg := authusecase.LoadLoginConfig()
	tokens := jwtmw.NewGenerator(os.Getenv(jwtmw.EnvKeyJWTSecret), 24*time.Hour)
	uc := authusecase.NewLoginUsecase(sessions, casCfg, loginCfg, tokens)
	return authhandler.NewAuthHandler(uc)
}

// NewBykcHandler assembles the enrollment system client, optionally
// wrapping the shared catalog reads in a Redis cache.
func NewBykcHandler(sessions *authusecase.SessionManager, rdb *redisv9.Client, cacheTTL time.Duration) *bykchandler.BykcHandler {
	cfg := bykc.LoadConfig()
	svc := bykc.NewService(cfg, sessions, nil)
	catalog := cache.NewCachingCourseCatalog(rdb, cacheTTL, svc, "bykc")
	return bykchandler.NewBykcHandler(svc, catalog)
}
