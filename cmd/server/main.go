package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	redisv9 "github.com/redis/go-redis/v9"

	"campus_backend/internal/app/di"
	"campus_backend/internal/app/router"
	infradb "campus_backend/internal/platform/db"
	infraredis "campus_backend/internal/platform/redis"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using environment as-is")
	}

	db := infradb.OpenDB()

	var rdb *redisv9.Client
	if tmp, err := infraredis.NewRedisClient(); err != nil {
		log.Println("[WARN] Redis unavailable. Running without cache.")
	} else if tmp != nil {
		rdb = tmp
		defer func() {
			if err := rdb.Close(); err != nil {
				log.Println("[ERROR] Failed to close Redis client:", err)
			}
		}()
	}

	sessions := di.NewSessionManager(db)
	authH := di.NewAuthHandler(sessions)
	bykcH := di.NewBykcHandler(sessions, rdb, 2*time.Minute)

	// Evict idle sessions so their connections and cookies do not outlive
	// the TTL between requests.
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			if n := sessions.SweepExpired(context.Background()); n > 0 {
				slog.Info("swept expired sessions", "count", n)
			}
		}
	}()

	r := router.NewRouter(authH, bykcH)

	if os.Getenv("JWT_SECRET") == "" {
		log.Println("[WARN] JWT_SECRET is not set. Set a strong secret in production.")
	}

	if err := r.Run(":8080"); err != nil {
		log.Fatal(err)
	}
}
