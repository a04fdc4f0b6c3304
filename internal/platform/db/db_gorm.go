package db

import (
	"fmt"
	"log"
	"os"
	"time"

	"campus_backend/internal/feature/auth/adapters"

	gmysql "gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// OpenDB opens the cookie and session store. With DB_USER set it connects
// to MySQL (retrying for up to 60s so the container can come up first),
// otherwise it falls back to a local SQLite file under DB_PATH.
func OpenDB() *gorm.DB {
	var (
		db  *gorm.DB
		err error
	)

	if user := os.Getenv("DB_USER"); user != "" {
		pass := os.Getenv("DB_PASSWORD")
		name := os.Getenv("DB_NAME")
		host := os.Getenv("DB_HOST")
		port := os.Getenv("DB_PORT")
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=Local",
			user, pass, host, port, name)

		deadline := time.Now().Add(60 * time.Second)
		for {
			db, err = gorm.Open(gmysql.Open(dsn), &gorm.Config{})
			if err == nil {
				break
			}
			if time.Now().After(deadline) {
				log.Fatalf("DB connect failed after 60s: %v", err)
			}
			log.Printf("DB connect failed, retrying...: %v", err)
			time.Sleep(3 * time.Second)
		}
	} else {
		path := os.Getenv("DB_PATH")
		if path == "" {
			path = "campus.db"
		}
		db, err = gorm.Open(sqlite.Open(path), &gorm.Config{})
		if err != nil {
			log.Fatalf("failed to open sqlite at %s: %v", path, err)
		}
	}

	if err := db.AutoMigrate(
		&adapters.CookieModel{},
		&adapters.SessionMetaModel{},
	); err != nil {
		log.Fatalf("failed to migrate: %v", err)
	}

	return db
}
