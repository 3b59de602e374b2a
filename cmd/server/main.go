package main

import (
	"log"

	"github.com/ferneyS02/licor-solution/config"
	"github.com/ferneyS02/licor-solution/internal/database"
	"github.com/ferneyS02/licor-solution/internal/events"
	"github.com/ferneyS02/licor-solution/internal/utils"
)

func main() {
	cfg := config.LoadConfig()
	utils.JwtSecret = []byte(cfg.Auth.JWTSecret)

	db, err := database.NewConnection(cfg.DB.DSN)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("migration failed: %v", err)
	}
	if err := database.EnsureSeed(db); err != nil {
		log.Fatalf("seed failed: %v", err)
	}

	rdb := config.NewRedisClient(cfg.Redis)
	defer rdb.Close()

	var pub *events.Publisher
	if cfg.AMQP.URL != "" {
		pub, err = events.Dial(cfg.AMQP.URL)
		if err != nil {
			log.Printf("amqp connect failed, events disabled: %v", err)
			pub = nil
		}
	}
	defer pub.Close()

	r := setupRouter(db, rdb, pub, cfg)

	log.Printf("sales service listening on :%s", cfg.HTTP.Port)
	if err := r.Run(":" + cfg.HTTP.Port); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}
