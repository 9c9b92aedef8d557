// Seeds or resets an admin account.
// cmd/create-admin/main.go
package main

import (
	"context"
	"flag"
	"log"
	"os"

	"bursary-management-api/config"
	"bursary-management-api/repository"
	"bursary-management-api/services"

	"github.com/joho/godotenv"
)

func main() {
	username := flag.String("username", "", "admin username")
	email := flag.String("email", "", "admin email (optional)")
	password := flag.String("password", os.Getenv("ADMIN_PASSWORD"), "admin password (defaults to $ADMIN_PASSWORD)")
	flag.Parse()

	// Load .env
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	db, err := config.OpenDB(cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	if err := repository.AutoMigrate(db); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	auth := services.NewAuthService(repository.NewGormStore(db), cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, config.NewDiscardLogger())
	user, err := auth.CreateAdmin(context.Background(), *username, *email, *password)
	if err != nil {
		log.Fatal("Failed to create admin:", err)
	}

	log.Printf("Admin %s (id %d) is ready\n", user.Username, user.ID)
}
