// Command get-token mints a development JWT for exercising the booking
// API locally. The secret must match the server's JWT_SECRET.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"ms-railbooking/internal/auth"
	"ms-railbooking/internal/models"
)

func main() {
	_ = godotenv.Load()

	username := flag.String("user", "admin", "username to embed in the token")
	role := flag.String("role", models.RolePassenger, "role claim (PASSENGER or ADMIN)")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	flag.Parse()

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		secret = "dev-secret-change-me"
	}

	token, err := auth.IssueToken(secret, *username, *role, *ttl)
	if err != nil {
		log.Fatalf("could not issue token: %v", err)
	}
	fmt.Println(token)
}
