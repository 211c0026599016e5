// Command mint-token issues an operator token signed with the configured JWT
// secret, for local use against the API and the websocket feed.
package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"go-dispatch-ws/internal/config"
	"go-dispatch-ws/pkg/jwt"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

func main() {
	// 1. Load Env
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, relying on system env")
	}

	userID := pflag.String("user", "", "operator id recorded on every change (required)")
	name := pflag.String("name", "", "operator display name")
	email := pflag.String("email", "", "operator email")
	stores := pflag.StringSlice("store", nil, "store id the websocket feed is limited to (repeatable)")
	ttl := pflag.Duration("ttl", 0, "token lifetime, defaults to jwt.expire")
	pflag.Parse()

	if *userID == "" {
		pflag.Usage()
		os.Exit(2)
	}

	// 2. Signing config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	expire := cfg.JWT.Expire
	if *ttl > 0 {
		expire = *ttl
	}

	// 3. Sign
	token, err := jwt.NewManager(cfg.JWT.Secret, cfg.JWT.Issuer, expire).
		GenerateToken(*userID, *email, *name, *stores)
	if err != nil {
		log.Fatalf("Failed to sign token: %v", err)
	}

	fmt.Println(token)
	log.Printf("Token for %s expires at %s", *userID, time.Now().Add(expire).Format(time.RFC3339))
}
