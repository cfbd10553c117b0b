package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"devmind/datacollector/internal/auth"
	"devmind/datacollector/internal/config"
)

// tokengen issues a bearer token for an owner, signed with JWT_SECRET
func main() {
	owner := flag.String("owner", "", "owner id the token is scoped to")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	if *owner == "" {
		log.Fatal("-owner is required")
	}

	cfg := config.Load()
	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET is not set")
	}

	token, err := auth.IssueToken([]byte(cfg.JWTSecret), *owner, *ttl)
	if err != nil {
		log.Fatalf("issue token: %v", err)
	}

	fmt.Println(token)
}
