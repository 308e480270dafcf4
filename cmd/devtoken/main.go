// Command devtoken mints an access token for local testing of the protected
// customer routes.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/boddenberg/wallet-insights-bfa/internal/config"
	"github.com/boddenberg/wallet-insights-bfa/internal/service"
)

func main() {
	_ = config.LoadDotEnv(".env")
	cfg := config.Load()

	customerID := flag.String("customer", "", "customer id to put in the token subject")
	ttl := flag.Duration("ttl", cfg.JWTAccessTTL, "token lifetime")
	flag.Parse()

	if *customerID == "" {
		fmt.Fprintln(os.Stderr, "usage: devtoken -customer <id> [-ttl 15m]")
		os.Exit(2)
	}
	if cfg.JWTSecret == "" {
		fmt.Fprintln(os.Stderr, "JWT_SECRET is not set")
		os.Exit(1)
	}
	if *ttl <= 0 {
		*ttl = 15 * time.Minute
	}

	token, err := service.NewTokenService(cfg.JWTSecret, *ttl).SignAccessToken(*customerID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "signing token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
