// Command devtoken prints a signed customer access token for local testing
// against a running server. It reads JWT_SECRET and ACCESS_TOKEN_TTL_MIN
// from the environment or .env, the same way the server does.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/iliyamo/cinema-seat-booking/internal/config"
	"github.com/iliyamo/cinema-seat-booking/internal/middleware"
	"github.com/iliyamo/cinema-seat-booking/internal/utils"
)

func main() {
	_ = godotenv.Load()

	userID := flag.Uint64("user", 1, "customer id placed in the sub claim")
	role := flag.String("role", middleware.RoleCustomer, "role claim")
	ttl := flag.Int("ttl", 0, "lifetime in minutes; defaults to ACCESS_TOKEN_TTL_MIN")
	flag.Parse()

	cfg, err := config.LoadTokenConfig()
	if err != nil {
		slog.Error("load token config", "error", err)
		os.Exit(1)
	}
	if *ttl > 0 {
		cfg.AccessTTLMin = *ttl
	}

	tok, err := utils.NewAccessToken(cfg.JWTSecret, *userID, *role, cfg.AccessTTLMin)
	if err != nil {
		slog.Error("sign token", "error", err)
		os.Exit(1)
	}
	fmt.Println(tok.Token)
	fmt.Fprintf(os.Stderr, "expires %s\n", tok.Exp.Format("2006-01-02 15:04:05 MST"))
}
