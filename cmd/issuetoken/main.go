// Command issuetoken mints an access token accepted by the booking API.
// It is meant for local testing and operator scripts; production tokens
// come from the identity service.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/iliyamo/showtime-booking/internal/utils"
)

var (
	userID  = flag.Uint64("user", 1, "User id placed in the sub claim")
	role    = flag.String("role", "CUSTOMER", "Role claim (CUSTOMER or ADMIN)")
	session = flag.String("session", "", "Session id (sid claim); a random one is generated when empty")
	ttl     = flag.Duration("ttl", time.Hour, "Token lifetime")
)

func main() {
	flag.Parse()
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	_ = godotenv.Load()
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		log.Fatal().Msg("JWT_SECRET is not set")
	}

	sid := *session
	if sid == "" {
		sid = utils.NewSessionID()
	}
	tok, err := utils.NewAccessToken(secret, *userID, sid, *role, *ttl)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to sign token")
	}
	log.Info().Uint64("user_id", *userID).Str("session_id", sid).Time("expires", tok.Exp).Msg("token issued")
	fmt.Println(tok.Token)
}
