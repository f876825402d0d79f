// Command token mints an access token for local development, signed with
// JWT_SECRET from the environment or .env.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/iliyamo/venue-table-reservation/internal/identity"
)

func main() {
	sub := flag.String("sub", "", "caller id (required)")
	name := flag.String("name", "", "display name claim")
	role := flag.String("role", "", "role claim")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	flag.Parse()

	_ = godotenv.Load()
	secret := os.Getenv("JWT_SECRET")
	if *sub == "" || secret == "" {
		fmt.Fprintln(os.Stderr, "usage: JWT_SECRET=... token -sub <caller id> [-name n] [-role r] [-ttl 1h]")
		os.Exit(2)
	}

	tok, err := identity.NewAccessToken(secret, *sub, *name, *role, *ttl)
	if err != nil {
		fmt.Fprintln(os.Stderr, "sign token:", err)
		os.Exit(1)
	}
	fmt.Println(tok.Token)
}
