package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/fileferry/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
// Only the settings most often changed between environments get flags;
// everything else is reachable through the JSON config file.
//
// Supported flags:
//
//	-a string     HTTP bind address (e.g., ":8080")
//	-d string     PostgreSQL DSN for transfer history
//	-r string     Redis address (empty selects the in-process store)
//	-s string     session token HMAC secret key
//	-t int        session TTL, seconds
//	-e string     S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//	-role string  STS role ARN for credential issuance
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with other components.
func parseFlags(config *Config) {
	// Filter args to include only the flags handled here.
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-r", "-s", "-t", "-e", "-role"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port to run the HTTP API")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.RedisAddr, "r", config.RedisAddr, "redis address")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	sessionTTL := fs.Int("t", int(config.SessionTTL.Seconds()), "session_ttl (in seconds)")

	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.StringVar(&config.STSRoleARN, "role", config.STSRoleARN, "STS role ARN")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.SessionTTL = time.Duration(*sessionTTL) * time.Second
}
