// Command admintoken mints an operator JWT for the /v1/admin routes.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/iliyamo/resume-demo-gate/internal/middleware"
	"github.com/iliyamo/resume-demo-gate/internal/utils"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	_ = godotenv.Load()

	var secret, subject string
	var ttlMin int
	flagSet := pflag.NewFlagSet("admintoken", pflag.ContinueOnError)
	flagSet.StringVar(&secret, "secret", os.Getenv("JWT_SECRET"), "signing secret (default: $JWT_SECRET)")
	flagSet.StringVar(&subject, "subject", "operator", "sub claim of the token")
	flagSet.IntVar(&ttlMin, "ttl-min", 60, "token lifetime in minutes")
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if rest := flagSet.Args(); len(rest) > 0 {
		return fmt.Errorf("unexpected argument: %s", rest[0])
	}
	if secret == "" {
		return errors.New("no secret: set JWT_SECRET or pass --secret")
	}
	if ttlMin < 1 {
		return fmt.Errorf("--ttl-min must be at least 1, got %d", ttlMin)
	}

	tok, err := utils.NewAccessToken(secret, subject, middleware.RoleAdmin, ttlMin)
	if err != nil {
		return fmt.Errorf("sign token: %w", err)
	}
	fmt.Fprintln(out, tok.Token)
	return nil
}
