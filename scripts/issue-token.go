package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"time"

	"github.com/penshort/userauth/internal/auth"
	"github.com/penshort/userauth/internal/config"
	"github.com/penshort/userauth/internal/model"
	"github.com/penshort/userauth/internal/repository"
	"github.com/penshort/userauth/internal/service"
)

type output struct {
	UserID    int32     `json:"user_id"`
	Email     string    `json:"email"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type options struct {
	databaseURL string
	secret      string
	userID      int32
	email       string
	ttl         time.Duration
	format      string
}

// Mints a bearer token for an existing user without their password.
// Intended for operators and local development.
func main() {
	opts, err := parseOptions(os.Args[1:], os.Getenv)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	if err := run(opts, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func parseOptions(args []string, getenv func(string) string) (options, error) {
	fs := flag.NewFlagSet("issue-token", flag.ContinueOnError)
	var (
		databaseURL = fs.String("database-url", getenv("DATABASE_URL"), "PostgreSQL connection string")
		secret      = fs.String("secret", getenv("JWT_SECRET"), "HMAC signing secret (defaults to JWT_SECRET)")
		userID      = fs.Int64("user-id", 0, "ID of the user to issue a token for")
		email       = fs.String("email", "", "Email of the user to issue a token for (alternative to -user-id)")
		ttl         = fs.Duration("ttl", time.Hour, "Token lifetime")
		format      = fs.String("format", "plain", "Output format: plain or json")
	)
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	opts := options{
		databaseURL: *databaseURL,
		secret:      *secret,
		email:       *email,
		ttl:         *ttl,
		format:      strings.ToLower(*format),
	}

	switch {
	case opts.databaseURL == "":
		return options{}, errors.New("DATABASE_URL is required")
	case len(opts.secret) < config.MinJWTSecretLength:
		return options{}, fmt.Errorf("signing secret must be at least %d bytes", config.MinJWTSecretLength)
	case (*userID == 0) == (opts.email == ""):
		return options{}, errors.New("exactly one of -user-id or -email is required")
	case *userID < 0 || *userID > math.MaxInt32:
		return options{}, fmt.Errorf("-user-id %d is out of range", *userID)
	case opts.ttl <= 0:
		return options{}, errors.New("-ttl must be positive")
	case opts.format != "plain" && opts.format != "json":
		return options{}, errors.New("invalid format; use plain or json")
	}
	opts.userID = int32(*userID)

	return opts, nil
}

func run(opts options, stdout io.Writer) error {
	tokens, err := auth.NewTokenService([]byte(opts.secret))
	if err != nil {
		return fmt.Errorf("token service: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	repo, err := repository.New(ctx, opts.databaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer repo.Close()

	user, err := findUser(ctx, repo, opts.userID, opts.email)
	if err != nil {
		return err
	}
	if !user.IsActive() {
		return fmt.Errorf("user %d is not active", user.ID)
	}

	svc := service.NewUserService(repo, tokens, service.UserServiceConfig{TokenTTL: opts.ttl}, nil)
	token, claims, err := svc.IssueToken(user)
	if err != nil {
		return fmt.Errorf("issue token: %w", err)
	}

	return writeOutput(stdout, opts.format, output{
		UserID:    user.ID,
		Email:     user.Email,
		Token:     token,
		ExpiresAt: claims.ExpiresAtTime(),
	})
}

func writeOutput(w io.Writer, format string, out output) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}
	_, err := fmt.Fprintln(w, out.Token)
	return err
}

func findUser(ctx context.Context, repo *repository.Repository, id int32, email string) (*model.User, error) {
	var (
		user *model.User
		err  error
	)
	if id != 0 {
		user, err = repo.GetUserByID(ctx, id)
	} else {
		user, err = repo.GetUserByEmail(ctx, model.NormalizeEmail(email))
	}
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, errors.New("user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return user, nil
}
