// Package useradmin implements the webshelf operator CLI: secret
// generation, password hashing, admin bootstrap and token issuance.
package useradmin

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dmitrijs2005/webshelf/internal/common"
	"github.com/dmitrijs2005/webshelf/internal/cryptox"
	"github.com/dmitrijs2005/webshelf/internal/server/config"
	"github.com/dmitrijs2005/webshelf/internal/server/models"
	"github.com/dmitrijs2005/webshelf/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/webshelf/internal/server/services"
	"github.com/spf13/cobra"
)

// openStore is a seam for tests.
var openStore = repomanager.Open

type options struct {
	databaseURL string
	secret      string
	ttl         time.Duration
	stdin       bool
}

// NewRootCommand builds the command tree. The database URL, secret and token
// ttl fall back to the WEBSHELF_* environment when their flags are unset.
// Those fallbacks are resolved at run time so --help never prints them.
func NewRootCommand() *cobra.Command {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	envErr := config.LoadEnv(cfg)

	opts := &options{}
	root := &cobra.Command{
		Use:           "useradmin",
		Short:         "Operator tooling for webshelf accounts",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			if envErr != nil {
				return envErr
			}
			if opts.databaseURL == "" {
				opts.databaseURL = cfg.DatabaseDSN
			}
			if opts.secret == "" {
				opts.secret = cfg.SecretKey
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&opts.databaseURL, "database-url", "", "database DSN, or memory:// (default $WEBSHELF_DATABASE_URL)")
	root.PersistentFlags().StringVar(&opts.secret, "secret", "", "JWT signing secret (default $WEBSHELF_JWT_SECRET)")
	root.PersistentFlags().DurationVar(&opts.ttl, "ttl", cfg.TokenTTL, "token lifetime")
	root.PersistentFlags().BoolVar(&opts.stdin, "stdin", false, "read the password from stdin instead of the terminal")

	root.AddCommand(
		newGenSecretCommand(),
		newHashPasswordCommand(opts),
		newVerifyPasswordCommand(opts),
		newCreateAdminCommand(opts),
		newIssueTokenCommand(opts),
	)
	return root
}

func newGenSecretCommand() *cobra.Command {
	var size int
	cmd := &cobra.Command{
		Use:   "gen-secret",
		Short: "Print a random hex secret suitable for WEBSHELF_JWT_SECRET",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if size < config.MinSecretLength/2 {
				return fmt.Errorf("--bytes must be at least %d", config.MinSecretLength/2)
			}
			s, err := common.MakeRandHexString(size)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), s)
			return err
		},
	}
	cmd.Flags().IntVar(&size, "bytes", 32, "number of random bytes")
	return cmd
}

func newHashPasswordCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password",
		Short: "Print the Argon2id hash of a password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pw, err := getPassword(cmd.ErrOrStderr(), cmd.InOrStdin(), opts.stdin)
			if err != nil {
				return err
			}
			defer common.WipeByteArray(pw)

			hash, err := cryptox.HashPassword(string(pw))
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), hash)
			return err
		},
	}
}

func newVerifyPasswordCommand(opts *options) *cobra.Command {
	var hash string
	cmd := &cobra.Command{
		Use:   "verify-password",
		Short: "Check a password against a stored Argon2id hash",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pw, err := getPassword(cmd.ErrOrStderr(), cmd.InOrStdin(), opts.stdin)
			if err != nil {
				return err
			}
			defer common.WipeByteArray(pw)

			ok, err := cryptox.VerifyPassword(string(pw), hash)
			if err != nil {
				return err
			}
			if !ok {
				return errors.New("password does not match")
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return err
		},
	}
	cmd.Flags().StringVar(&hash, "hash", "", "encoded hash, as stored in users.password_hash")
	_ = cmd.MarkFlagRequired("hash")
	return cmd
}

func newCreateAdminCommand(opts *options) *cobra.Command {
	var email, name string
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an admin account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pw, err := getPassword(cmd.ErrOrStderr(), cmd.InOrStdin(), opts.stdin)
			if err != nil {
				return err
			}
			defer common.WipeByteArray(pw)
			if len(pw) < 8 {
				return errors.New("password must be at least 8 characters")
			}

			return withStore(cmd.Context(), opts, func(db *sql.DB, rm repomanager.RepositoryManager) error {
				us := services.NewUserService(db, rm, cryptox.NewHasher(cryptox.DefaultParams), nil, nil)
				u, err := us.Create(cmd.Context(), services.CreateUserInput{
					Name:     name,
					Email:    email,
					Password: string(pw),
					Role:     models.RoleAdmin,
				})
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "created admin %s (%s)\n", u.Email, u.ID)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "admin email")
	cmd.Flags().StringVar(&name, "name", "Administrator", "display name")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newIssueTokenCommand(opts *options) *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "issue-token",
		Short: "Issue a bearer token for an existing account without its password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.secret == "" {
				return errors.New("a signing secret is required (--secret or WEBSHELF_JWT_SECRET)")
			}

			return withStore(cmd.Context(), opts, func(db *sql.DB, rm repomanager.RepositoryManager) error {
				u, err := rm.Users(db).FindByEmail(cmd.Context(), services.NormalizeEmail(email))
				if err != nil {
					return fmt.Errorf("lookup %s: %w", email, err)
				}

				cfg := &config.Config{SecretKey: opts.secret, TokenTTL: opts.ttl}
				as := services.NewAuthService(db, rm, cryptox.NewHasher(cryptox.DefaultParams), cfg, nil, nil)
				tok, err := as.IssueToken(u)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), tok)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func withStore(ctx context.Context, opts *options, fn func(*sql.DB, repomanager.RepositoryManager) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	db, rm, err := openStore(ctx, opts.databaseURL)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
		if err := rm.RunMigrations(ctx, db); err != nil {
			return fmt.Errorf("migrations error: %w", err)
		}
	}
	return fn(db, rm)
}

// Execute runs the CLI with args, writing to out and errOut.
func Execute(ctx context.Context, args []string, in io.Reader, out, errOut io.Writer) error {
	root := NewRootCommand()
	root.SetArgs(args)
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(errOut)
	return root.ExecuteContext(ctx)
}
