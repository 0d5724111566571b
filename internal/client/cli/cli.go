package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/iudanet/gophauth/internal/client/auth"
	"github.com/iudanet/gophauth/internal/client/iocli"
)

// PasswordEnv overrides every other password source
const PasswordEnv = "GOPHAUTH_PASSWORD"

// Options are the global flags
type Options struct {
	ServerURL    string
	DBPath       string
	PasswordFile string
	Verbose      bool
}

// ServiceFactory builds the session service for the given options. The
// returned closer releases local storage.
type ServiceFactory func(ctx context.Context, opts Options) (auth.Service, func() error, error)

// BuildInfo is shown by --version
type BuildInfo struct {
	Version   string
	BuildDate string
	GitCommit string
}

// Cli holds what every command needs
type Cli struct {
	io          iocli.IO
	authService auth.Service
	factory     ServiceFactory
	closer      func() error
	opts        Options
}

// Run executes the command line args and releases local storage whatever
// the outcome
func Run(ctx context.Context, io iocli.IO, factory ServiceFactory, build BuildInfo, args []string) error {
	c := &Cli{io: io, factory: factory}

	root := c.rootCommand(build)
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if closeErr := c.close(); closeErr != nil && err == nil {
		err = fmt.Errorf("failed to close client: %w", closeErr)
	}
	return err
}

// rootCommand assembles the gophauth command tree
func (c *Cli) rootCommand(build BuildInfo) *cobra.Command {
	root := &cobra.Command{
		Use:           "gophauth",
		Short:         "Command-line client for the gophauth server",
		Version:       fmt.Sprintf("%s (built %s, commit %s)", build.Version, build.BuildDate, build.GitCommit),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.open(cmd.Context())
		},
	}

	root.SetOut(c.io)
	root.SetErr(c.io)

	flags := root.PersistentFlags()
	flags.StringVar(&c.opts.ServerURL, "server", "http://localhost:8080", "Server URL")
	flags.StringVar(&c.opts.DBPath, "db", "gophauth-client.db", "Path to local session database")
	flags.StringVar(&c.opts.PasswordFile, "password-file", "", "Read the password from this file")
	flags.BoolVarP(&c.opts.Verbose, "verbose", "v", false, "Log debug output to stderr")

	root.AddCommand(
		c.registerCommand(),
		c.loginCommand(),
		c.logoutCommand(),
		c.meCommand(),
		c.refreshCommand(),
		c.revokeCommand(),
		c.resetRequestCommand(),
		c.resetCommand(),
		c.statusCommand(),
		c.profileCommand(),
		c.usersCommand(),
	)

	return root
}

func (c *Cli) open(ctx context.Context) error {
	if c.authService != nil {
		return nil
	}

	svc, closer, err := c.factory(ctx, c.opts)
	if err != nil {
		return fmt.Errorf("failed to initialize client: %w", err)
	}

	c.authService = svc
	c.closer = closer
	return nil
}

func (c *Cli) close() error {
	if c.closer == nil {
		return nil
	}
	err := c.closer()
	c.closer = nil
	c.authService = nil
	return err
}

// readPassword picks the password source by priority:
// 1. GOPHAUTH_PASSWORD environment variable
// 2. --password-file
// 3. interactive prompt, with confirmation when confirm is set
func (c *Cli) readPassword(prompt string, confirm bool) (string, error) {
	if envPassword := os.Getenv(PasswordEnv); envPassword != "" {
		return envPassword, nil
	}

	if c.opts.PasswordFile != "" {
		content, err := os.ReadFile(c.opts.PasswordFile)
		if err != nil {
			return "", fmt.Errorf("failed to read password file: %w", err)
		}
		password := strings.TrimRight(string(content), "\r\n")
		if password == "" {
			return "", fmt.Errorf("password file is empty")
		}
		return password, nil
	}

	password, err := c.io.ReadPassword(prompt)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	if password == "" {
		return "", fmt.Errorf("password cannot be empty")
	}

	if confirm {
		again, err := c.io.ReadPassword("Confirm password: ")
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		if again != password {
			return "", fmt.Errorf("passwords do not match")
		}
	}

	return password, nil
}

// readValue returns flagValue or prompts for it
func (c *Cli) readValue(flagValue, prompt string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	value, err := c.io.ReadInput(prompt)
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	if value == "" {
		return "", fmt.Errorf("%s cannot be empty", strings.ToLower(strings.TrimSuffix(prompt, ": ")))
	}
	return value, nil
}
