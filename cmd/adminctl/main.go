package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/text/language"

	"campus-admin/config"
	"campus-admin/internal/credential"
	"campus-admin/internal/lifecycle"
	"campus-admin/internal/logging"
	"campus-admin/internal/screen"
	"campus-admin/internal/transport"
)

const defaultConfigPath = "./config/config.yaml"

// app carries the state shared by every subcommand.
type app struct {
	configPath string
	baseURL    string
	token      string
	college    string
	locale     string
	timeout    time.Duration
	verbose    bool

	out    io.Writer
	cfg    *config.Config
	logger *zap.Logger
}

func main() {
	_ = config.LoadEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{out: os.Stdout}
	root := a.rootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", describe(err))
		if a.verbose {
			fmt.Fprintln(os.Stderr, "Detail:", err)
		}
		os.Exit(1)
	}
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "adminctl",
		Short: "Manage universities, colleges, departments and programs",
		Long: `adminctl talks to a campus-admin backend over its REST API.

Reads are public. Writes need a bearer token from --token, the client.token
config key or CAMPUS_ADMIN_TOKEN; "adminctl token" mints one when the JWT
secret is configured locally.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	f := root.PersistentFlags()
	f.StringVar(&a.configPath, "config", "", "config file (default $CONFIG_PATH or "+defaultConfigPath+")")
	f.StringVar(&a.baseURL, "base-url", "", "backend base URL, overrides client.base_url")
	f.StringVar(&a.token, "token", "", "bearer token, overrides client.token")
	f.StringVar(&a.college, "college", "", "restrict the screen to one college id")
	f.StringVar(&a.locale, "locale", "en", "collation locale for sorting")
	f.DurationVar(&a.timeout, "timeout", 30*time.Second, "overall command timeout")
	f.BoolVarP(&a.verbose, "verbose", "v", false, "debug logging and full error detail")

	root.AddCommand(
		a.listCmd(),
		a.addCmd(),
		a.updateCmd(),
		a.deleteCmd(),
		a.tokenCmd(),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	a.out = cmd.OutOrStdout()

	path := a.configPath
	explicit := path != ""
	if !explicit {
		path = os.Getenv("CONFIG_PATH")
		explicit = path != ""
	}
	if path == "" {
		path = defaultConfigPath
	}
	cfg, err := config.Load(path)
	switch {
	case err == nil:
	case !explicit && errors.Is(err, os.ErrNotExist):
		cfg = config.Default()
	default:
		return fmt.Errorf("load config: %w", err)
	}
	if a.baseURL != "" {
		cfg.Client.BaseURL = a.baseURL
	}
	if a.token != "" {
		cfg.Client.Token = a.token
	}
	a.cfg = cfg

	logCfg := cfg.Log
	if a.verbose {
		logCfg.Level = "debug"
	} else if logCfg.Level == "info" {
		logCfg.Level = "warn"
	}
	if a.logger, err = logging.New(logCfg); err != nil {
		return err
	}
	return nil
}

// newScreen builds a screen over the HTTP transport for one command.
func (a *app) newScreen(name string) (*screen.Screen, error) {
	creds := credential.Expiring{Inner: credential.Static(a.cfg.Client.Token), Leeway: 5 * time.Second}
	tr, err := transport.NewHTTP(a.cfg.Client, creds, a.logger)
	if err != nil {
		return nil, err
	}
	tag, err := language.Parse(a.locale)
	if err != nil {
		return nil, fmt.Errorf("invalid locale %q: %w", a.locale, err)
	}

	opts := []screen.Option{
		screen.WithLogger(a.logger),
		screen.WithLocale(tag),
	}
	if a.college != "" {
		opts = append(opts, screen.WithCollegeScope(a.college))
	}
	if a.cfg.Client.LastSettledWins {
		opts = append(opts, screen.WithPolicy(lifecycle.LastSettledWins))
	}
	return screen.New(name, tr, creds, opts...), nil
}

func (a *app) context(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), a.timeout)
}

// describe picks the message shown for a failed command.
func describe(err error) string {
	var um interface{ UserMessage() string }
	if errors.As(err, &um) && um.UserMessage() != "" {
		return um.UserMessage()
	}
	if errors.Is(err, lifecycle.ErrTokenMissing) || errors.Is(err, lifecycle.ErrSuperseded) {
		return lifecycle.UserMessage(err)
	}
	return err.Error()
}
