package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/timecapsule-api/internal/client"
	"github.com/noah-isme/timecapsule-api/pkg/config"
	"github.com/noah-isme/timecapsule-api/pkg/logger"
)

// version is set at build time via -ldflags "-X main.version=x.y.z".
var version = "dev"

// exitErr carries a numeric exit code through the cobra error path.
type exitErr struct {
	code int
	msg  string
}

func (e *exitErr) Error() string { return e.msg }

func codeError(code int, format string, args ...any) error {
	return &exitErr{code: code, msg: fmt.Sprintf(format, args...)}
}

// app is shared by every subcommand. Config and logger are resolved lazily in PersistentPreRunE.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	apiURL  string
	token   string
	verbose bool

	newClient func() (*client.Client, error)
}

func (a *app) client() (*client.Client, error) {
	if a.newClient != nil {
		return a.newClient()
	}
	return client.New(client.Config{
		BaseURL: a.apiURL,
		Token:   a.token,
		Timeout: a.cfg.Client.Timeout,
	}, a.logger)
}

func main() {
	root := newRootCommand(&app{}, os.Stdin, os.Stdout)
	if err := root.Execute(); err != nil {
		var ee *exitErr
		if errors.As(err, &ee) {
			fmt.Fprintln(os.Stderr, "Error:", ee.msg)
			os.Exit(ee.code)
		}
		os.Exit(1)
	}
}

func newRootCommand(a *app, in io.Reader, out io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "capsulectl",
		Short:         "Operate and browse the Tech Time Capsule",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg == nil {
				cfg, err := config.Load()
				if err != nil {
					return codeError(3, "loading config: %s", err)
				}
				a.cfg = cfg
			}
			if a.logger == nil {
				l, err := logger.NewCLI(a.verbose)
				if err != nil {
					return codeError(3, "init logger: %s", err)
				}
				a.logger = l
			}
			if !cmd.Flags().Changed("api") && a.apiURL == "" {
				a.apiURL = a.cfg.Client.BaseURL
			}
			if !cmd.Flags().Changed("token") && a.token == "" {
				a.token = a.cfg.Client.Token
			}
			return nil
		},
	}
	root.SetIn(in)
	root.SetOut(out)

	pf := root.PersistentFlags()
	pf.StringVar(&a.apiURL, "api", "", "API base URL (defaults to CAPSULE_API_URL)")
	pf.StringVar(&a.token, "token", "", "Bearer token (defaults to CAPSULE_API_TOKEN)")
	pf.BoolVar(&a.verbose, "verbose", false, "Print debug logs to stderr")

	root.AddCommand(
		newMigrateCommand(a),
		newSeedCommand(a),
		newPopulateCommand(a),
		newDiscoverCommand(a),
		newTriviaCommand(a),
		newSubmitCommand(a),
		newLoginCommand(a, false),
		newLoginCommand(a, true),
		newExportCommand(a),
	)
	return root
}
