package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/dmitrijs2005/cutout/internal/client/config"
	"github.com/spf13/cobra"
)

type commandContext struct {
	in  io.Reader
	out io.Writer

	configFlag string
	serverFlag string
	dbFlag     string

	app *App
}

// ensureApp loads configuration and builds the App once per process.
func (c *commandContext) ensureApp(ctx context.Context) (*App, error) {
	if c.app != nil {
		return c.app, nil
	}

	var args []string
	if path := strings.TrimSpace(c.configFlag); path != "" {
		args = []string{"--config", path}
	}
	cfg, err := config.LoadConfig(args)
	if err != nil {
		return nil, err
	}
	if c.serverFlag != "" {
		cfg.ServerURL = c.serverFlag
	}
	if c.dbFlag != "" {
		cfg.DatabasePath = c.dbFlag
	}

	app, err := NewApp(ctx, cfg, c.in, c.out)
	if err != nil {
		return nil, err
	}
	c.app = app
	return app, nil
}

func (c *commandContext) close() {
	if c.app != nil {
		_ = c.app.Close()
		c.app = nil
	}
}

// withApp adapts an App method into a cobra RunE.
func (c *commandContext) withApp(fn func(ctx context.Context, a *App, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := c.ensureApp(cmd.Context())
		if err != nil {
			return err
		}
		return fn(cmd.Context(), a, args)
	}
}

// Execute runs the CLI with args (without the program name).
func Execute(ctx context.Context, args []string, in io.Reader, out io.Writer) error {
	c := &commandContext{in: in, out: out}
	defer c.close()

	root := newRootCommand(c)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

func newRootCommand(c *commandContext) *cobra.Command {
	root := &cobra.Command{
		Use:           "cutout",
		Short:         "Remove image backgrounds with a cutout server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	root.SetIn(c.in)
	root.SetOut(c.out)

	root.PersistentFlags().StringVarP(&c.configFlag, "config", "c", "", "Configuration file path")
	root.PersistentFlags().StringVar(&c.serverFlag, "server", "", "Server base URL")
	root.PersistentFlags().StringVar(&c.dbFlag, "db", "", "Local database path")

	root.AddCommand(
		&cobra.Command{
			Use:   "register",
			Short: "Create an account",
			Args:  cobra.NoArgs,
			RunE: c.withApp(func(ctx context.Context, a *App, _ []string) error {
				return a.Register(ctx)
			}),
		},
		&cobra.Command{
			Use:   "login",
			Short: "Log in and remember the account's API key",
			Args:  cobra.NoArgs,
			RunE: c.withApp(func(ctx context.Context, a *App, _ []string) error {
				return a.Login(ctx)
			}),
		},
		&cobra.Command{
			Use:   "logout",
			Short: "Forget the stored account",
			Args:  cobra.NoArgs,
			RunE: c.withApp(func(ctx context.Context, a *App, _ []string) error {
				return a.Logout(ctx)
			}),
		},
		&cobra.Command{
			Use:   "me",
			Short: "Show the stored account and API key",
			Args:  cobra.NoArgs,
			RunE: c.withApp(func(ctx context.Context, a *App, _ []string) error {
				return a.Me(ctx)
			}),
		},
		newRemoveCommand(c),
		&cobra.Command{
			Use:   "shell",
			Short: "Start an interactive shell",
			Args:  cobra.NoArgs,
			RunE: c.withApp(func(ctx context.Context, a *App, _ []string) error {
				fmt.Fprintln(a.out, "cutout shell (type 'help' for commands)")
				runREPL(ctx, a, a.status, a.reader, a.out)
				return nil
			}),
		},
	)

	return root
}

func newRemoveCommand(c *commandContext) *cobra.Command {
	var outDir, apiKey string

	cmd := &cobra.Command{
		Use:   "remove <files...>",
		Short: "Remove the background of one or more images",
		Args:  cobra.MinimumNArgs(1),
		RunE: c.withApp(func(ctx context.Context, a *App, args []string) error {
			return a.Remove(ctx, args, outDir, apiKey)
		}),
	}
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "Output directory (default: next to each input)")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "API key to use instead of the stored one")
	return cmd
}
