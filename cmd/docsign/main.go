// Command docsign drives the document link and signature request flows from a
// terminal against a running api server.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"docsign/config"
	"docsign/logging"
	"docsign/rpc"
	"docsign/ui"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(newApp(os.Stdout)).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "docsign:", err)
		os.Exit(1)
	}
}

// app carries what every subcommand needs once the root command has loaded
// configuration.
type app struct {
	configPath string
	out        io.Writer

	cfg       config.Config
	logger    *zap.Logger
	client    *rpc.Client
	navigator ui.Navigator
	clipboard ui.Clipboard
}

func newApp(out io.Writer) *app {
	return &app{
		out:       out,
		navigator: ui.BrowserNavigator{},
		clipboard: ui.SystemClipboard{},
	}
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Development)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logger
	a.client = rpc.NewClient(cfg.Client.BaseURL, rpc.Credentials{
		ClientID:     cfg.Client.ClientID,
		ClientSecret: cfg.Client.ClientSecret,
	}, rpc.WithTimeout(cfg.Client.Timeout))
	return nil
}

func (a *app) teardown(*cobra.Command, []string) {
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

func (a *app) notifier() ui.Notifier {
	return ui.NewWriterNotifier(a.out)
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:               "docsign",
		Short:             "Open journal documents and manage signature requests",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: a.teardown,
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", os.Getenv("DOCSIGN_CONFIG"), "path to a docsign.yaml config file")

	root.AddCommand(
		newJournalCmd(a),
		newRequestsCmd(a),
		newAdminCmd(a),
	)
	return root
}
