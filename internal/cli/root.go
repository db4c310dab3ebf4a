package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"faturas/internal/backend"
	"faturas/internal/config"
	"faturas/internal/log"
	"faturas/internal/records"
)

var (
	version = "dev"
	commit  = "none"
)

type rootOptions struct {
	envFile  string
	backend  string
	dataFile string
	docsDir  string
	jsonOut  bool

	logOut io.Writer
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "faturactl",
		Short:         "Browse electricity invoices from a terminal",
		Long:          "faturactl loads invoice records from the configured backend, prints the energy and monetary series, and downloads invoice PDFs.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if opts.envFile != "" {
				LoadEnvFile(opts.envFile)
			} else {
				LoadEnvFile()
			}
			opts.logOut = cmd.ErrOrStderr()
		},
	}

	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", "", "Load environment from this file instead of .env")
	cmd.PersistentFlags().StringVar(&opts.backend, "backend", "", "Override DATA_BACKEND (api, memory, sqlite, sheets)")
	cmd.PersistentFlags().StringVar(&opts.dataFile, "data-file", "", "Override DATA_FILE for the memory backend")
	cmd.PersistentFlags().StringVar(&opts.docsDir, "documents-dir", "", "Override DOCUMENTS_DIR for the memory backend")
	cmd.PersistentFlags().BoolVar(&opts.jsonOut, "json", false, "Print JSON instead of text")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newAccountsCmd(opts))
	cmd.AddCommand(newSeriesCmd(opts))
	cmd.AddCommand(newMonthsCmd(opts))
	cmd.AddCommand(newDownloadCmd(opts))
	cmd.AddCommand(newImportCmd(opts))
	return cmd
}

// NewRootCmdForTest returns the root command for testing.
func NewRootCmdForTest() *cobra.Command {
	return newRootCmd()
}

func Execute() error {
	return newRootCmd().Execute()
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show faturactl version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "faturactl %s (%s)\n", version, commit)
			return nil
		},
	}
}

// app is the loaded pipeline one command works against.
type app struct {
	cfg     *config.Config
	logger  *log.Logger
	backend *backend.BackendResult
	store   *records.Store
}

func (o *rootOptions) config() (*config.Config, error) {
	return LoadConfig(func(c *config.Config) {
		if o.backend != "" {
			c.DataBackend = o.backend
		}
		if o.dataFile != "" {
			c.DataFile = o.dataFile
		}
		if o.docsDir != "" {
			c.DocumentsDir = o.docsDir
		}
		// A terminal session has no use for download events.
		c.AMQPURL = ""
	})
}

func (o *rootOptions) logger() *log.Logger {
	return SetupLogger(log.ComponentApp, o.logOut)
}

// open builds the backend and loads the record store once.
func (o *rootOptions) open(ctx context.Context) (*app, error) {
	logger := o.logger()
	cfg, err := o.config()
	if err != nil {
		return nil, err
	}
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	result, err := backend.NewFactory(logger).CreateBackend(ctx, bcfg)
	if err != nil {
		return nil, err
	}

	store := records.NewStore(result.Backend.Records, logger)
	if _, err := store.Load(ctx); err != nil {
		_ = result.Close()
		return nil, fmt.Errorf("load records: %w", err)
	}
	return &app{cfg: cfg, logger: logger, backend: result, store: store}, nil
}

func (a *app) Close() error {
	return a.backend.Close()
}
