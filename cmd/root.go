// Package cmd provides the command-line interface of doccode.
package cmd

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
	"go.uber.org/zap"

	"github.com/sarchlab/doccode/codes"
	"github.com/sarchlab/doccode/config"
	"github.com/sarchlab/doccode/logging"
	"github.com/sarchlab/doccode/recordstore"
)

// Version is set at build time with -ldflags.
var Version = "dev"

// NewRootCommand builds the command tree. Running it without a subcommand
// starts the web server.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use: "doccode",
		Short: "doccode generates sequential document codes from a " +
			"division, an area and a document type.",
		Long: `doccode generates sequential document codes such as ` +
			`XGM-XDM-XRO-001 and records every code it issues in a CSV or ` +
			`SQLite file. Without a subcommand it serves a local web form.`,
		SilenceUsage: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.String("file", "", "Record file (.csv, .sqlite3, .sqlite or .db)")
	flags.String("env-file", config.DefaultEnvFile, "Dotenv file with DOCCODE_* settings")
	flags.String("log-level", "", "Log level (debug, info, warn, error)")
	flags.Bool("dev-log", false, "Print human-readable logs")

	serveCmd := newServeCommand()
	rootCmd.AddCommand(
		serveCmd,
		newListCommand(),
		newNextCommand(),
		newCountersCommand(),
		newVersionCommand(),
	)

	rootCmd.Flags().AddFlagSet(serveCmd.Flags())
	rootCmd.RunE = serveCmd.RunE

	return rootCmd
}

// Execute runs the command line and exits with status 1 on failure.
func Execute() {
	err := NewRootCommand().Execute()
	if err != nil {
		atexit.Exit(1)
	}

	atexit.Exit(0)
}

// loadConfig resolves the configuration and applies the flags that were set
// explicitly.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	envFile, _ := cmd.Flags().GetString("env-file")

	cfg, err := config.Load(envFile)
	if err != nil {
		return config.Config{}, err
	}

	if cmd.Flags().Changed("file") {
		cfg.File, _ = cmd.Flags().GetString("file")
	}

	if cmd.Flags().Changed("log-level") {
		level, _ := cmd.Flags().GetString("log-level")
		cfg.LogLevel = strings.ToLower(strings.TrimSpace(level))
	}

	if cmd.Flags().Changed("dev-log") {
		cfg.LogDevelopment, _ = cmd.Flags().GetBool("dev-log")
	}

	if cmd.Flags().Changed("host") {
		cfg.Host, _ = cmd.Flags().GetString("host")
	}

	if cmd.Flags().Changed("port") {
		cfg.Port, _ = cmd.Flags().GetInt("port")
	}

	if cmd.Flags().Changed("no-browser") {
		noBrowser, _ := cmd.Flags().GetBool("no-browser")
		cfg.OpenBrowser = !noBrowser
	}

	if cmd.Flags().Changed("catalog") {
		cfg.CatalogFile, _ = cmd.Flags().GetString("catalog")
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}

	return cfg, nil
}

// env holds what every command needs: the configuration, a logger and an
// initialized allocator.
type env struct {
	cfg       config.Config
	logger    *zap.Logger
	store     recordstore.Store
	allocator *codes.Allocator

	closeOnce sync.Once
}

func setup(cmd *cobra.Command) (*env, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogDevelopment)
	if err != nil {
		return nil, err
	}

	store, err := recordstore.Open(cfg.File)
	if err != nil {
		logger.Error("Failed to open record file",
			zap.String("file", cfg.File), zap.Error(err))
		return nil, err
	}

	allocator := codes.NewAllocator(store).WithLogger(logger)

	err = allocator.Init()
	if err != nil {
		logger.Error("Failed to load records",
			zap.String("file", cfg.File), zap.Error(err))
		store.Close()

		return nil, err
	}

	e := &env{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		allocator: allocator,
	}

	atexit.Register(e.close)

	return e, nil
}

// close releases the store. It runs on return of the command and again from
// the exit handler, only the first call has an effect.
func (e *env) close() {
	e.closeOnce.Do(func() {
		if err := e.store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to close %s: %v\n", e.cfg.File, err)
		}

		_ = e.logger.Sync()
	})
}
