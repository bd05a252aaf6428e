package cmd

import (
	"context"
	"os"

	"github.com/eshaffer321/docvault-go/internal/logging"
	"github.com/eshaffer321/docvault-go/pkg/docvault"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "docvault",
	Short: "Sign in and upload documents to the vault",
	Long: `A command line client for the document vault.

Sessions are kept in a local credential file between runs. Uploads made
while offline are queued on disk until "docvault sync" sends them.
Settings are read from $HOME/.docvault.yaml and DOCVAULT_* variables.`,
	SilenceUsage: true,
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "config file (default $HOME/.docvault.yaml)")
	flags.String("base-url", docvault.DefaultBaseURL, "backend base URL")
	flags.String("credential-file", "", "session file (default $HOME/.docvault/credentials.db)")
	flags.String("credential-key", "", "hex encoded 32 byte key sealing the session file")
	flags.String("queue-dsn", "", "sqlite DSN of the upload queue (default $HOME/.docvault/queue.db)")
	flags.Duration("timeout", docvault.DefaultTimeout, "HTTP timeout")
	flags.String("log-level", "warn", "log level: debug, info, warn or error")
	flags.String("sentry-dsn", "", "report failures to Sentry")
	flags.Bool("offline", false, "treat the network as unavailable")
}

// openClient loads the configuration and builds a client holding any stored
// session. Callers must close it with closeClient.
func openClient(cmd *cobra.Command) (*docvault.Client, *logging.ZapLogger, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}

	logger, err := logging.New(cfg.LogLevel, false)
	if err != nil {
		return nil, nil, err
	}

	opts, err := cfg.clientOptions()
	if err != nil {
		return nil, nil, err
	}
	opts.Logger = logger

	client, err := docvault.NewClient(opts)
	if err != nil {
		return nil, nil, err
	}

	if err := client.Auth.Restore(commandContext(cmd)); err != nil && !docvault.IsAuthError(err) {
		logger.Warn("Could not resume session", "error", err)
	}
	return client, logger, nil
}

func closeClient(client *docvault.Client, logger *logging.ZapLogger) {
	_ = client.Close()
	_ = logger.Sync()
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
