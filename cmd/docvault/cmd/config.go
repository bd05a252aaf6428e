package cmd

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/eshaffer321/docvault-go/pkg/docvault"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Config holds the CLI settings after flags, environment and file are merged
type Config struct {
	BaseURL        string        `mapstructure:"base-url"`
	CredentialFile string        `mapstructure:"credential-file"`
	CredentialKey  string        `mapstructure:"credential-key"`
	QueueDSN       string        `mapstructure:"queue-dsn"`
	Timeout        time.Duration `mapstructure:"timeout"`
	LogLevel       string        `mapstructure:"log-level"`
	SentryDSN      string        `mapstructure:"sentry-dsn"`
	Offline        bool          `mapstructure:"offline"`
}

// loadConfig merges, lowest first: defaults, config file, DOCVAULT_* env, flags
func loadConfig(cmd *cobra.Command) (*Config, error) {
	v := viper.New()

	if path, _ := cmd.Flags().GetString("config"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(".docvault")
		v.SetConfigType("yaml")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, errors.Wrap(err, "failed to read config file")
		}
	}

	v.SetEnvPrefix("DOCVAULT")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, errors.Wrap(err, "failed to bind flags")
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "failed to decode config")
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	dir := ".docvault"
	if home, err := os.UserHomeDir(); err == nil {
		dir = filepath.Join(home, ".docvault")
	}

	v.SetDefault("base-url", docvault.DefaultBaseURL)
	v.SetDefault("credential-file", filepath.Join(dir, "credentials.db"))
	v.SetDefault("queue-dsn", "file:"+filepath.Join(dir, "queue.db"))
	v.SetDefault("timeout", docvault.DefaultTimeout)
	v.SetDefault("log-level", "warn")
}

// clientOptions turns the settings into facade options
func (c *Config) clientOptions() (*docvault.ClientOptions, error) {
	var key []byte
	if c.CredentialKey != "" {
		decoded, err := hex.DecodeString(c.CredentialKey)
		if err != nil {
			return nil, errors.Wrap(err, "credential key is not hex")
		}
		key = decoded
	}

	if err := os.MkdirAll(filepath.Dir(c.CredentialFile), 0o700); err != nil {
		return nil, errors.Wrap(err, "failed to create credential directory")
	}
	if path := strings.TrimPrefix(c.QueueDSN, "file:"); path != c.QueueDSN {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, errors.Wrap(err, "failed to create queue directory")
		}
	}

	opts := &docvault.ClientOptions{
		BaseURL:        c.BaseURL,
		Timeout:        c.Timeout,
		SentryDSN:      c.SentryDSN,
		CredentialFile: c.CredentialFile,
		CredentialKey:  key,
		QueueDSN:       c.QueueDSN,
	}
	if c.Offline {
		opts.Connectivity = docvault.NewManualConnectivity(false)
	}
	return opts, nil
}
