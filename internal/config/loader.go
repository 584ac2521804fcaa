package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	envPrefix            = "LEDGERCHAT"
	envConfigDefaultPath = "LEDGERCHAT_CONFIG_DEFAULT_PATH"
	defaultConfigName    = "config.yaml"
)

// Load builds configuration from defaults, optional config file, env vars, and returns the resolved path.
// Precedence: defaults < config file < env vars < caller overrides.
func Load(logger *zerolog.Logger, explicitPath string) (Config, string, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v, cfg)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	configPath := resolveConfigPath(explicitPath)
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
			if writeErr := writeDefaultConfig(configPath, cfg); writeErr != nil && logger != nil {
				logger.Warn().Err(writeErr).Str("path", configPath).Msg("failed to write default config")
			} else if logger != nil {
				logger.Info().Str("path", configPath).Msg("created default config")
			}
			// try reading again in case it was just written
			if readErr := v.ReadInConfig(); readErr != nil && logger != nil {
				logger.Warn().Err(readErr).Str("path", configPath).Msg("failed to read config after writing default")
			}
		} else {
			return cfg, configPath, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, configPath, fmt.Errorf("unmarshal config: %w", err)
	}

	return cfg, configPath, nil
}

// setDefaults registers every key so AutomaticEnv can override keys absent from the file.
func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)

	v.SetDefault("ledger.rpc_url", cfg.Ledger.RPCURL)
	v.SetDefault("ledger.contract_address", cfg.Ledger.ContractAddress)
	v.SetDefault("ledger.chain_id", cfg.Ledger.ChainID)
	v.SetDefault("ledger.finality_timeout", cfg.Ledger.FinalityTimeout)

	v.SetDefault("content.protocol", cfg.Content.Protocol)
	v.SetDefault("content.host", cfg.Content.Host)
	v.SetDefault("content.port", cfg.Content.Port)
	v.SetDefault("content.project_id", cfg.Content.ProjectID)
	v.SetDefault("content.project_secret", cfg.Content.ProjectSecret)
	v.SetDefault("content.pin", cfg.Content.Pin)
	v.SetDefault("content.timeout", cfg.Content.Timeout)

	v.SetDefault("wallet.keystore_dir", cfg.Wallet.KeystoreDir)
	v.SetDefault("wallet.grants_db", cfg.Wallet.GrantsDB)
	v.SetDefault("wallet.account", cfg.Wallet.Account)
	v.SetDefault("wallet.passphrase", cfg.Wallet.Passphrase)
	v.SetDefault("wallet.auto_approve", cfg.Wallet.AutoApprove)
	v.SetDefault("wallet.light_scrypt", cfg.Wallet.LightScrypt)

	v.SetDefault("api.addr", cfg.API.Addr)
	v.SetDefault("api.read_header_timeout", cfg.API.ReadHeaderTimeout)
	v.SetDefault("api.shutdown_timeout", cfg.API.ShutdownTimeout)
	v.SetDefault("api.jwt_secret", cfg.API.JWTSecret)
	v.SetDefault("api.jwt_issuer", cfg.API.JWTIssuer)
	v.SetDefault("api.jwt_audience", cfg.API.JWTAudience)
	v.SetDefault("api.token_ttl", cfg.API.TokenTTL)
	v.SetDefault("api.refresh_interval", cfg.API.RefreshInterval)
	v.SetDefault("api.sends_per_minute", cfg.API.SendsPerMinute)
}

func resolveConfigPath(explicitPath string) string {
	if explicitPath != "" {
		return explicitPath
	}

	if base := os.Getenv(envConfigDefaultPath); base != "" {
		if err := os.MkdirAll(base, 0o755); err == nil {
			return filepath.Join(base, defaultConfigName)
		}
	}

	cwd, err := os.Getwd()
	if err != nil {
		return defaultConfigName
	}
	return filepath.Join(cwd, defaultConfigName)
}

func writeDefaultConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
