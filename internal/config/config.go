package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// DefaultContractAddress is the deployed chat contract.
const DefaultContractAddress = "0xe406f7A0a5A7821712B0173fe9E220d95ba6e7BF"

// Config holds client configuration values.
type Config struct {
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
	Ledger  LedgerConfig  `mapstructure:"ledger" yaml:"ledger"`
	Content ContentConfig `mapstructure:"content" yaml:"content"`
	Wallet  WalletConfig  `mapstructure:"wallet" yaml:"wallet"`
	API     APIConfig     `mapstructure:"api" yaml:"api"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

type LedgerConfig struct {
	// RPCURL is the ethereum JSON-RPC endpoint; empty means no provider.
	RPCURL          string        `mapstructure:"rpc_url" yaml:"rpc_url"`
	ContractAddress string        `mapstructure:"contract_address" yaml:"contract_address"`
	ChainID         int64         `mapstructure:"chain_id" yaml:"chain_id"`
	FinalityTimeout time.Duration `mapstructure:"finality_timeout" yaml:"finality_timeout"`
}

type ContentConfig struct {
	Protocol      string        `mapstructure:"protocol" yaml:"protocol"`
	Host          string        `mapstructure:"host" yaml:"host"`
	Port          int           `mapstructure:"port" yaml:"port"`
	ProjectID     string        `mapstructure:"project_id" yaml:"project_id"`
	ProjectSecret string        `mapstructure:"project_secret" yaml:"project_secret"`
	Pin           bool          `mapstructure:"pin" yaml:"pin"`
	Timeout       time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

type WalletConfig struct {
	KeystoreDir string `mapstructure:"keystore_dir" yaml:"keystore_dir"`
	GrantsDB    string `mapstructure:"grants_db" yaml:"grants_db"`
	// Account and Passphrase answer prompts non-interactively.
	Account     string `mapstructure:"account" yaml:"account"`
	Passphrase  string `mapstructure:"passphrase" yaml:"passphrase"`
	AutoApprove bool   `mapstructure:"auto_approve" yaml:"auto_approve"`
	LightScrypt bool   `mapstructure:"light_scrypt" yaml:"light_scrypt"`
}

type APIConfig struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	JWTSecret         string        `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer         string        `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	JWTAudience       string        `mapstructure:"jwt_audience" yaml:"jwt_audience"`
	TokenTTL          time.Duration `mapstructure:"token_ttl" yaml:"token_ttl"`
	// RefreshInterval drives background refreshes in serve mode; 0 disables them.
	RefreshInterval time.Duration `mapstructure:"refresh_interval" yaml:"refresh_interval"`
	// SendsPerMinute caps POST /api/messages; 0 means unlimited.
	SendsPerMinute int `mapstructure:"sends_per_minute" yaml:"sends_per_minute"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Ledger: LedgerConfig{
			ContractAddress: DefaultContractAddress,
		},
		Content: ContentConfig{
			Protocol: "https",
			Host:     "ipfs.infura.io",
			Port:     5001,
			Pin:      true,
			Timeout:  30 * time.Second,
		},
		Wallet: WalletConfig{
			KeystoreDir: "keystore",
			GrantsDB:    "ledgerchat.db",
		},
		API: APIConfig{
			Addr:              "127.0.0.1:8080",
			ReadHeaderTimeout: 5 * time.Second,
			ShutdownTimeout:   5 * time.Second,
			JWTIssuer:         "ledgerchat",
			JWTAudience:       "ledgerchat-api",
			TokenTTL:          24 * time.Hour,
		},
	}
}

// Validate reports values that would make the client unusable.
func (c Config) Validate() error {
	var errs []error

	if !common.IsHexAddress(c.Ledger.ContractAddress) {
		errs = append(errs, fmt.Errorf("ledger.contract_address %q is not a hex address", c.Ledger.ContractAddress))
	}
	if c.Ledger.FinalityTimeout < 0 {
		errs = append(errs, errors.New("ledger.finality_timeout must not be negative"))
	}
	switch strings.ToLower(c.Content.Protocol) {
	case "http", "https":
	default:
		errs = append(errs, fmt.Errorf("content.protocol %q must be http or https", c.Content.Protocol))
	}
	if c.Content.Host == "" {
		errs = append(errs, errors.New("content.host is required"))
	}
	if c.Content.Port <= 0 || c.Content.Port > 65535 {
		errs = append(errs, fmt.Errorf("content.port %d out of range", c.Content.Port))
	}
	if c.Content.Timeout < 0 {
		errs = append(errs, errors.New("content.timeout must not be negative"))
	}
	if c.Wallet.KeystoreDir == "" {
		errs = append(errs, errors.New("wallet.keystore_dir is required"))
	}
	if c.Wallet.GrantsDB == "" {
		errs = append(errs, errors.New("wallet.grants_db is required"))
	}
	if c.API.RefreshInterval < 0 {
		errs = append(errs, errors.New("api.refresh_interval must not be negative"))
	}
	if c.API.SendsPerMinute < 0 {
		errs = append(errs, errors.New("api.sends_per_minute must not be negative"))
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "console", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q must be console or json", c.Log.Format))
	}

	return errors.Join(errs...)
}
