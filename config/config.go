package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Session     SessionConfig     `mapstructure:"session"`
	Chain       ChainConfig       `mapstructure:"chain"`
	Attestation AttestationConfig `mapstructure:"attestation"`
	Checkout    CheckoutConfig    `mapstructure:"checkout"`
	Loyalty     LoyaltyConfig     `mapstructure:"loyalty"`
	Log         LogConfig         `mapstructure:"log"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release, test
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// SessionConfig signs the bearer tokens that key carts and checkouts.
type SessionConfig struct {
	Secret string        `mapstructure:"secret"`
	Expiry time.Duration `mapstructure:"expiry"`
	Issuer string        `mapstructure:"issuer"`
}

// ChainConfig points at the EVM network holding the oracle and the purchase contract.
type ChainConfig struct {
	RPCURL                  string `mapstructure:"rpc_url"`
	ChainID                 uint64 `mapstructure:"chain_id"`
	PriceFeedAddress        string `mapstructure:"price_feed_address"`
	PurchaseContractAddress string `mapstructure:"purchase_contract_address"`
	MerchantAddress         string `mapstructure:"merchant_address"`
	WalletPrivateKey        string `mapstructure:"wallet_private_key"` // hex secp256k1, empty = no wallet
}

type AttestationConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	SchemaID  string        `mapstructure:"schema_id"`
	IndexMode string        `mapstructure:"index_mode"` // onchain, offchain
	Timeout   time.Duration `mapstructure:"timeout"`
}

type CheckoutConfig struct {
	PriceRefreshInterval time.Duration `mapstructure:"price_refresh_interval"`
	OracleTimeout        time.Duration `mapstructure:"oracle_timeout"`
	ReceiptTimeout       time.Duration `mapstructure:"receipt_timeout"`
	ReceiptPollInterval  time.Duration `mapstructure:"receipt_poll_interval"`
	StepTimeout          time.Duration `mapstructure:"step_timeout"` // each store, RPC and attestation call
	RunTimeout           time.Duration `mapstructure:"run_timeout"`  // guard acquired -> payment settled
	GuardTTL             time.Duration `mapstructure:"guard_ttl"`
}

// Validate checks that a checkout run always finishes with its guard still held.
// A run may spend RunTimeout reaching the payment and one more StepTimeout
// settling the cart, so the guard must live longer than both together.
func (c CheckoutConfig) Validate() error {
	if c.OracleTimeout <= 0 || c.ReceiptTimeout <= 0 || c.StepTimeout <= 0 {
		return fmt.Errorf("checkout: oracle_timeout, receipt_timeout and step_timeout must be positive")
	}
	if minRun := c.OracleTimeout + c.StepTimeout + c.ReceiptTimeout; c.RunTimeout < minRun {
		return fmt.Errorf("checkout: run_timeout %s is shorter than oracle_timeout + step_timeout + receipt_timeout (%s)", c.RunTimeout, minRun)
	}
	if c.GuardTTL <= c.RunTimeout+c.StepTimeout {
		return fmt.Errorf("checkout: guard_ttl %s must exceed run_timeout + step_timeout (%s)", c.GuardTTL, c.RunTimeout+c.StepTimeout)
	}
	return nil
}

type LoyaltyConfig struct {
	CoalitionName string           `mapstructure:"coalition_name"`
	PointsPerUSD  string           `mapstructure:"points_per_usd"` // decimal string
	Merchants     []MerchantConfig `mapstructure:"merchants"`
}

type MerchantConfig struct {
	ID      string `mapstructure:"id"`
	Name    string `mapstructure:"name"`
	Address string `mapstructure:"address"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: CLR_.
// Nested keys use underscore: CLR_CHAIN_RPC_URL, CLR_SESSION_SECRET, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "clarity_storefront")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("session.secret", "")
	v.SetDefault("session.expiry", "24h")
	v.SetDefault("session.issuer", "clarity-storefront")
	v.SetDefault("chain.rpc_url", "https://1rpc.io/sepolia")
	v.SetDefault("chain.chain_id", 11155111)
	v.SetDefault("chain.price_feed_address", "0x694AA1769357215DE4FAC081bf1f309aDC325306")
	v.SetDefault("chain.purchase_contract_address", "")
	v.SetDefault("chain.merchant_address", "")
	v.SetDefault("chain.wallet_private_key", "")
	v.SetDefault("attestation.base_url", "https://testnet-rpc.sign.global/api")
	v.SetDefault("attestation.schema_id", "onchain_evm_11155111_0xb994")
	v.SetDefault("attestation.index_mode", "onchain")
	v.SetDefault("attestation.timeout", "15s")
	v.SetDefault("checkout.price_refresh_interval", "60s")
	v.SetDefault("checkout.oracle_timeout", "10s")
	v.SetDefault("checkout.receipt_timeout", "3m")
	v.SetDefault("checkout.receipt_poll_interval", "2s")
	v.SetDefault("checkout.step_timeout", "20s")
	v.SetDefault("checkout.run_timeout", "4m")
	v.SetDefault("checkout.guard_ttl", "5m")
	v.SetDefault("loyalty.coalition_name", "Clarity")
	v.SetDefault("loyalty.points_per_usd", "1")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// CLR_CHAIN_RPC_URL -> chain.rpc_url
	v.SetEnvPrefix("CLR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}
