package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"runtime"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type (
	Config struct {
		App       `json:"app"       toml:"app"`
		HTTP      `json:"http"      toml:"http"`
		DB        `json:"db"        toml:"db"`
		Log       `json:"logger"    toml:"logger"`
		Authority `json:"authority" toml:"authority"`
		Workers   `json:"workers"   toml:"workers"`
		Contract  `json:"contract"  toml:"contract"`
	}

	App struct {
		Name        string `json:"name"        toml:"name"        env:"APP_NAME"  env-default:"definition-staking"`
		Environment string `json:"environment" toml:"environment" env:"ENV_NAME"  env-default:"dev"`
		Debug       bool   `json:"debug"       toml:"debug"       env:"DEBUG"     env-default:"false"`
	}

	HTTP struct {
		Port           string   `json:"port"            toml:"port"            env:"HTTP_PORT"       env-default:"8080"`
		AllowedOrigins []string `json:"allowed_origins" toml:"allowed_origins" env:"ALLOWED_ORIGINS" env-default:"*"`
	}

	DB struct {
		DatabaseURL       string `json:"database_url"        toml:"database_url"        env:"DATABASE_URL"`
		MigrationsPath    string `json:"migrations_path"     toml:"migrations_path"     env:"MIGRATIONS_PATH"      env-default:"./migrations"`
		PoolMax           int32  `json:"pool_max"            toml:"pool_max"            env:"PG_POOL_MAX"          env-default:"10"`
		ConnectTimeout    int    `json:"connect_timeout"     toml:"connect_timeout"     env:"PG_POOL_CONN_TIMEOUT" env-default:"5"`
		HealthCheckPeriod int    `json:"health_check_period" toml:"health_check_period" env:"PG_POOL_HEALTHCHECK"  env-default:"1"`
	}

	Log struct {
		Level slog.Level `json:"level" toml:"level" env:"LOG_LEVEL"`
	}

	// Authority configures the identity/wallet provider. An empty APIURL selects
	// the in-memory provider, which derives embedded wallets from WalletMnemonic.
	Authority struct {
		APIURL         string `json:"api_url"         toml:"api_url"         env:"WALLET_PROVIDER_URL"`
		AppID          string `json:"app_id"          toml:"app_id"          env:"WALLET_PROVIDER_APP_ID"`
		AppSecret      string `json:"app_secret"      toml:"app_secret"      env:"WALLET_PROVIDER_APP_SECRET"`
		TimeoutSeconds int    `json:"timeout_seconds" toml:"timeout_seconds" env:"WALLET_PROVIDER_TIMEOUT" env-default:"10"`
		WalletMnemonic string `json:"wallet_mnemonic" toml:"wallet_mnemonic" env:"WALLET_MNEMONIC"`
	}

	Workers struct {
		SyncIntervalMinutes int `json:"sync_interval_minutes" toml:"sync_interval_minutes" env:"WALLET_SYNC_INTERVAL" env-default:"5"`
		MaxConcurrentSyncs  int `json:"max_concurrent_syncs"  toml:"max_concurrent_syncs"  env:"WALLET_SYNC_CONCURRENCY" env-default:"8"`
	}

	Contract struct {
		Address       string `json:"address"        toml:"address"        env:"CONTRACT_ADDRESS"         env-default:"0x1234567890123456789012345678901234567890"`
		DeployDelayMS int    `json:"deploy_delay_ms" toml:"deploy_delay_ms" env:"CONTRACT_DEPLOY_DELAY_MS" env-default:"2000"`
	}
)

func LoadConfig() (*Config, error) {
	cfg := &Config{}

	// .env is optional; real environment variables win over it.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("dotenv error: %w", err)
	}

	_, b, _, _ := runtime.Caller(0)
	basePath := filepath.Dir(b)

	configTomlPath := filepath.Join(basePath, "config.toml")
	err := cleanenv.ReadConfig(configTomlPath, cfg)
	if err != nil {
		configJsonPath := filepath.Join(basePath, "config.json")
		err = cleanenv.ReadConfig(configJsonPath, cfg)
		if err != nil {
			return nil, fmt.Errorf("config error: %w", err)
		}
	}

	err = cleanenv.ReadEnv(cfg)
	if err != nil {
		return nil, fmt.Errorf("env read error: %w", err)
	}

	return cfg, nil
}
