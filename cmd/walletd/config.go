package main

import (
	"os"
	"path/filepath"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	walletcore "github.com/erc4361/walletcore"
	"github.com/erc4361/walletcore/pkg/log"
)

type Mode string

const (
	ModeProduction Mode = "production"
	ModeTest       Mode = "test"
)

const (
	configDirPathEnv     = "WALLETD_CONFIG_DIR_PATH"
	defaultConfigDirPath = "."
)

// DaemonConfig holds the non-database settings of the wallet daemon.
type DaemonConfig struct {
	ChainID          uint64 `env:"WALLETD_CHAIN_ID" env-default:"1"`
	KeystoreDir      string `env:"WALLETD_KEYSTORE_DIR" env-default:""`
	KeystorePassword string `env:"WALLETD_KEYSTORE_PASSWORD" env-default:""`
	PrivateKey       string `env:"WALLETD_PRIVATE_KEY" env-default:""`
	ListenAddr       string `env:"WALLETD_LISTEN_ADDR" env-default:":8000"`
	MetricsAddr      string `env:"WALLETD_METRICS_ADDR" env-default:":4242"`
	Domain           string `env:"WALLETD_DOMAIN" env-default:"localhost"`
}

// Config represents the overall daemon configuration
type Config struct {
	mode    Mode
	daemon  DaemonConfig
	chains  map[uint64]walletcore.ChainConfig
	dbConf  walletcore.DatabaseConfig
	chainID uint64
}

// LoadConfig builds configuration from environment variables
func LoadConfig(logger log.Logger) (*Config, error) {
	logger = logger.WithName("config")

	configDirPath := os.Getenv(configDirPathEnv)
	if configDirPath == "" {
		configDirPath = defaultConfigDirPath
	}

	// Load .env files
	configDotEnvPath := filepath.Join(configDirPath, ".env")
	logger.Info("loading .env file", "path", configDotEnvPath)
	if err := godotenv.Load(configDotEnvPath); err != nil {
		logger.Warn(".env file not found")
	}

	mode := Mode(os.Getenv("WALLETD_MODE"))
	if mode == "" {
		mode = ModeProduction
	} else if mode != ModeProduction && mode != ModeTest {
		logger.Fatal("invalid WALLETD_MODE value", "value", mode)
	}
	logger.Info("set mode", "value", mode)

	var daemon DaemonConfig
	if err := cleanenv.ReadEnv(&daemon); err != nil {
		logger.Error("failed to read env", "err", err)
		return nil, err
	}

	// Get database URL from environment variables
	var dbConf walletcore.DatabaseConfig
	dbURL := os.Getenv("WALLETCORE_DATABASE_URL")

	// If DATABASE_URL is not empty, parse the connection string
	// Otherwise, read the envs in usual way
	if dbURL != "" {
		var err error
		dbConf, err = walletcore.ParseConnectionString(dbURL)
		if err != nil {
			logger.Error("failed to parse connection string", "err", err)
			return nil, err
		}
	} else {
		if err := cleanenv.ReadEnv(&dbConf); err != nil {
			logger.Error("failed to read env", "err", err)
			return nil, err
		}
	}

	chains, err := walletcore.LoadChains(configDirPath)
	if err != nil {
		logger.Fatal("failed to load chains", "error", err)
	}
	if _, ok := chains[daemon.ChainID]; !ok {
		logger.Fatal("configured chain is not enabled", "chainId", daemon.ChainID)
	}

	config := Config{
		mode:    mode,
		daemon:  daemon,
		chains:  chains,
		dbConf:  dbConf,
		chainID: daemon.ChainID,
	}

	return &config, nil
}
