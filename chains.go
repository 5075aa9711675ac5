package walletcore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"gopkg.in/yaml.v3"
)

const (
	checkChainIdCallTimeout = 5 * time.Second
	chainsFileName          = "chains.yaml"
)

var chainNameRegex = regexp.MustCompile(`^[a-z][a-z_]+[a-z]$`)

// ChainsConfig is the root structure of the chains.yaml file.
type ChainsConfig struct {
	Chains []ChainConfig `yaml:"chains"`
}

// ChainConfig describes one network the wallet can connect to.
type ChainConfig struct {
	// Name is the chain identifier (e.g., "polygon_amoy", "base_sepolia")
	// Must match pattern: lowercase letters and underscores only
	Name string `yaml:"name"`
	// ID is the chain ID used for RPC validation
	ID uint64 `yaml:"id"`
	// Disabled determines if this chain should be offered
	Disabled bool `yaml:"disabled"`
	// RPC is populated from environment variable <NAME>_RPC
	RPC string
	// NativeSymbol is the display symbol of the native asset (default "ETH")
	NativeSymbol string `yaml:"native_symbol"`
	// Explorer is an optional block-explorer base URL
	Explorer string `yaml:"explorer"`
}

// LoadChains loads and validates chain configurations from
// <configDirPath>/chains.yaml. RPC URLs come from environment variables
// following the pattern <CHAIN_NAME_UPPERCASE>_RPC; each endpoint is checked
// to return the expected chain ID. Returns enabled chains indexed by chain
// ID.
func LoadChains(configDirPath string) (map[uint64]ChainConfig, error) {
	chainsPath := filepath.Join(configDirPath, chainsFileName)
	f, err := os.Open(chainsPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg ChainsConfig
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.verifyVariables(); err != nil {
		return nil, err
	}

	if err := cfg.verifyRPCs(); err != nil {
		return nil, err
	}

	return cfg.getEnabled(), nil
}

// verifyVariables validates names and applies defaults in place.
func (cfg *ChainsConfig) verifyVariables() error {
	for i, ch := range cfg.Chains {
		if ch.Disabled {
			continue
		}

		if !chainNameRegex.MatchString(ch.Name) {
			return fmt.Errorf("invalid chain name '%s', should match snake_case format", ch.Name)
		}
		if ch.ID == 0 {
			return fmt.Errorf("missing chain ID for chain '%s'", ch.Name)
		}
		if ch.NativeSymbol == "" {
			cfg.Chains[i].NativeSymbol = "ETH"
		}
	}
	return nil
}

// verifyRPCs reads each enabled chain's RPC URL from the environment and
// verifies the endpoint serves the configured chain ID.
func (cfg *ChainsConfig) verifyRPCs() error {
	for i, ch := range cfg.Chains {
		if ch.Disabled {
			continue
		}

		rpcURL := os.Getenv(fmt.Sprintf("%s_RPC", strings.ToUpper(ch.Name)))
		if rpcURL == "" {
			return fmt.Errorf("missing RPC for chain '%s'", ch.Name)
		}

		if err := checkChainId(rpcURL, ch.ID); err != nil {
			return fmt.Errorf("chain '%s' ChainID check failed: %w", ch.Name, err)
		}

		cfg.Chains[i].RPC = rpcURL
	}
	return nil
}

func (cfg *ChainsConfig) getEnabled() map[uint64]ChainConfig {
	enabled := make(map[uint64]ChainConfig)
	for _, ch := range cfg.Chains {
		if !ch.Disabled {
			enabled[ch.ID] = ch
		}
	}
	return enabled
}

// checkChainId connects to an RPC endpoint and verifies it returns the
// expected chain ID, so a misconfigured URL fails at startup instead of at
// first use.
func checkChainId(rpcURL string, expectedChainID uint64) error {
	ctx, cancel := context.WithTimeout(context.Background(), checkChainIdCallTimeout)
	defer cancel()

	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return fmt.Errorf("failed to connect to chain RPC: %w", err)
	}
	defer client.Close()

	chainID, err := client.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("failed to get chain ID from RPC: %w", err)
	}

	if chainID.Uint64() != expectedChainID {
		return fmt.Errorf("unexpected chain ID from RPC: got %d, want %d", chainID.Uint64(), expectedChainID)
	}

	return nil
}
