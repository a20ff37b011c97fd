package params

import (
	"math/big"
	"os"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
)

type API struct {
	Listen      string
	CORSOrigins []string
}

type Node struct {
	DBPath  string
	LogFile string
	// ChainID scopes permit signatures so they cannot be replayed against
	// another deployment.
	ChainID *big.Int
	// Admin may withdraw treasury surplus and manage plugins. The deployer
	// hands this off once via TransferAdmin.
	Admin common.Address
	// Vault is the address escrowed funds are held under. No key exists
	// for it; only the settlement engine moves funds out.
	Vault common.Address
}

type Policy struct {
	// FeeBps is the flat fee charged on the payout leg of every fill,
	// in basis points. 0 disables the fee plugin.
	FeeBps int64
	// Whitelist is the set of tradable tokens. Empty disables the
	// whitelist plugin (all tokens tradable).
	Whitelist []common.Address
}

type Config struct {
	API    API
	Node   Node
	Policy Policy
}

func Default() Config {
	return Config{
		API: API{
			Listen:      ":8080",
			CORSOrigins: []string{"http://localhost:3000"},
		},
		Node: Node{
			DBPath:  "data/starswap.db",
			LogFile: "data/node.log",
			ChainID: big.NewInt(1337),
			Vault:   common.HexToAddress("0x0000000000000000000000000000000000005AFE"),
		},
		Policy: Policy{
			FeeBps: 0,
		},
	}
}

// LoadFromEnv loads configuration from .env file (if exists) and environment variables.
// Priority: ENV > .env file > defaults
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	if listen := os.Getenv("API_LISTEN"); listen != "" {
		cfg.API.Listen = listen
	}
	if origins := os.Getenv("API_CORS_ORIGINS"); origins != "" {
		cfg.API.CORSOrigins = strings.Split(origins, ",")
	}
	if dbPath := os.Getenv("DB_PATH"); dbPath != "" {
		cfg.Node.DBPath = dbPath
	}
	if logFile := os.Getenv("LOG_FILE"); logFile != "" {
		cfg.Node.LogFile = logFile
	}
	if chainID := os.Getenv("CHAIN_ID"); chainID != "" {
		if id, err := strconv.ParseInt(chainID, 10, 64); err == nil {
			cfg.Node.ChainID = big.NewInt(id)
		}
	}
	if admin := os.Getenv("ADMIN_ADDRESS"); common.IsHexAddress(admin) {
		cfg.Node.Admin = common.HexToAddress(admin)
	}
	if vault := os.Getenv("VAULT_ADDRESS"); common.IsHexAddress(vault) {
		cfg.Node.Vault = common.HexToAddress(vault)
	}
	if feeBps := os.Getenv("FEE_BPS"); feeBps != "" {
		if bps, err := strconv.ParseInt(feeBps, 10, 64); err == nil && bps >= 0 {
			cfg.Policy.FeeBps = bps
		}
	}
	if wl := os.Getenv("TOKEN_WHITELIST"); wl != "" {
		// Example: "0xAA..,0xBB.."
		for _, s := range strings.Split(wl, ",") {
			if common.IsHexAddress(s) {
				cfg.Policy.Whitelist = append(cfg.Policy.Whitelist, common.HexToAddress(s))
			}
		}
	}

	return cfg
}
