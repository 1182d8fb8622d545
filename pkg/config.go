package vault

import (
	"github.com/jinzhu/configor"
)

type Config struct {
	AgentVault struct {
		// key into the ChainIndex map below
		Network string `default:"preprod" required:"true" env:"network"`
		// confirmations before a withdrawal is treated as final
		ConfirmationsNeeded int `default:"1"`
		// lovelace sent by a test withdrawal when promoting testing -> active
		TestWithdrawLovelace uint64 `default:"2000000"`
	}

	// info for connecting to a chain indexer, per network
	ChainIndex map[string]struct {
		URL       string `default:"https://cardano-preprod.blockfrost.io/api/v0"`
		ProjectID string
		TimeoutS  int `default:"20"`
	}

	// pre-encoded cost-model language views per script version, hex.
	// Opaque to the engine; bound into the script-data hash.
	CostModels map[string]string

	Store struct {
		DBFile string `default:"agentvault.db"`
	}

	Signer struct {
		// path to an ed25519 signing key file (hex), for fee/test flows.
		// Leave empty when an external wallet signs.
		KeyFile string
	}

	WebAPI struct {
		AdminBind string `default:"localhost"`
		AdminPort string `default:"8100"`
		PubBind   string `default:"localhost"`
		PubPort   string `default:"8101"`
	}

	Loggers map[string]struct {
		Path  string
		Types []string
	}

	Callbacks map[string]CallbackConfig

	Emitters map[string]EmitterConfig
}

// CallbackConfig is one outbound HTTP callback destination.
type CallbackConfig struct {
	Path       string
	HMACSecret string
	Types      []string
}

// EmitterConfig is one ZMQ publisher binding.
type EmitterConfig struct {
	Bind  string
	Port  string
	Types []string
}

func LoadConfig(confPath string) Config {
	c := Config{}
	if confPath == "" {
		configor.Load(&c)
	} else {
		configor.Load(&c, confPath)
	}
	return c
}

// TestConfig returns a config suitable for unit tests (no files, preprod).
func TestConfig() Config {
	c := Config{}
	configor.Load(&c)
	c.AgentVault.Network = "preprod"
	c.Store.DBFile = ":memory:"
	return c
}
