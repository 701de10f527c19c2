package sdk

import (
	"os"
	"time"

	env "github.com/Netflix/go-env"
	"go.dedis.ch/duet/core/ordering/devnet"
	"golang.org/x/xerrors"
)

// Config is the configuration of a session. It is populated from the
// environment variables.
type Config struct {
	// DB is the path to the database where the blocks are stored. The blocks
	// are kept in memory when it is empty.
	DB string `env:"DUET_DB"`

	// GatherTimeout is the amount of time the ledger waits for more
	// transactions before producing a block.
	GatherTimeout time.Duration `env:"DUET_GATHER_TIMEOUT"`
}

// loadConfig returns the configuration read from the process environment,
// overridden by the variables of the bundle.
func loadConfig(bundle map[string]string) (Config, error) {
	es, err := env.EnvironToEnvSet(os.Environ())
	if err != nil {
		return Config{}, xerrors.Errorf("failed to read environment: %v", err)
	}

	for key, value := range bundle {
		es[key] = value
	}

	cfg := Config{
		GatherTimeout: devnet.DefaultGatherTimeout,
	}

	err = env.Unmarshal(es, &cfg)
	if err != nil {
		return Config{}, xerrors.Errorf("failed to parse environment: %v", err)
	}

	return cfg, nil
}
