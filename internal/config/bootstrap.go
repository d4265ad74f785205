package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// BootstrapLocal is the subset of settings worth reading directly from
// disk before a full Load, the same reason the teacher's
// LoadLocalConfig bypasses viper: the working directory, or the config
// path itself, may not be settled yet. Only a YAML file is supported
// here, mirroring LoadLocalConfig's direct gopkg.in/yaml.v3 read.
type BootstrapLocal struct {
	LocalPath string `yaml:"local_path"`
}

// LoadBootstrapLocal reads path directly, returning an empty
// BootstrapLocal (not an error) if the file is absent or unparsable —
// same contract as the teacher's LoadLocalConfig.
func LoadBootstrapLocal(path string) *BootstrapLocal {
	data, err := os.ReadFile(path)
	if err != nil {
		return &BootstrapLocal{}
	}
	var cfg BootstrapLocal
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return &BootstrapLocal{}
	}
	return &cfg
}

// Endpoints names every link this process can reconcile, keyed by a
// short name an operator passes on the command line. It is read with
// BurntSushi/toml directly (the same decoder the teacher's
// internal/formula package uses for its own static TOML files),
// because it is a small fixed-shape document that does not need
// viper's layered sourcing.
type Endpoints struct {
	Links map[string]EndpointConfig `toml:"links"`
}

// EndpointConfig is one named link's remote identity, recorded on every
// outbound ledger row it hands out (spec §6).
type EndpointConfig struct {
	RemoteHost   string `toml:"remote_host"`
	RemoteSchema string `toml:"remote_schema"`
}

// LoadEndpoints parses an endpoints.toml file.
func LoadEndpoints(path string) (*Endpoints, error) {
	var e Endpoints
	if _, err := toml.DecodeFile(path, &e); err != nil {
		return nil, fmt.Errorf("config: decoding endpoints %s: %w", path, err)
	}
	return &e, nil
}
