package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. LOADREPORT_USERS.
const EnvPrefix = "LOADREPORT"

// Override keys. Each is also the name of the matching command line flag.
const (
	KeyHost      = "host"
	KeyUsers     = "users"
	KeyDuration  = "duration"
	KeySpawnRate = "spawn-rate"
	KeyReportDir = "report-dir"
)

// OverrideKeys lists the keys read by ApplyOverrides.
var OverrideKeys = []string{KeyHost, KeyUsers, KeyDuration, KeySpawnRate, KeyReportDir}

// NewViper returns a viper instance reading LOADREPORT_* variables.
// A dash in a key maps to an underscore (spawn-rate -> LOADREPORT_SPAWN_RATE).
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// BindFlags binds the override flags present in flags to v. Flags take
// precedence over the environment once they are set on the command line.
func BindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for _, key := range OverrideKeys {
		f := flags.Lookup(key)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", key, err)
		}
	}
	return nil
}

// ApplyOverrides copies every override set in v onto cfg.
func ApplyOverrides(cfg *Config, v *viper.Viper) error {
	if v == nil {
		return nil
	}

	if v.IsSet(KeyHost) {
		cfg.Host = v.GetString(KeyHost)
	}
	if v.IsSet(KeyUsers) {
		n, err := toInt(v.Get(KeyUsers))
		if err != nil {
			return fmt.Errorf("invalid %s override: %w", KeyUsers, err)
		}
		cfg.Users = n
	}
	if v.IsSet(KeyDuration) {
		d, err := ParseDurationString(v.GetString(KeyDuration))
		if err != nil {
			return fmt.Errorf("invalid %s override: %w", KeyDuration, err)
		}
		cfg.Duration = Duration(d)
	}
	if v.IsSet(KeySpawnRate) {
		cfg.SpawnRate = v.GetFloat64(KeySpawnRate)
	}
	if v.IsSet(KeyReportDir) {
		cfg.Report.Dir = v.GetString(KeyReportDir)
	}
	return nil
}

func toInt(value interface{}) (int, error) {
	switch n := value.(type) {
	case int:
		return n, nil
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, fmt.Errorf("not an integer: %q", n)
		}
		return i, nil
	default:
		return 0, fmt.Errorf("unsupported value %v", value)
	}
}
