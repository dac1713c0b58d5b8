package config

import (
	"errors"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/pflag"
)

var (
	// AllowFlags defines processing the cli arguments
	// true by default, tests turn it off
	AllowFlags = true
	// EnvPrefix defines name prefix for environment variables
	// with struct-path selector and value, for example:
	//    PCJSON_GENERATOR_TARGETS=schema,parse
	EnvPrefix = "PCJSON_"
	// ConfigEnv defines environment variable for config file path, overrides the ConfigName
	ConfigEnv = "PCJSON_CONFIG"
	// ConfigName defines default filename for look in work directory if ConfigEnv is empty
	ConfigName = "pcjsongen.yaml"
)

func applyFlags() {
	if !AllowFlags {
		return
	}
	/* command flags are parsed in main, unknown ones are skipped here */
	flags := pflag.NewFlagSet(os.Args[0], pflag.ContinueOnError)
	flags.ParseErrorsWhitelist.UnknownFlags = true
	flags.Usage = func() {}
	flags.StringVar(&EnvPrefix, "env-prefix", "PCJSON_",
		`prefix for environment variables, "PCJSON_" by default`)
	flags.StringVar(&ConfigEnv, "config-env", "PCJSON_CONFIG",
		`environment variable for config file path, "PCJSON_CONFIG" by default`)
	_ = flags.Parse(os.Args[1:])

	ConfigEnv = strings.TrimPrefix(ConfigEnv, "PCJSON_")
	ConfigEnv = EnvPrefix + strings.TrimPrefix(ConfigEnv, EnvPrefix)
}

func applyEnv(v ...any) error {
	var ee []error
	for i := range v {
		if err := env.ParseWithOptions(v[i], env.Options{Prefix: EnvPrefix}); err != nil {
			ee = append(ee, err)
		}
	}
	if len(ee) > 0 {
		return errors.Join(ee...)
	}
	return nil
}
