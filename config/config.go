package config

import (
	"fmt"
	"os"
	"path"
	"slices"
	"sync"
	"time"

	"github.com/gwos/pcjsongen/errors"
	"github.com/gwos/pcjsongen/logger"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

var (
	once sync.Once
	cfg  *Config
)

// Targets of generation runs
const (
	TargetSchema = "schema"
	TargetGen    = "gen"
	TargetParse  = "parse"
)

// KnownTargets lists targets in run order
var KnownTargets = []string{TargetSchema, TargetGen, TargetParse}

// LogLevel defines levels in logrus-style
type LogLevel int

// Enum levels
const (
	Error LogLevel = iota
	Warn
	Info
	Debug
	Trace
)

func (l LogLevel) String() string {
	if l < Error || l > Trace {
		return fmt.Sprintf("LogLevel(%d)", int(l))
	}
	return [...]string{"Error", "Warn", "Info", "Debug", "Trace"}[l]
}

// Generator defines the inputs and outputs of generation runs
// see defaults() for defaults
type Generator struct {
	// RegistryFile accepts YAML or JSON snapshot of the type graph
	RegistryFile string `env:"REGISTRYFILE" yaml:"registryFile"`
	OutputDir    string `env:"OUTPUTDIR" yaml:"outputDir"`
	// Targets accepts a subset of KnownTargets
	Targets []string `env:"TARGETS" yaml:"targets"`
	// TopLevelStructs overrides the schema wrapper list
	TopLevelStructs []string `env:"TOPLEVELSTRUCTS" yaml:"topLevelStructs,omitempty"`
	// RootStructs overrides the structs getting exported routines
	RootStructs []string `env:"ROOTSTRUCTS" yaml:"rootStructs,omitempty"`
	// SchemaWrapper adds the pipeline document definitions to the schema
	SchemaWrapper bool `env:"SCHEMAWRAPPER" yaml:"schemaWrapper"`

	SchemaFile string `env:"SCHEMAFILE" yaml:"schemaFile"`
	GenFile    string `env:"GENFILE" yaml:"genFile"`
	ParseFile  string `env:"PARSEFILE" yaml:"parseFile"`
	// MetricsFile accepts path for the run metrics in text exposition format
	// if empty metrics are not written
	MetricsFile string `env:"METRICSFILE" yaml:"metricsFile,omitempty"`

	Workers         int           `env:"WORKERS" yaml:"workers"`
	SlowTargetAlarm time.Duration `env:"SLOWTARGETALARM" yaml:"slowTargetAlarm"`
	// Policy accepts "continue"|"fail-fast" for documents parsed by commands
	Policy string `env:"POLICY" yaml:"policy"`
}

// Logging defines the logger configuration
type Logging struct {
	// LogCondense accepts time duration for condensing similar records
	// if 0 turn off condensing
	LogCondense time.Duration `env:"LOGCONDENSE" yaml:"logCondense"`
	// LogConsole writes records to stderr, it is forced on without LogFile
	LogConsole bool `env:"LOGCONSOLE" yaml:"logConsole"`
	// LogFile accepts file path to log, records there are never colored
	LogFile        string `env:"LOGFILE" yaml:"logFile"`
	LogFileMaxSize int64  `env:"LOGFILEMAXSIZE" yaml:"logFileMaxSize"`
	// Log files are rotated count times before being removed.
	// If count is 0, old versions are removed rather than rotated.
	LogFileRotate int      `env:"LOGFILEROTATE" yaml:"logFileRotate"`
	LogLevel      LogLevel `env:"LOGLEVEL" yaml:"logLevel"`
	LogColors     bool     `env:"LOGCOLORS" yaml:"logColors"`
	LogTimeFormat string   `env:"LOGTIMEFORMAT" yaml:"logTimeFormat"`
}

// Config defines the generator configuration
type Config struct {
	Generator Generator `envPrefix:"GENERATOR_" yaml:"generator"`
	Logging   Logging   `envPrefix:"LOGGING_" yaml:"logging"`
}

func defaults() Config {
	return Config{
		Generator: Generator{
			RegistryFile:    "registry.yaml",
			OutputDir:       ".",
			Targets:         append([]string(nil), KnownTargets...),
			SchemaWrapper:   true,
			SchemaFile:      "vksc_pipeline_schema.json",
			GenFile:         "vulkan_json_gen.hpp",
			ParseFile:       "vulkan_json_parser.hpp",
			Workers:         2,
			SlowTargetAlarm: time.Second * 10,
			Policy:          "continue",
		},
		Logging: Logging{
			LogCondense:    time.Minute,
			LogConsole:     true,
			LogFileMaxSize: 1024 * 1024 * 10, // 10MB
			LogFileRotate:  5,
			LogLevel:       Info,
			LogColors:      false,
			LogTimeFormat:  time.RFC3339,
		},
	}
}

// GetConfig implements Singleton pattern
func GetConfig() *Config {
	once.Do(func() {
		/* buffer the logging while configuring */
		logBuf := &logger.LogBuffer{
			Level: zerolog.TraceLevel,
			Size:  16,
		}
		log.Logger = zerolog.New(logBuf).
			With().Timestamp().Caller().Logger()
		log.Info().Msgf("Build info: %s / %s", buildTag, buildTime)

		applyFlags()
		cfg = load()

		/* init logger and flush buffer */
		cfg.initLogger()
		logger.WriteLogBuffer(logBuf)
	})
	return cfg
}

// load merges defaults, file, and env
func load() *Config {
	c := new(Config)
	*c = defaults()
	if data, err := os.ReadFile(c.ConfigPath()); err != nil {
		log.Warn().Err(err).
			Str("configPath", c.ConfigPath()).
			Msg("could not read config")
	} else {
		if err := yaml.Unmarshal(data, c); err != nil {
			log.Err(err).
				Str("configData", string(data)).
				Str("configPath", c.ConfigPath()).
				Msg("could not parse config")
		}
	}
	if err := applyEnv(c); err != nil {
		log.Warn().Err(err).
			Msg("could not apply env vars")
	}
	return c
}

// ConfigPath returns config file path
func (cfg Config) ConfigPath() string {
	configPath := os.Getenv(ConfigEnv)
	if configPath == "" {
		configPath = ConfigName
		if wd, err := os.Getwd(); err == nil {
			configPath = path.Join(wd, ConfigName)
		}
	}
	return configPath
}

// Validate verifies the generator settings
func (cfg Config) Validate() error {
	var ee []error
	if len(cfg.Generator.Targets) == 0 {
		ee = append(ee, fmt.Errorf("%w: no targets", errors.ErrTarget))
	}
	for i, t := range cfg.Generator.Targets {
		if !slices.Contains(KnownTargets, t) {
			ee = append(ee, fmt.Errorf("%w: %q", errors.ErrTarget, t))
		} else if slices.Contains(cfg.Generator.Targets[:i], t) {
			ee = append(ee, fmt.Errorf("%w: %q listed twice", errors.ErrTarget, t))
		}
	}
	if cfg.Generator.Workers < 1 || cfg.Generator.Workers > 255 {
		ee = append(ee, fmt.Errorf("%w: workers %d out of range", errors.ErrInvalidInput, cfg.Generator.Workers))
	}
	switch cfg.Generator.Policy {
	case "", "continue", "fail-fast":
	default:
		ee = append(ee, fmt.Errorf("%w: policy %q", errors.ErrInvalidInput, cfg.Generator.Policy))
	}
	return errors.Join(ee...)
}

// OutputFile returns output path of the target
func (cfg Config) OutputFile(target string) string {
	var name string
	switch target {
	case TargetSchema:
		name = cfg.Generator.SchemaFile
	case TargetGen:
		name = cfg.Generator.GenFile
	case TargetParse:
		name = cfg.Generator.ParseFile
	default:
		return ""
	}
	if path.IsAbs(name) {
		return name
	}
	return path.Join(cfg.Generator.OutputDir, name)
}

// Hashsum calculates FNV non-cryptographic hash suitable for checking the equality
func (cfg Config) Hashsum() ([]byte, error) {
	return Hashsum(cfg)
}

func (cfg Config) initLogger() {
	if cfg.Logging.LogLevel > Trace {
		cfg.Logging.LogLevel = Trace
	}
	if cfg.Logging.LogLevel < Error {
		cfg.Logging.LogLevel = Error
	}
	lvl := [...]zerolog.Level{3, 2, 1, 0, -1}[cfg.Logging.LogLevel]
	if lvl <= zerolog.DebugLevel {
		cfg.Logging.LogCondense = 0
	}
	opts := []logger.Option{
		logger.WithNoColor(!cfg.Logging.LogColors),
		logger.WithCondense(cfg.Logging.LogCondense),
		logger.WithLevel(lvl),
		logger.WithTimeFormat(cfg.Logging.LogTimeFormat),
	}
	if !cfg.Logging.LogConsole && cfg.Logging.LogFile != "" {
		opts = append(opts, logger.WithConsole(nil))
	}
	if cfg.Logging.LogFile != "" {
		opts = append(opts, logger.WithLogFile(&logger.LogFile{
			FilePath: cfg.Logging.LogFile,
			MaxSize:  cfg.Logging.LogFileMaxSize,
			Rotate:   cfg.Logging.LogFileRotate,
		}))
	}
	logger.SetLogger(opts...)
}
