package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gwos/pcjsongen/cache"
	"github.com/gwos/pcjsongen/config"
	"github.com/gwos/pcjsongen/driver"
	"github.com/gwos/pcjsongen/errors"
	"github.com/gwos/pcjsongen/model"
	"github.com/gwos/pcjsongen/pcjson"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
)

const usage = `Usage: %s [flags] [command] [document.json]

Commands:
  generate    generate the configured targets, default
  validate    validate the document against the generated schema
  roundtrip   parse the document and serialize it again, report the differences
  version     print the build info

Flags:
`

type options struct {
	typeName string
	root     string
}

func main() {
	cfg := config.GetConfig()
	model.Logger = slog.Default().WithGroup("model")

	opts := options{}
	flags := pflag.NewFlagSet(os.Args[0], pflag.ContinueOnError)
	flags.SortFlags = false
	flags.Usage = func() {
		fmt.Fprintf(os.Stderr, usage, os.Args[0])
		flags.PrintDefaults()
	}
	flags.StringVarP(&cfg.Generator.RegistryFile, "registry", "r", cfg.Generator.RegistryFile,
		"registry snapshot, YAML or JSON")
	flags.StringVarP(&cfg.Generator.OutputDir, "output", "o", cfg.Generator.OutputDir,
		"output directory of generated files")
	flags.StringSliceVar(&cfg.Generator.Targets, "targets", cfg.Generator.Targets,
		"targets to generate: schema,gen,parse")
	flags.StringVar(&cfg.Generator.Policy, "policy", cfg.Generator.Policy,
		`reaction to parse errors: "continue"|"fail-fast"`)
	flags.StringVar(&opts.typeName, "type", "",
		"record type of the roundtrip document, pipeline document if empty")
	flags.StringVar(&opts.root, "root", "",
		"schema definition validating the document, whole schema if empty")
	/* parsed by config */
	flags.String("env-prefix", config.EnvPrefix, "prefix for environment variables")
	flags.String("config-env", config.ConfigEnv, "environment variable for config file path")
	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		log.Fatal().Err(err).Msg("could not parse flags")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, cfg, opts, flags.Args()); err != nil {
		stop()
		log.Fatal().Err(err).Msg("failed")
	}
}

func run(ctx context.Context, cfg *config.Config, opts options, args []string) error {
	cmd := "generate"
	if len(args) > 0 {
		cmd = args[0]
	}
	if cmd == "version" {
		bi := config.GetBuildInfo()
		fmt.Printf("pcjsongen %s / %s\n", bi.Tag, bi.Time)
		return nil
	}

	reg, err := cache.Registry(cfg.Generator.RegistryFile)
	if err != nil {
		return err
	}
	switch cmd {
	case "generate":
		_, err := driver.Run(ctx, cfg, reg)
		return err
	case "validate", "roundtrip":
		if len(args) < 2 {
			return fmt.Errorf("%w: %s requires a document", errors.ErrInvalidInput, cmd)
		}
		data, err := os.ReadFile(args[1])
		if err != nil {
			return fmt.Errorf("%w: %v", errors.ErrInvalidInput, err)
		}
		if cmd == "validate" {
			return validate(cfg, reg, opts, data)
		}
		return roundtrip(cfg, reg, opts, data)
	}
	return fmt.Errorf("%w: unknown command %q", errors.ErrInvalidInput, cmd)
}

func validate(cfg *config.Config, reg *model.Registry, opts options, data []byte) error {
	schemaJSON, _, err := driver.Render(cfg, reg, config.TargetSchema)
	if err != nil {
		return err
	}
	if err := pcjson.ValidateDocument(schemaJSON, data, opts.root); err != nil {
		return err
	}
	log.Info().Str("root", opts.root).Msg("document is valid")
	return nil
}

func roundtrip(cfg *config.Config, reg *model.Registry, opts options, data []byte) error {
	doc, err := pcjson.Unmarshal(data)
	if err != nil {
		return err
	}
	out, msgs := pcjson.RoundTrip(reg, pcjson.ParsePolicy(cfg.Generator.Policy), opts.typeName, doc)
	for _, line := range msgs.Lines() {
		fmt.Fprintln(os.Stderr, line)
	}
	if out == nil {
		return msgs.Err()
	}
	text, err := pcjson.Marshal(out)
	if err != nil {
		return err
	}
	fmt.Println(string(text))

	diffs, err := pcjson.Diff(doc, out)
	if err != nil {
		return err
	}
	if len(diffs) > 0 {
		log.Warn().Strs("diffs", diffs).Msg("document changed on round trip")
		return fmt.Errorf("%w: %d differences", errors.ErrInvalidInput, len(diffs))
	}
	return msgs.Err()
}
