package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gwos/pcjsongen/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	AllowFlags = false
}

func writeConfig(t *testing.T, data string) string {
	t.Helper()
	name := filepath.Join(t.TempDir(), "pcjsongen.yaml")
	require.NoError(t, os.WriteFile(name, []byte(data), 0644))
	return name
}

func TestLoad(t *testing.T) {
	configYAML := `
generator:
  registryFile: "testdata/registry.yaml"
  outputDir: "out"
  targets: [schema, parse]
  topLevelStructs: [VkGraphicsPipelineCreateInfo]
  workers: 3
  slowTargetAlarm: 2s
logging:
  logLevel: 3
  logFile: "/tmp/pcjsongen.log"
`
	t.Setenv(ConfigEnv, writeConfig(t, configYAML))
	t.Setenv(EnvPrefix+"GENERATOR_PARSEFILE", "parser.hpp")
	t.Setenv(EnvPrefix+"GENERATOR_ROOTSTRUCTS", "VkComputePipelineCreateInfo,VkSamplerCreateInfo")
	t.Setenv(EnvPrefix+"LOGGING_LOGCONDENSE", "30s")
	t.Setenv(EnvPrefix+"LOGGING_LOGCONSOLE", "false")

	got := load()
	expected := defaults()
	expected.Generator.RegistryFile = "testdata/registry.yaml"
	expected.Generator.OutputDir = "out"
	expected.Generator.Targets = []string{TargetSchema, TargetParse}
	expected.Generator.TopLevelStructs = []string{"VkGraphicsPipelineCreateInfo"}
	expected.Generator.RootStructs = []string{"VkComputePipelineCreateInfo", "VkSamplerCreateInfo"}
	expected.Generator.Workers = 3
	expected.Generator.SlowTargetAlarm = time.Second * 2
	expected.Generator.ParseFile = "parser.hpp"
	expected.Logging.LogLevel = Debug
	expected.Logging.LogFile = "/tmp/pcjsongen.log"
	expected.Logging.LogCondense = time.Second * 30
	expected.Logging.LogConsole = false

	assert.Equal(t, expected, *got)
	assert.NoError(t, got.Validate())
	assert.Equal(t, "out/parser.hpp", got.OutputFile(TargetParse))
	assert.Equal(t, "out/vksc_pipeline_schema.json", got.OutputFile(TargetSchema))
	assert.Equal(t, "", got.OutputFile("docs"))
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv(ConfigEnv, filepath.Join(t.TempDir(), "absent.yaml"))
	got := load()
	assert.Equal(t, defaults(), *got)
}

func TestValidate(t *testing.T) {
	tests := map[string]struct {
		update func(*Config)
		target error
	}{
		"unknown target": {func(c *Config) { c.Generator.Targets = []string{"schema", "docs"} }, errors.ErrTarget},
		"twice":          {func(c *Config) { c.Generator.Targets = []string{"gen", "gen"} }, errors.ErrTarget},
		"no targets":     {func(c *Config) { c.Generator.Targets = nil }, errors.ErrTarget},
		"workers":        {func(c *Config) { c.Generator.Workers = 0 }, errors.ErrInvalidInput},
		"policy":         {func(c *Config) { c.Generator.Policy = "retry" }, errors.ErrInvalidInput},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			c := defaults()
			tt.update(&c)
			err := c.Validate()
			assert.ErrorIs(t, err, tt.target)
			assert.True(t, errors.IsFatal(err) == errors.Is(tt.target, errors.ErrFatal))
		})
	}
}

func TestHashsum(t *testing.T) {
	c1, c2 := defaults(), defaults()
	h1, err := c1.Hashsum()
	require.NoError(t, err)
	h2, _ := c2.Hashsum()
	assert.Equal(t, h1, h2)

	c2.Generator.Targets = []string{TargetGen}
	h2, _ = c2.Hashsum()
	assert.NotEqual(t, h1, h2)

	b1, _ := Hashsum([]byte("struct VkOffset2D"))
	b2, _ := Hashsum("struct VkOffset2D")
	assert.Equal(t, b1, b2)
}

func TestLogLevel(t *testing.T) {
	assert.Equal(t, "Debug", Debug.String())
	assert.Equal(t, "LogLevel(7)", LogLevel(7).String())
}

func TestGetConfig(t *testing.T) {
	t.Setenv(ConfigEnv, writeConfig(t, "generator:\n  workers: 4\n"))
	got := GetConfig()
	assert.Equal(t, 4, got.Generator.Workers)
	assert.Same(t, got, GetConfig())
}
