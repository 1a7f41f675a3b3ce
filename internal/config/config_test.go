package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolateHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("DEEPSEEK_API_KEY", "")
	return home
}

func TestLoadDefaults(t *testing.T) {
	home := isolateHome(t)

	cfg, err := Load(LoadOptions{})

	require.NoError(t, err)
	assert.Equal(t, "网球", cfg.Watch.Marker)
	assert.Equal(t, 180.0, cfg.Watch.MinDuration)
	assert.Equal(t, 2*time.Second, cfg.Watch.Debounce)
	assert.Equal(t, "cat", cfg.Watch.Fallback)
	assert.Equal(t, 200, cfg.State.Capacity)
	assert.Equal(t, filepath.Join(home, ".courtwatch", "state.json"), cfg.State.DSN)
	assert.Equal(t, 90*time.Second, cfg.Analysis.Timeout)
	assert.Equal(t, 60*time.Second, cfg.Delivery.Timeout)
	assert.Equal(t, "command", cfg.Delivery.Kind)
	assert.Equal(t, filepath.Join(home, ".courtwatch", "context", "latest_match.json"), cfg.ContextSnapshotPath())
}

func TestLoadFileEnvAndFlagPrecedence(t *testing.T) {
	isolateHome(t)
	dir := t.TempDir()
	file := filepath.Join(dir, "courtwatch.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
watch:
  dir: /from/file
  debounce: 5s
delivery:
  target: file-target
  kind: kafka
  kafka_brokers: ["a:9092", "b:9092"]
  kafka_topic: reports
`), 0o644))
	t.Setenv("COURTWATCH_DELIVERY_TARGET", "env-target")
	t.Setenv("DEEPSEEK_API_KEY", "sk-env")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("watch-dir", "", "")
	require.NoError(t, flags.Parse([]string{"--watch-dir", "/from/flag"}))

	cfg, err := Load(LoadOptions{
		ConfigFile: file,
		Flags:      map[string]*pflag.Flag{"watch.dir": flags.Lookup("watch-dir")},
	})

	require.NoError(t, err)
	assert.Equal(t, "/from/flag", cfg.Watch.Dir)
	assert.Equal(t, 5*time.Second, cfg.Watch.Debounce)
	assert.Equal(t, "env-target", cfg.Delivery.Target)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Delivery.KafkaBrokers)
	assert.Equal(t, "sk-env", cfg.Analysis.APIKey)
}

func TestLoadMissingConfigFile(t *testing.T) {
	isolateHome(t)

	_, err := Load(LoadOptions{ConfigFile: filepath.Join(t.TempDir(), "nope.yaml")})

	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func validConfig(t *testing.T) *Config {
	t.Helper()
	isolateHome(t)
	cfg, err := Load(LoadOptions{})
	require.NoError(t, err)
	cfg.Watch.Dir = t.TempDir()
	cfg.Delivery.Target = "user:1"
	return cfg
}

func TestValidate(t *testing.T) {
	require.NoError(t, validConfig(t).Validate())

	cases := map[string]struct {
		mutate func(*Config)
		key    string
	}{
		"missing dir":       {func(c *Config) { c.Watch.Dir = "" }, "watch.dir"},
		"dir not directory": {func(c *Config) { c.Watch.Dir = filepath.Join(c.Watch.Dir, "absent") }, "watch.dir"},
		"missing target":    {func(c *Config) { c.Delivery.Target = "" }, "delivery.target"},
		"bad kind":          {func(c *Config) { c.Delivery.Kind = "sms" }, "delivery.kind"},
		"kafka needs topic": {func(c *Config) { c.Delivery.Kind = "kafka"; c.Delivery.KafkaBrokers = []string{"a:1"} }, "delivery.kafka_topic"},
		"websocket url":     {func(c *Config) { c.Delivery.Kind = "websocket" }, "delivery.websocket_url"},
		"negative debounce": {func(c *Config) { c.Watch.Debounce = -time.Second }, "watch.debounce"},
		"zero capacity":     {func(c *Config) { c.State.Capacity = 0 }, "state.capacity"},
		"bad log level":     {func(c *Config) { c.Log.Level = "loud" }, "log.level"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := validConfig(t)
			tc.mutate(cfg)

			err := cfg.Validate()

			assert.ErrorIs(t, err, ErrInvalidConfig)
			assert.Contains(t, err.Error(), `key="`+tc.key+`"`)
		})
	}
}

func TestValidateAnalysisIgnoresWatchSettings(t *testing.T) {
	isolateHome(t)
	cfg, err := Load(LoadOptions{})
	require.NoError(t, err)

	assert.NoError(t, cfg.ValidateAnalysis())
	assert.NoError(t, cfg.ValidateState())
	assert.Error(t, cfg.Validate())

	cfg.Analysis.BaseURL = "not a url"
	err = cfg.ValidateAnalysis()
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, err.Error(), `key="analysis.base_url"`)
}

func TestContextSnapshotPathFollowsStateFile(t *testing.T) {
	cfg := &Config{State: StateConfig{DSN: "/var/lib/courtwatch/state.json"}}
	assert.Equal(t, filepath.Join("/var/lib/courtwatch", "context", "latest_match.json"), cfg.ContextSnapshotPath())

	cfg.State.ContextPath = "/tmp/latest.json"
	assert.Equal(t, "/tmp/latest.json", cfg.ContextSnapshotPath())
}
