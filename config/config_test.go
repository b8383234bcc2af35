package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func load(t *testing.T, file string, args ...string) (Config, error) {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	Flags(fs)
	require.NoError(t, fs.Parse(args))
	return Load(viper.New(), fs, file)
}

func TestDefaults(t *testing.T) {
	cfg, err := load(t, "")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	spec, err := cfg.PatternSpec()
	require.NoError(t, err)
	assert.Nil(t, spec)
	assert.Equal(t, uint64(0xA044C0), cfg.Chain().BaseOffset)
}

func TestFlagsAcceptHex(t *testing.T) {
	cfg, err := load(t, "",
		"--process=game",
		"--base-offset=0x100",
		"--offsets=0x10,0x20,8",
		"--field-x=16",
		"--pattern=48 8B 05 ?? ?? ?? ??",
		"--pattern-offset=-3",
		"--retention=10s",
	)
	require.NoError(t, err)
	assert.Equal(t, "game", cfg.Process)
	assert.Equal(t, uint64(0x100), cfg.BaseOffset)
	assert.Equal(t, []uint64{0x10, 0x20, 8}, cfg.Offsets)
	assert.Equal(t, uint64(16), cfg.FieldX)
	assert.Equal(t, int64(-3), cfg.PatternOffset)
	assert.Equal(t, 10*time.Second, cfg.Retention)

	spec, err := cfg.PatternSpec()
	require.NoError(t, err)
	require.NotNil(t, spec)
	assert.Equal(t, 7, spec.Pattern.Len())
	assert.Equal(t, int64(-3), spec.Adjust)
}

func TestConfigFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "vecscope.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
process: other.exe
offsets: ["0x1", "0x2"]
field-y: "0x30"
peak-separation: 500ms
channels: [magnitude, x]
`), 0644))

	t.Setenv("VECSCOPE_CEILING", "500")

	cfg, err := load(t, file)
	require.NoError(t, err)
	assert.Equal(t, "other.exe", cfg.Process)
	assert.Equal(t, []uint64{1, 2}, cfg.Offsets)
	assert.Equal(t, uint64(0x30), cfg.FieldY)
	assert.Equal(t, 500*time.Millisecond, cfg.PeakSeparation)
	assert.Equal(t, []string{"magnitude", "x"}, cfg.Channels)
	assert.Equal(t, 500.0, cfg.Ceiling)
}

func TestValidate(t *testing.T) {
	for name, mutate := range map[string]func(*Config){
		"process":  func(c *Config) { c.Process = "" },
		"module":   func(c *Config) { c.Module = "" },
		"interval": func(c *Config) { c.SampleInterval = 0 },
		"ceiling":  func(c *Config) { c.Ceiling = -1 },
		"queue":    func(c *Config) { c.QueueSize = 0 },
		"channels": func(c *Config) { c.Channels = nil },
		"pattern":  func(c *Config) { c.Pattern = "ZZ" },
	} {
		cfg := Default()
		mutate(&cfg)
		assert.Error(t, cfg.Validate(), name)
	}
	assert.NoError(t, Default().Validate())
}
