package config

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"vecScope/resolve"
)

const EnvPrefix = "VECSCOPE"

// Config is built once at startup and handed to every component by value.
type Config struct {
	Process    string   `mapstructure:"process"`
	Module     string   `mapstructure:"module"`
	BaseOffset uint64   `mapstructure:"base-offset"`
	Offsets    []uint64 `mapstructure:"offsets"`

	Pattern       string `mapstructure:"pattern"`
	PatternOffset int64  `mapstructure:"pattern-offset"`
	PatternRIP    bool   `mapstructure:"pattern-rip"`
	RescanAfter   int    `mapstructure:"rescan-after"`

	FieldX uint64 `mapstructure:"field-x"`
	FieldY uint64 `mapstructure:"field-y"`
	FieldZ uint64 `mapstructure:"field-z"`

	SampleInterval time.Duration `mapstructure:"sample-interval"`
	RenderInterval time.Duration `mapstructure:"render-interval"`
	QueueSize      int           `mapstructure:"queue-size"`
	Retention      time.Duration `mapstructure:"retention"`
	PeakSeparation time.Duration `mapstructure:"peak-separation"`
	PeakDelay      time.Duration `mapstructure:"peak-delay"`
	Ceiling        float64       `mapstructure:"ceiling"`
	Channels       []string      `mapstructure:"channels"`

	LogFile     string `mapstructure:"log-file"`
	CrashFile   string `mapstructure:"crash-file"`
	RecordPath  string `mapstructure:"record"`
	MetricsAddr string `mapstructure:"metrics-addr"`
}

func Default() Config {
	return Config{
		Process:        "l8rsk8r.exe",
		Module:         "mono-2.0-bdwgc.dll",
		BaseOffset:     0x00A044C0,
		Offsets:        []uint64{0x7DC, 0x48, 0x288, 0x0},
		RescanAfter:    20,
		FieldX:         0x24C,
		FieldY:         0x27C,
		FieldZ:         0x254,
		SampleInterval: 50 * time.Millisecond,
		RenderInterval: 50 * time.Millisecond,
		QueueSize:      1024,
		Retention:      30 * time.Second,
		PeakSeparation: 2 * time.Second,
		PeakDelay:      0,
		Ceiling:        100000,
		Channels:       []string{"magnitude"},
		LogFile:        "log/vecscope.log",
		CrashFile:      "crash_log.txt",
	}
}

func hexList(v []uint64) []string {
	out := make([]string, len(v))
	for i, o := range v {
		out[i] = fmt.Sprintf("0x%X", o)
	}
	return out
}

// Flags registers every option on fs with the defaults from Default.
func Flags(fs *pflag.FlagSet) {
	d := Default()
	fs.String("process", d.Process, "target process name substring")
	fs.String("module", d.Module, "module holding the static base pointer")
	fs.String("base-offset", fmt.Sprintf("0x%X", d.BaseOffset), "static base offset inside the module")
	fs.StringSlice("offsets", hexList(d.Offsets), "pointer chain offsets")
	fs.String("pattern", d.Pattern, `byte signature locating the base, e.g. "48 8B 05 ?? ?? ?? ??"`)
	fs.Int64("pattern-offset", d.PatternOffset, "adjustment added to the signature match")
	fs.Bool("pattern-rip", d.PatternRIP, "follow the rip-relative operand of the matched instruction")
	fs.Int("rescan-after", d.RescanAfter, "consecutive chain failures before the signature is scanned again")
	fs.String("field-x", fmt.Sprintf("0x%X", d.FieldX), "offset of the x component")
	fs.String("field-y", fmt.Sprintf("0x%X", d.FieldY), "offset of the y component")
	fs.String("field-z", fmt.Sprintf("0x%X", d.FieldZ), "offset of the z component")
	fs.Duration("sample-interval", d.SampleInterval, "sampler period")
	fs.Duration("render-interval", d.RenderInterval, "render period")
	fs.Int("queue-size", d.QueueSize, "capacity of the sampler to renderer queue")
	fs.Duration("retention", d.Retention, "telemetry history kept for the graph")
	fs.Duration("peak-separation", d.PeakSeparation, "minimum time between two labelled peaks")
	fs.Duration("peak-delay", d.PeakDelay, "age a peak needs before it is labelled")
	fs.Float64("ceiling", d.Ceiling, "magnitudes above this are treated as garbage reads")
	fs.StringSlice("channels", d.Channels, "graphed channels: magnitude, x, y, z")
	fs.String("log-file", d.LogFile, "log file")
	fs.String("crash-file", d.CrashFile, "crash diagnostic file")
	fs.String("record", d.RecordPath, "sqlite file recording every sample")
	fs.String("metrics-addr", d.MetricsAddr, "serve prometheus metrics on this address")
}

// Load merges the config file (if any), the environment and fs.
func Load(v *viper.Viper, fs *pflag.FlagSet, file string) (Config, error) {
	if err := v.BindPFlags(fs); err != nil {
		return Config{}, err
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	var cfg Config
	err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
		numberHook,
	)))
	if err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// numberHook accepts "0x7DC" style strings for integer options.
func numberHook(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	s, ok := data.(string)
	if !ok || from.Kind() != reflect.String {
		return data, nil
	}
	s = strings.TrimSpace(s)
	switch to.Kind() {
	case reflect.Uint64:
		return strconv.ParseUint(s, 0, 64)
	case reflect.Int64:
		if to == reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		return strconv.ParseInt(s, 0, 64)
	}
	return data, nil
}

func (c Config) Validate() error {
	switch {
	case c.Process == "":
		return fmt.Errorf("process must be set")
	case c.Module == "":
		return fmt.Errorf("module must be set")
	case c.SampleInterval <= 0, c.RenderInterval <= 0:
		return fmt.Errorf("intervals must be positive")
	case c.Retention <= 0:
		return fmt.Errorf("retention must be positive")
	case c.PeakSeparation < 0, c.PeakDelay < 0:
		return fmt.Errorf("peak separation and delay must not be negative")
	case c.Ceiling <= 0:
		return fmt.Errorf("ceiling must be positive")
	case c.QueueSize <= 0:
		return fmt.Errorf("queue size must be positive")
	case len(c.Channels) == 0:
		return fmt.Errorf("at least one channel is required")
	}
	if _, err := c.PatternSpec(); err != nil {
		return err
	}
	return nil
}

func (c Config) Chain() resolve.ChainSpec {
	return resolve.ChainSpec{
		Module:     c.Module,
		BaseOffset: c.BaseOffset,
		Offsets:    append([]uint64(nil), c.Offsets...),
	}
}

// PatternSpec returns nil when no signature is configured.
func (c Config) PatternSpec() (*resolve.PatternSpec, error) {
	if strings.TrimSpace(c.Pattern) == "" {
		return nil, nil
	}
	p, err := resolve.ParsePattern(c.Pattern)
	if err != nil {
		return nil, err
	}
	return &resolve.PatternSpec{Pattern: p, Adjust: c.PatternOffset, RIPRelative: c.PatternRIP}, nil
}
