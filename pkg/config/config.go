// Package config holds the service options and binds them to flags, environment and config file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// EnvPrefix prefixes every environment variable override.
	EnvPrefix = "GASGUARD"
	// DefaultConfigName is the config file looked up in the home directory.
	DefaultConfigName = ".gasguard"
)

// Validation errors returned by Options.Validate.
var (
	ErrModelPath    = errors.New("model.path is required")
	ErrPort         = errors.New("server.port must be between 1 and 65535")
	ErrUploadLimit  = errors.New("server.max_upload_mb must be positive")
	ErrMemoSize     = errors.New("scaler.memo_size must not be negative")
	ErrHistoryLimit = errors.New("history.limit must be positive")
	ErrLogLevel     = errors.New("log.level is not a valid level")
)

// Options is the complete service configuration.
type Options struct {
	Log     LogOptions     `mapstructure:"log" yaml:"log" json:"log"`
	Server  ServerOptions  `mapstructure:"server" yaml:"server" json:"server"`
	Model   ModelOptions   `mapstructure:"model" yaml:"model" json:"model"`
	Scaler  ScalerOptions  `mapstructure:"scaler" yaml:"scaler" json:"scaler"`
	History HistoryOptions `mapstructure:"history" yaml:"history" json:"history"`
}

// LogOptions configures logging.
type LogOptions struct {
	Level string `mapstructure:"level" yaml:"level" json:"level"`
}

// ServerOptions configures the HTTP listener.
type ServerOptions struct {
	Address     string `mapstructure:"address" yaml:"address" json:"address"`
	Port        int    `mapstructure:"port" yaml:"port" json:"port"`
	MaxUploadMB int    `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
}

// ModelOptions locates the trained model.
type ModelOptions struct {
	Path string `mapstructure:"path" yaml:"path" json:"path"`
}

// ScalerOptions configures the scaler memo.
type ScalerOptions struct {
	MemoSize int `mapstructure:"memo_size" yaml:"memo_size" json:"memo_size"`
}

// HistoryOptions configures run history.
type HistoryOptions struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Dir     string `mapstructure:"dir" yaml:"dir" json:"dir"`
	Limit   int    `mapstructure:"limit" yaml:"limit" json:"limit"`
}

// DefaultHistoryDir is the per-user data directory for run history.
func DefaultHistoryDir() string {
	return filepath.Join(xdg.DataHome, "gasguard")
}

// Default returns the built-in options.
func Default() Options {
	return Options{
		Log:     LogOptions{Level: "info"},
		Server:  ServerOptions{Address: "0.0.0.0", Port: 8501, MaxUploadMB: 32},
		Model:   ModelOptions{Path: "iso_forest_model.bin"},
		Scaler:  ScalerOptions{MemoSize: 16},
		History: HistoryOptions{Enabled: true, Dir: DefaultHistoryDir(), Limit: 10},
	}
}

// Addr returns the listen address.
func (o *Options) Addr() string {
	return fmt.Sprintf("%s:%d", o.Server.Address, o.Server.Port)
}

// MaxUploadBytes returns the multipart memory limit in bytes.
func (o *Options) MaxUploadBytes() int64 {
	return int64(o.Server.MaxUploadMB) << 20
}

// Validate checks option ranges.
func (o *Options) Validate() error {
	if strings.TrimSpace(o.Model.Path) == "" {
		return ErrModelPath
	}
	if o.Server.Port < 1 || o.Server.Port > 65535 {
		return errors.Wrapf(ErrPort, "got %d", o.Server.Port)
	}
	if o.Server.MaxUploadMB <= 0 {
		return errors.Wrapf(ErrUploadLimit, "got %d", o.Server.MaxUploadMB)
	}
	if o.Scaler.MemoSize < 0 {
		return errors.Wrapf(ErrMemoSize, "got %d", o.Scaler.MemoSize)
	}
	if o.History.Limit <= 0 {
		return errors.Wrapf(ErrHistoryLimit, "got %d", o.History.Limit)
	}
	if _, err := logrus.ParseLevel(o.Log.Level); err != nil {
		return errors.Wrapf(ErrLogLevel, "got %q", o.Log.Level)
	}
	return nil
}

// AddFlags registers one flag per option on fs, writing into o.
func AddFlags(fs *pflag.FlagSet, o *Options) {
	d := Default()
	fs.StringVar(&o.Log.Level, "log.level", d.Log.Level, "Log level: debug, info, warning, error")
	fs.StringVar(&o.Server.Address, "server.address", d.Server.Address, "Dashboard listen address")
	fs.IntVar(&o.Server.Port, "server.port", d.Server.Port, "Dashboard listen port")
	fs.IntVar(&o.Server.MaxUploadMB, "server.max_upload_mb", d.Server.MaxUploadMB, "Maximum upload size in MiB")
	fs.StringVar(&o.Model.Path, "model.path", d.Model.Path, "Path of the trained model file")
	fs.IntVar(&o.Scaler.MemoSize, "scaler.memo_size", d.Scaler.MemoSize, "Scaled uploads remembered (0 disables)")
	fs.BoolVar(&o.History.Enabled, "history.enabled", d.History.Enabled, "Record scoring runs")
	fs.StringVar(&o.History.Dir, "history.dir", d.History.Dir, "Run history directory")
	fs.IntVar(&o.History.Limit, "history.limit", d.History.Limit, "Runs listed on the dashboard")
}

// Bind reads the config file and environment and applies their values to every flag
// of fs not set on the command line. An empty cfgFile searches the home directory.
// A missing default config file is not an error.
func Bind(fs *pflag.FlagSet, cfgFile string) error {
	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(home)
		v.SetConfigName(DefaultConfigName)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	var cfgErr error
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			cfgErr = errors.Wrap(err, "read config")
		}
	}

	if err := bindFlags(fs, v); err != nil {
		return err
	}
	return cfgErr
}

func bindFlags(fs *pflag.FlagSet, v *viper.Viper) error {
	var bindErr error
	fs.VisitAll(func(f *pflag.Flag) {
		if bindErr != nil {
			return
		}
		if strings.Contains(f.Name, ".") {
			envVarSuffix := strings.ToUpper(strings.ReplaceAll(f.Name, ".", "_"))
			_ = v.BindEnv(f.Name, fmt.Sprintf("%s_%s", EnvPrefix, envVarSuffix))
		}

		if f.Changed || !v.IsSet(f.Name) {
			return
		}
		val := v.Get(f.Name)
		switch val.(type) {
		case bool, uint, string, int32, int16, int8, int, uint32, uint64, int64, float64, float32:
			bindErr = fs.Set(f.Name, fmt.Sprintf("%v", val))
		default:
			b, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(&val)
			if err != nil {
				bindErr = errors.Wrapf(err, "flag %s", f.Name)
				return
			}
			bindErr = fs.Set(f.Name, string(b))
		}
		if bindErr != nil {
			bindErr = errors.Wrapf(bindErr, "apply %s", f.Name)
		}
	})
	return bindErr
}
