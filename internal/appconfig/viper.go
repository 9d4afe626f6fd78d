// Package appconfig loads blobx.Config for the blobgate binary from a YAML
// file and BLOBX_ environment variables.
package appconfig

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/gostratum/blobx"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// EnvPrefix is prepended to every environment override, e.g.
// BLOBX_GATEWAY_AWS_DEFAULT_BUCKET.
const EnvPrefix = "BLOBX"

// New returns a viper instance reading path (when set) or a blobx.yaml from
// the usual locations, with environment overrides bound for every key.
func New(path string) (*viper.Viper, error) {
	v := viper.New()
	setupViper(v, path)
	bindEnvVars(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// A missing file is fine unless one was asked for explicitly.
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}
	return v, nil
}

// Load decodes the gateway section of v over DefaultConfig, then
// normalises and validates it.
func Load(v *viper.Viper) (*blobx.Config, error) {
	// Unmarshal goes through AllSettings, which merges bound env vars into
	// nested keys; UnmarshalKey on the section would miss them.
	doc := struct {
		Gateway *blobx.Config `mapstructure:"gateway"`
	}{Gateway: blobx.DefaultConfig()}
	if err := v.Unmarshal(&doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg := doc.Gateway

	cfg = cfg.Normalize()
	if err := blobx.ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func setupViper(v *viper.Viper, path string) {
	if path != "" {
		v.SetConfigFile(path)
		return
	}

	v.SetConfigName("blobx")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/blobx")
	v.AddConfigPath("$HOME/.config/blobx")
}

// bindEnvVars binds one environment variable per scalar config key so
// Unmarshal sees overrides even when the file omits the key.
func bindEnvVars(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	prefix := blobx.Config{}.Prefix()
	for _, key := range configKeys(reflect.TypeOf(blobx.Config{}), prefix) {
		_ = v.BindEnv(key)
	}
}

// configKeys lists the dotted mapstructure keys of the scalar fields of t.
// Maps are skipped; they can only be set from the file.
func configKeys(t reflect.Type, prefix string) []string {
	var keys []string
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		name := field.Tag.Get("mapstructure")
		if name == "" || name == "-" {
			continue
		}
		key := prefix + "." + name

		switch field.Type.Kind() {
		case reflect.Struct:
			keys = append(keys, configKeys(field.Type, key)...)
		case reflect.Map, reflect.Slice:
		default:
			keys = append(keys, key)
		}
	}
	return keys
}

// NewLogger builds a production zap logger, or a development one at debug
// level when debug is set.
func NewLogger(debug bool) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	if debug {
		config = zap.NewDevelopmentConfig()
		config.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}

	logger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return logger, nil
}
