package config

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"dpconv/internal/dirs"
)

// Init wires Viper with config paths, env, defaults, and flag bindings.
// It is non-fatal: any errors are returned for optional handling by caller.
func Init(root *cobra.Command) error {
	// Ensure base directories exist
	_ = dirs.EnsureAll()

	// Setup config search path
	if cfgDir, err := dirs.ConfigDir(); err == nil {
		_ = dirs.Ensure(cfgDir)
		viper.AddConfigPath(cfgDir)
	}
	viper.SetConfigName("config") // supports config.{yaml|yml|json|toml}

	// Environment variables: DPCONV_*
	viper.SetEnvPrefix("DPCONV")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	// Bind root persistent flags to Viper keys
	_ = viper.BindPFlag("out", root.PersistentFlags().Lookup("out"))
	_ = viper.BindPFlag("verbose", root.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("ffmpeg", root.PersistentFlags().Lookup("ffmpeg"))
	_ = viper.BindPFlag("ffprobe", root.PersistentFlags().Lookup("ffprobe"))
	_ = viper.BindPFlag("cache", root.PersistentFlags().Lookup("cache"))

	// Read config file if present (ignore not found)
	_ = viper.ReadInConfig()

	return nil
}

// Out returns the configured output directory, empty for in-place output.
func Out() string { return viper.GetString("out") }

// FFmpegPath returns the configured ffmpeg path, empty for PATH lookup.
func FFmpegPath() string { return viper.GetString("ffmpeg") }

// FFprobePath returns the configured ffprobe path, empty for PATH lookup.
func FFprobePath() string { return viper.GetString("ffprobe") }

// CachePath returns the configured cache database path, empty for the
// per-user default.
func CachePath() string { return viper.GetString("cache") }
