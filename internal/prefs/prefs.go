// Package prefs loads and persists the audio/engine preferences:
// preferred device names, requested in/out channel counts, buffer size,
// and latency in milliseconds. Grounded on cwdecoder's internal/config
// viper-with-defaults-and-mapstructure pattern, adapted from that
// package's YAML config file to a flat key/value layout since the
// on-disk format here is a small key/value text file, and viper happily
// reads that shape as YAML scalars.
package prefs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// AppName names the directory under the user's config dir where the
// preferences file lives, matching cwdecoder's AppName-keyed XDG layout.
const AppName = "arco"

// Keys for the on-disk preference file.
const (
	KeyAudioInName  = "audio_in_name"
	KeyAudioOutName = "audio_out_name"
	KeyInChans      = "in_chans"
	KeyOutChans     = "out_chans"
	KeyBufferSize   = "buffer_size"
	KeyLatency      = "latency"
)

// Prefs holds the persisted device/channel selection consumed by the
// audio I/O state machine on open.
type Prefs struct {
	AudioInName  string  `mapstructure:"audio_in_name"`
	AudioOutName string  `mapstructure:"audio_out_name"`
	InChans      int     `mapstructure:"in_chans"`
	OutChans     int     `mapstructure:"out_chans"`
	BufferSize   int     `mapstructure:"buffer_size"`
	Latency      float64 `mapstructure:"latency"`
}

// Default returns the preferences used when no file exists yet: system
// default device (empty name), stereo in/out, and a conservative buffer
// size/latency pair.
func Default() Prefs {
	return Prefs{
		AudioInName:  "",
		AudioOutName: "",
		InChans:      2,
		OutChans:     2,
		BufferSize:   256,
		Latency:      10.0,
	}
}

// Load reads preferences from the given path (or the default XDG config
// location when path is empty), creating a default file on first run the
// way cwdecoder's config.Init does. It never returns an error for a
// missing file; only malformed files or an unwritable config directory
// are reported.
func Load(path string) (Prefs, error) {
	v := viper.New()
	v.SetDefault(KeyAudioInName, "")
	v.SetDefault(KeyAudioOutName, "")
	v.SetDefault(KeyInChans, 2)
	v.SetDefault(KeyOutChans, 2)
	v.SetDefault(KeyBufferSize, 256)
	v.SetDefault(KeyLatency, 10.0)
	v.SetConfigType("yaml")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		dir, err := configDir()
		if err != nil {
			return Default(), fmt.Errorf("prefs: locate config dir: %w", err)
		}
		v.SetConfigName("prefs")
		v.AddConfigPath(dir)
		path = filepath.Join(dir, "prefs.yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return Default(), fmt.Errorf("prefs: read %s: %w", path, err)
		}
		if err := ensureDefaultFile(path); err != nil {
			return Default(), err
		}
		if err := v.ReadInConfig(); err != nil {
			return Default(), fmt.Errorf("prefs: read newly written %s: %w", path, err)
		}
	}

	var p Prefs
	if err := v.Unmarshal(&p); err != nil {
		return Default(), fmt.Errorf("prefs: unmarshal: %w", err)
	}
	return p, nil
}

// Save persists p to path (or the default location when empty) as YAML.
func Save(p Prefs, path string) error {
	if path == "" {
		dir, err := configDir()
		if err != nil {
			return fmt.Errorf("prefs: locate config dir: %w", err)
		}
		path = filepath.Join(dir, "prefs.yaml")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("prefs: create config dir: %w", err)
	}
	return os.WriteFile(path, []byte(render(p)), 0o600)
}

func configDir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, AppName), nil
}

func ensureDefaultFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("prefs: create config dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(render(Default())), 0o644); err != nil {
		return fmt.Errorf("prefs: write default %s: %w", path, err)
	}
	return nil
}

func render(p Prefs) string {
	return fmt.Sprintf(
		"%s: %q\n%s: %q\n%s: %d\n%s: %d\n%s: %d\n%s: %v\n",
		KeyAudioInName, p.AudioInName,
		KeyAudioOutName, p.AudioOutName,
		KeyInChans, p.InChans,
		KeyOutChans, p.OutChans,
		KeyBufferSize, p.BufferSize,
		KeyLatency, p.Latency,
	)
}
