package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	tomlrepo "github.com/bnema/mindstream-cli/internal/adapters/repo/toml"
	"github.com/bnema/mindstream-cli/internal/adapters/thinkgear"
	"github.com/bnema/mindstream-cli/internal/domain"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	configFile = "config.toml"
	envPrefix  = "MINDSTREAM"

	deviceAddrKey          = "device.addr"
	deviceNoSignalLevelKey = "device.no_signal_level"
	deviceMaxFrameBytesKey = "device.max_frame_bytes"
	logLevelKey            = "log.level"
	serveAddrKey           = "serve.addr"
	servePollIntervalKey   = "serve.poll_interval"

	defaultDeviceAddr        = thinkgear.DefaultAddr
	defaultLogLevel          = "warn"
	defaultServeAddr         = "127.0.0.1:8082"
	defaultServePollInterval = 100 * time.Millisecond
)

// loadConfig layers flags over MINDSTREAM_* env (a .env in the working
// directory included) over ~/.mindstream/config.toml over defaults.
func loadConfig() (*viper.Viper, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home directory: %w", err)
	}

	config := viper.New()
	config.SetDefault(deviceAddrKey, defaultDeviceAddr)
	config.SetDefault(deviceNoSignalLevelKey, domain.DefaultNoSignalLevel)
	config.SetDefault(deviceMaxFrameBytesKey, thinkgear.DefaultMaxFrameBytes)
	config.SetDefault(logLevelKey, defaultLogLevel)
	config.SetDefault(serveAddrKey, defaultServeAddr)
	config.SetDefault(servePollIntervalKey, defaultServePollInterval)
	config.SetDefault(tomlrepo.ProfilePathKey, filepath.Join(homeDir, tomlrepo.ConfigDir, "profile.toml"))
	config.SetDefault(tomlrepo.SessionsDirKey, filepath.Join(homeDir, tomlrepo.ConfigDir, "sessions"))

	config.SetEnvPrefix(envPrefix)
	config.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	config.AutomaticEnv()

	config.SetConfigFile(filepath.Join(homeDir, tomlrepo.ConfigDir, configFile))
	if err := config.ReadInConfig(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read config: %w", err)
	}

	return config, nil
}
