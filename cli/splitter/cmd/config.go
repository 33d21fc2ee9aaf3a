package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/alphabill-org/payment-splitter/internal/logger"
	"github.com/alphabill-org/payment-splitter/internal/util"
)

type (
	baseConfiguration struct {
		// The splitter home directory
		HomeDir string
		// Configuration file URL. If it's relative, then it's relative from the HomeDir.
		CfgFile string
		// Logger configuration file URL.
		LogCfgFile string
	}
)

const (
	// The prefix for configuration keys inside environment.
	envPrefix = "SPLITTER"
	// The default name for config file.
	defaultConfigFile = "config.props"
	// the default splitter directory.
	defaultSplitterDir = ".payment-splitter"
	// The default logger configuration file name.
	defaultLoggerConfigFile = "logger-config.yaml"
	// The default payee key store directory.
	defaultKeysDir = "payees"
	// The default validator blueprint file name.
	defaultValidatorFile = "plutus.json"
	// The configuration key for home directory.
	keyHome = "home"
	// The configuration key for config file name.
	keyConfig = "config"

	flagNameLoggerCfgFile = "logger-config"
	flagNameLogLevel      = "log-level"

	defaultTimeout = 2 * time.Minute
)

func (r *baseConfiguration) addConfigurationFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&r.HomeDir, keyHome, "", fmt.Sprintf("set the SPLITTER_HOME for this invocation (default is %s)", splitterHomeDir()))
	cmd.PersistentFlags().StringVar(&r.CfgFile, keyConfig, "", fmt.Sprintf("config file URL (default is $SPLITTER_HOME/%s)", defaultConfigFile))
	cmd.PersistentFlags().StringVar(&r.LogCfgFile, flagNameLoggerCfgFile, defaultLoggerConfigFile, "logger config file URL. Considered absolute if starts with '/'. Otherwise relative from $SPLITTER_HOME.")
	// no default value, the level of the logger config file is used when not set
	cmd.PersistentFlags().String(flagNameLogLevel, "", "logging level, one of: TRACE, DEBUG, INFO, WARNING, ERROR, NONE")
}

func (r *baseConfiguration) initConfigFileLocation() {
	// Home directory and config file are special configuration values as these are used for loading in rest of the configuration.
	// Handle these manually, before other configuration loaded with Viper.

	// Home dir is loaded from command line argument. If it's not set, then from env. If that's not set, then default is used.
	if r.HomeDir == "" {
		r.HomeDir = os.Getenv(envKey(keyHome))
		if r.HomeDir == "" {
			r.HomeDir = splitterHomeDir()
		}
	}

	// Config file name is loaded from command line argument. If it's not set, then from env. If that's not set, then default is used.
	if r.CfgFile == "" {
		r.CfgFile = os.Getenv(envKey(keyConfig))
		if r.CfgFile == "" {
			r.CfgFile = defaultConfigFile
		}
	}
	if !filepath.IsAbs(r.CfgFile) {
		r.CfgFile = filepath.Join(r.HomeDir, r.CfgFile)
	}
}

/*
LoggerCfgFilename always returns non-empty filename - either the value
of the flag set by user or default cfg location.
*/
func (r *baseConfiguration) LoggerCfgFilename() string {
	if !filepath.IsAbs(r.LogCfgFile) {
		return filepath.Join(r.HomeDir, r.LogCfgFile)
	}
	return r.LogCfgFile
}

func (r *baseConfiguration) configFileExists() bool {
	return util.FileExists(r.CfgFile)
}

func (r *baseConfiguration) keysDir() string {
	return filepath.Join(r.HomeDir, defaultKeysDir)
}

func (r *baseConfiguration) defaultValidatorPath() string {
	return filepath.Join(r.HomeDir, defaultValidatorFile)
}

/*
initLogger configures the package loggers from the logger configuration
file, a missing default file means the default configuration. The log
level flag overrides the level of the file.
*/
func (r *baseConfiguration) initLogger(cmd *cobra.Command) error {
	level, err := cmd.Flags().GetString(flagNameLogLevel)
	if err != nil {
		return fmt.Errorf("failed to read %s flag value: %w", flagNameLogLevel, err)
	}
	loggerCfgFile := r.LoggerCfgFilename()
	cfg := logger.DefaultConfiguration()
	switch {
	case util.FileExists(loggerCfgFile) && level == "":
		return logger.UpdateGlobalConfigFromFile(loggerCfgFile)
	case util.FileExists(loggerCfgFile):
		if cfg, err = logger.LoadGlobalConfig(loggerCfgFile); err != nil {
			return err
		}
	case cmd.Flags().Changed(flagNameLoggerCfgFile):
		return fmt.Errorf("logger configuration file %s: %w", loggerCfgFile, os.ErrNotExist)
	}
	if level != "" {
		cfg.DefaultLevel = logger.LevelFromString(level)
	}
	logger.UpdateGlobalConfig(cfg)
	return nil
}

func envKey(key string) string {
	return strings.ToUpper(envPrefix + "_" + key)
}

func splitterHomeDir() string {
	dir, err := os.UserHomeDir()
	if err != nil {
		panic("default user home dir not defined: " + err.Error())
	}
	return filepath.Join(dir, defaultSplitterDir)
}
