package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

type (
	Logger interface {
		Trace(format string, args ...interface{})
		Debug(format string, args ...interface{})
		Info(format string, args ...interface{})
		Warning(format string, args ...interface{})
		Error(format string, args ...interface{})
		// With returns a logger adding the key-value pair to every message
		With(key string, value interface{}) Logger
	}

	LogLevel uint

	// GlobalConfig is the configuration shared by all the package loggers.
	GlobalConfig struct {
		DefaultLevel    LogLevel
		PackageLevels   map[string]LogLevel
		Writer          io.Writer
		ConsoleFormat   bool
		ShowCaller      bool
		TimeLocation    string
		ShowGoroutineID bool
	}

	// fileConfiguration is the YAML representation of GlobalConfig.
	fileConfiguration struct {
		DefaultLevel    string            `yaml:"defaultLevel"`
		PackageLevels   map[string]string `yaml:"packageLevels"`
		OutputPath      string            `yaml:"outputPath"`
		ConsoleFormat   bool              `yaml:"consoleFormat"`
		ShowCaller      bool              `yaml:"showCaller"`
		TimeLocation    string            `yaml:"timeLocation"`
		ShowGoroutineID bool              `yaml:"showGoroutineID"`
	}
)

const (
	NONE LogLevel = iota
	ERROR
	WARNING
	INFO
	DEBUG
	TRACE
)

const defaultTimeLocation = "Local"

func LevelFromString(s string) LogLevel {
	switch strings.ToUpper(s) {
	case "NONE":
		return NONE
	case "ERROR":
		return ERROR
	case "WARNING", "WARN":
		return WARNING
	case "INFO":
		return INFO
	case "DEBUG":
		return DEBUG
	case "TRACE":
		return TRACE
	default:
		return DEBUG
	}
}

func (l LogLevel) String() string {
	switch l {
	case NONE:
		return "NONE"
	case ERROR:
		return "ERROR"
	case WARNING:
		return "WARNING"
	case INFO:
		return "INFO"
	case DEBUG:
		return "DEBUG"
	case TRACE:
		return "TRACE"
	default:
		return fmt.Sprintf("LogLevel(%d)", uint(l))
	}
}

// CreateForPackage creates logger named after the caller package.
func CreateForPackage() Logger {
	return Create(globalFactoryImpl.packageNameResolver.PackageName())
}

// Create creates custom named logger
func Create(name string) Logger {
	return globalFactoryImpl.create(name)
}

// SetContext sets context for all loggers
func SetContext(key string, value interface{}) {
	globalFactoryImpl.setContext(key, value)
}

// UpdateGlobalConfig updates global config and all the loggers accordingly.
func UpdateGlobalConfig(config GlobalConfig) {
	globalFactoryImpl.Lock()
	defer globalFactoryImpl.Unlock()

	globalFactoryImpl.updateFromConfig(config)
}

// UpdateGlobalConfigFromFile reads the file and parses it as YAML. Global logger configuration is updated accordingly.
// In case of an error, logger won't be updated.
func UpdateGlobalConfigFromFile(fileName string) error {
	conf, err := LoadGlobalConfig(fileName)
	if err != nil {
		return err
	}
	UpdateGlobalConfig(conf)
	return nil
}

// InitializeGlobalLogger initializes global logger with default configuration if it hasn't been initialized already.
func InitializeGlobalLogger() {
	if !globalFactoryImpl.globalLoggerInitialized {
		globalFactoryImpl.updateFromConfig(DefaultConfiguration())
	}
}

// DefaultConfiguration logs warnings and errors to stderr in console format.
// The standard output is left to the command output.
func DefaultConfiguration() GlobalConfig {
	return GlobalConfig{
		DefaultLevel:  WARNING,
		PackageLevels: map[string]LogLevel{},
		Writer:        os.Stderr,
		ConsoleFormat: true,
		TimeLocation:  defaultTimeLocation,
	}
}

// LoadGlobalConfig reads the YAML logger configuration without applying it.
func LoadGlobalConfig(fileName string) (GlobalConfig, error) {
	yamlFile, err := os.ReadFile(filepath.Clean(fileName))
	if err != nil {
		return GlobalConfig{}, fmt.Errorf("failed to read logger config file: %w", err)
	}
	config := &fileConfiguration{}
	if err := yaml.Unmarshal(yamlFile, config); err != nil {
		return GlobalConfig{}, fmt.Errorf("failed to unmarshal logger config: %w", err)
	}

	globalConfig := GlobalConfig{
		DefaultLevel:    LevelFromString(config.DefaultLevel),
		PackageLevels:   make(map[string]LogLevel),
		Writer:          os.Stderr,
		ConsoleFormat:   config.ConsoleFormat,
		ShowCaller:      config.ShowCaller,
		TimeLocation:    config.TimeLocation,
		ShowGoroutineID: config.ShowGoroutineID,
	}
	if config.OutputPath != "" {
		file, err := os.OpenFile(config.OutputPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600) // -rw-------
		if err != nil {
			return GlobalConfig{}, fmt.Errorf("failed to open log file: %w", err)
		}
		globalConfig.Writer = file
	}
	for k, v := range config.PackageLevels {
		globalConfig.PackageLevels[k] = LevelFromString(v)
	}
	return globalConfig, nil
}
