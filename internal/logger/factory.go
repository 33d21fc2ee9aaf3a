package logger

import (
	"regexp"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type (
	globalFactory struct {
		sync.Mutex
		config                  GlobalConfig
		loggers                 map[string]*ContextLogger
		context                 Context
		consoleTimeFormat       string
		callerSkipFrames        int // how many frames to skip to get real caller
		packageNameResolver     *PackageNameResolver
		nonAlphaNumericRegex    *regexp.Regexp
		globalLoggerInitialized bool
	}

	PackageNameResolver struct {
		BasePackage string
		Depth       int
	}
)

// Singleton for managing application wide logging.
var globalFactoryImpl *globalFactory

func init() {
	globalFactoryImpl = &globalFactory{
		loggers:              make(map[string]*ContextLogger),
		context:              make(Context),
		consoleTimeFormat:    "15:04:05.000",
		callerSkipFrames:     4,
		packageNameResolver:  &PackageNameResolver{BasePackage: "alphabill-org/payment-splitter"},
		nonAlphaNumericRegex: regexp.MustCompile(`[^a-zA-Z0-9]`),
	}
}

func (gf *globalFactory) setContext(key string, value interface{}) {
	gf.Lock()
	defer gf.Unlock()

	gf.context[key] = value
	gf.updateAllLoggers()
}

func (gf *globalFactory) updateFromConfig(config GlobalConfig) {
	newWriter := config.Writer != nil && config.Writer != gf.config.Writer
	updateOutputFormat := newWriter ||
		gf.config.ConsoleFormat != config.ConsoleFormat ||
		gf.config.ShowCaller != config.ShowCaller

	if newWriter {
		gf.config.Writer = config.Writer
	}
	gf.config.DefaultLevel = config.DefaultLevel
	gf.config.PackageLevels = config.PackageLevels
	gf.config.ConsoleFormat = config.ConsoleFormat
	gf.config.ShowCaller = config.ShowCaller
	gf.config.ShowGoroutineID = config.ShowGoroutineID

	if updateOutputFormat {
		gf.updateOutputFormat()
	}
	if config.TimeLocation != "" {
		gf.updateTimeLocation(config.TimeLocation)
	}
	gf.updateAllLoggers()
}

func (gf *globalFactory) updateTimeLocation(location string) {
	loc, err := time.LoadLocation(location)
	if err != nil {
		loc = time.Local
	}
	zerolog.TimestampFunc = func() time.Time {
		return time.Now().In(loc)
	}
}

// updateOutputFormat replaces the zerolog global logger. Unlike a long
// running node the CLI may reconfigure the output after the first message,
// e.g. once the logger config file has been read.
func (gf *globalFactory) updateOutputFormat() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	var newGlobalLogger zerolog.Logger
	if gf.config.ConsoleFormat {
		newGlobalLogger = zerolog.New(zerolog.ConsoleWriter{
			Out:          gf.config.Writer,
			TimeFormat:   gf.consoleTimeFormat,
			FormatCaller: consoleFormatCallerLastTwoDirs,
		}).With().Timestamp().Logger()
	} else {
		newGlobalLogger = zerolog.New(gf.config.Writer).With().Timestamp().Logger()
	}
	if gf.config.ShowCaller {
		newGlobalLogger = newGlobalLogger.With().CallerWithSkipFrameCount(gf.callerSkipFrames).Logger()
	}
	log.Logger = newGlobalLogger
	gf.globalLoggerInitialized = true
}

func (gf *globalFactory) updateAllLoggers() {
	for name, logger := range gf.loggers {
		logger.update(gf.loggerLevel(name), gf.context, gf.config.ShowGoroutineID)
	}
}

func (gf *globalFactory) create(name string) Logger {
	gf.Lock()
	defer gf.Unlock()

	normName := gf.normalizeName(name)
	if logger, ok := gf.loggers[normName]; ok {
		return logger
	}
	// log levels can be configured per logger name, loggers are expected
	// to be named after their package
	cl := newContextLogger(gf.loggerLevel(normName), gf.context, gf.config.ShowGoroutineID)
	gf.loggers[normName] = cl
	return cl
}

func (gf *globalFactory) normalizeName(name string) string {
	return gf.nonAlphaNumericRegex.ReplaceAllString(name, "_")
}

func (gf *globalFactory) loggerLevel(loggerName string) LogLevel {
	if level, ok := gf.config.PackageLevels[loggerName]; ok {
		return level
	}
	return gf.config.DefaultLevel
}

// PackageName returns the name of the caller's package relative to the
// base package, e.g. "pkg/splitter".
func (r *PackageNameResolver) PackageName() string {
	pc, _, _, _ := runtime.Caller(r.depth())
	pcName := runtime.FuncForPC(pc).Name()
	split1 := strings.SplitN(pcName, r.BasePackage, 2)
	var packageAfterBase string
	if len(split1) < 2 {
		packageAfterBase = split1[0]
	} else {
		split2 := strings.SplitN(split1[1], ".", 2)
		packageAfterBase = split2[0]
	}
	return strings.Trim(packageAfterBase, "/")
}

func (r *PackageNameResolver) depth() int {
	// 2 because it's used from inside logging code. We want the caller of that.
	if r.Depth == 0 {
		return 2
	}
	return r.Depth
}
