package logger

import (
	"bytes"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type (
	ContextLogger struct {
		zeroLogger      *zerolog.Logger
		level           LogLevel
		context         Context
		fields          Context
		showGoroutineID bool
	}

	Context map[string]interface{}

	// A hook that adds goroutine ID to the log event
	goRoutineIDHook struct{}
)

// newContextLogger creates the logger, but doesn't initialize it yet so
// that loggers could be created in var phase, before the configuration is loaded.
func newContextLogger(level LogLevel, context Context, showGoroutineID bool) *ContextLogger {
	return &ContextLogger{
		level:           level,
		context:         context,
		showGoroutineID: showGoroutineID,
	}
}

func (c *ContextLogger) init() {
	InitializeGlobalLogger()
	c.update(c.level, c.context, c.showGoroutineID)
}

func (c *ContextLogger) update(level LogLevel, context Context, showGoroutineID bool) {
	c.level = level
	c.context = context
	c.showGoroutineID = showGoroutineID

	zeroLogger := log.Level(toZeroLevel(level))
	for key, value := range context {
		zeroLogger = zeroLogger.With().Interface(key, value).Logger()
	}
	for key, value := range c.fields {
		zeroLogger = zeroLogger.With().Interface(key, value).Logger()
	}
	if showGoroutineID {
		zeroLogger = zeroLogger.Hook(goRoutineIDHook{})
	}
	c.zeroLogger = &zeroLogger
}

func (c *ContextLogger) Trace(format string, args ...interface{}) {
	c.logMessage(c.logger().Trace(), format, args)
}

func (c *ContextLogger) Debug(format string, args ...interface{}) {
	c.logMessage(c.logger().Debug(), format, args)
}

func (c *ContextLogger) Info(format string, args ...interface{}) {
	c.logMessage(c.logger().Info(), format, args)
}

func (c *ContextLogger) Warning(format string, args ...interface{}) {
	c.logMessage(c.logger().Warn(), format, args)
}

func (c *ContextLogger) Error(format string, args ...interface{}) {
	c.logMessage(c.logger().Error(), format, args)
}

// With returns a child logger, the field is not added to the parent. The
// child does not follow later configuration changes.
func (c *ContextLogger) With(key string, value interface{}) Logger {
	fields := make(Context, len(c.fields)+1)
	for k, v := range c.fields {
		fields[k] = v
	}
	fields[key] = value
	child := &ContextLogger{fields: fields}
	child.update(c.level, c.context, c.showGoroutineID)
	return child
}

func (c *ContextLogger) logger() *zerolog.Logger {
	if c.zeroLogger == nil {
		c.init()
	}
	return c.zeroLogger
}

func (c *ContextLogger) logMessage(event *zerolog.Event, format string, args []interface{}) {
	if len(args) == 0 {
		event.Msg(format)
	} else {
		event.Msgf(format, args...)
	}
}

func (h goRoutineIDHook) Run(e *zerolog.Event, level zerolog.Level, msg string) {
	e.Uint64("GoID", goroutineID())
}

func toZeroLevel(lvl LogLevel) zerolog.Level {
	switch lvl {
	case NONE:
		return zerolog.Disabled
	case TRACE:
		return zerolog.TraceLevel
	case DEBUG:
		return zerolog.DebugLevel
	case INFO:
		return zerolog.InfoLevel
	case WARNING:
		return zerolog.WarnLevel
	case ERROR:
		return zerolog.ErrorLevel
	default:
		panic(fmt.Sprintf("unknown level: %d", lvl))
	}
}

// goroutineID parses the id from the stack trace header.
func goroutineID() uint64 {
	b := make([]byte, 64)
	b = b[:runtime.Stack(b, false)]
	b = bytes.TrimPrefix(b, []byte("goroutine "))
	b = b[:bytes.IndexByte(b, ' ')]
	n, _ := strconv.ParseUint(string(b), 10, 64)
	return n
}

// Returns caller with last two directories.
func consoleFormatCallerLastTwoDirs(i interface{}) string {
	var c string
	if cc, ok := i.(string); ok {
		c = cc
	}
	if len(c) > 0 {
		split := strings.Split(c, string(os.PathSeparator))
		l := len(split)
		if l > 2 {
			c = fmt.Sprintf("%s/%s/%s", split[l-3], split[l-2], split[l-1])
		} else if l > 1 {
			c = fmt.Sprintf("%s/%s", split[l-2], split[l-1])
		}
	}
	return c
}
