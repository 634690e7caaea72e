package logger

import (
	"os"
	"strings"

	"github.com/cyphera/cyphera-wallet/internal/constants"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Log is the process-wide logger. It discards everything until InitLogger runs.
	Log = zap.NewNop()

	level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

// LoggerConfig selects the encoder and threshold of the process logger.
type LoggerConfig struct {
	Level       string `json:"level"`
	Stage       string `json:"stage"`
	EnableJSON  bool   `json:"enable_json"`
	EnableColor bool   `json:"enable_color"`
}

// InitLogger builds the process logger for stage. Production emits JSON,
// every other stage a colored console format. LOG_LEVEL sets the threshold.
func InitLogger(stage string) {
	lvl := os.Getenv("LOG_LEVEL")
	if lvl == "" {
		lvl = constants.InfoLevel
	}
	prod := stage == constants.ProdEnvironment
	InitLoggerWithConfig(LoggerConfig{
		Level:       lvl,
		Stage:       stage,
		EnableJSON:  prod,
		EnableColor: !prod,
	})
}

// InitLoggerWithConfig replaces Log. It panics if zap rejects the configuration.
func InitLoggerWithConfig(cfg LoggerConfig) {
	level.SetLevel(ParseLevel(cfg.Level))

	var zc zap.Config
	if cfg.EnableJSON || cfg.Stage == constants.ProdEnvironment {
		zc = jsonConfig(cfg.Stage)
	} else {
		zc = consoleConfig(cfg.EnableColor)
	}
	zc.Level = level
	zc.DisableStacktrace = cfg.Stage == constants.ProdEnvironment && level.Level() > zapcore.DebugLevel

	built, err := zc.Build()
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	Log = built
}

func jsonConfig(stage string) zap.Config {
	zc := zap.NewProductionConfig()
	enc := &zc.EncoderConfig
	enc.TimeKey = "timestamp"
	enc.MessageKey = "message"
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	zc.InitialFields = map[string]any{
		"service": constants.ServiceName,
		"stage":   stage,
	}
	return zc
}

func consoleConfig(color bool) zap.Config {
	zc := zap.NewDevelopmentConfig()
	enc := &zc.EncoderConfig
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	enc.EncodeCaller = zapcore.ShortCallerEncoder
	enc.EncodeLevel = zapcore.CapitalLevelEncoder
	if color {
		enc.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	return zc
}

// SetLevel changes the threshold of the running logger without rebuilding it.
func SetLevel(l string) {
	level.SetLevel(ParseLevel(l))
}

// ParseLevel maps a textual level to a zap level, defaulting to info.
func ParseLevel(l string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(l)) {
	case constants.DebugLevel:
		return zapcore.DebugLevel
	case constants.WarnLevel, "warning":
		return zapcore.WarnLevel
	case constants.ErrorLevel:
		return zapcore.ErrorLevel
	case "fatal":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// Named returns a child of the global logger tagged with a component name.
func Named(component string) *zap.Logger {
	return Log.With(zap.String("component", component))
}

// OrGlobal returns l when set, otherwise a component child of the global logger.
func OrGlobal(l *zap.Logger, component string) *zap.Logger {
	if l != nil {
		return l
	}
	return Named(component)
}

func Info(msg string, fields ...zapcore.Field) {
	Log.Info(msg, fields...)
}

func Error(msg string, fields ...zapcore.Field) {
	Log.Error(msg, fields...)
}

func Debug(msg string, fields ...zapcore.Field) {
	Log.Debug(msg, fields...)
}

func Warn(msg string, fields ...zapcore.Field) {
	Log.Warn(msg, fields...)
}

// Fatal logs at FatalLevel and exits the process.
func Fatal(msg string, fields ...zapcore.Field) {
	Log.Fatal(msg, fields...)
}

func With(fields ...zapcore.Field) *zap.Logger {
	return Log.With(fields...)
}

// Sync flushes buffered entries.
func Sync() error {
	return Log.Sync()
}
