package logging

import (
	"fmt"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
	"os"
	"path/filepath"
	"port-scanner/config/constant"
	"strings"
	"time"
)

var logger zap.Logger
var sugarLogger zap.SugaredLogger

// Until InitLogger runs everything goes to a no-op core, so packages can
// grab the pointer at init time and tests stay quiet.
func init() {
	l := zap.NewNop()
	logger = *l
	sugarLogger = *l.Sugar()
}

func GetLogger() *zap.Logger {
	return &logger
}

func GetSugar() *zap.SugaredLogger {
	return &sugarLogger
}

// LogFileName builds the per-run log file name, e.g.
// port_scan_192_168_1_0_24_20240101_120000.log
func LogFileName(target string, t time.Time) string {
	replacer := strings.NewReplacer(".", "_", "/", "_", ":", "_", ",", "_", " ", "")
	return fmt.Sprintf("%s_%s_%s.log", constant.LogFilePrefix, replacer.Replace(target), t.Format("20060102_150405"))
}

// InitLogger writes to stdout and to a rotating file under logDir.
// It returns the full path of the log file.
func InitLogger(debug bool, logDir string, fileName string) string {
	if logDir == "" {
		logDir = "."
	}
	if err := os.MkdirAll(logDir, os.ModePerm); err != nil {
		// fall back to the working directory
		logDir = "."
	}
	logPath := filepath.Join(logDir, fileName)

	lumberjackLogger := &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    10,
		MaxBackups: 5,
		MaxAge:     28,
		Compress:   false,
	}

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:          "time",
		LevelKey:         "level",
		NameKey:          "name",
		CallerKey:        "caller",
		FunctionKey:      "function",
		MessageKey:       "message",
		StacktraceKey:    zapcore.OmitKey,
		ConsoleSeparator: "|",
		LineEnding:       zapcore.DefaultLineEnding,
		EncodeLevel:      zapcore.CapitalLevelEncoder,
		EncodeTime: func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
			enc.AppendString(t.Format(time.RFC3339Nano))
		},
		EncodeName:     zapcore.FullNameEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	level := zapcore.InfoLevel
	consoleConfig := encoderConfig
	if debug {
		level = zapcore.DebugLevel
		consoleConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		consoleConfig.ConsoleSeparator = " "
	}

	// color codes only go to the terminal, never into the file
	core := zapcore.NewTee(
		zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), zapcore.AddSync(lumberjackLogger), level),
		zapcore.NewCore(zapcore.NewConsoleEncoder(consoleConfig), zapcore.AddSync(os.Stdout), level),
	)

	l := zap.New(core, zap.AddCaller()).Named("PortScanner")

	logger = *l
	sugarLogger = *l.Sugar()

	return logPath
}

// Sync flushes buffered entries; errors from syncing stdout are ignored.
func Sync() {
	_ = logger.Sync()
}
