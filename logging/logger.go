package logging

import (
	"os"

	"github.com/natefinch/lumberjack"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/jobala/rtstore/settings"
)

// New builds a JSON logger at cfg.LogLevel. With FileLogName set, output
// goes to a size-rotated file instead of stderr.
func New(cfg settings.Logger) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "time"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), writer(cfg), level)
	return zap.New(core, zap.AddCaller()), nil
}

func writer(cfg settings.Logger) zapcore.WriteSyncer {
	if cfg.FileLogName == "" {
		return zapcore.Lock(os.Stderr)
	}

	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   cfg.FileLogName,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	})
}
