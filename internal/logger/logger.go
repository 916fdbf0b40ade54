package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the application logger. With debug enabled it logs everything
// with a console encoder; otherwise info and above as JSON.
func New(debug bool) *zap.Logger {
	config := zap.NewProductionConfig()
	if debug {
		config = zap.NewDevelopmentConfig()
	}

	var encoder zapcore.Encoder
	if debug {
		encoder = zapcore.NewConsoleEncoder(config.EncoderConfig)
	} else {
		encoder = zapcore.NewJSONEncoder(config.EncoderConfig)
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(os.Stderr), config.Level)
	return zap.New(core)
}

// NewWithFile builds a logger that tees output to stderr and a JSON log file.
func NewWithFile(debug bool, logFile string) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	if debug {
		config = zap.NewDevelopmentConfig()
	}

	handle, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}

	core := zapcore.NewTee(
		zapcore.NewCore(zapcore.NewConsoleEncoder(config.EncoderConfig), zapcore.AddSync(os.Stderr), config.Level),
		zapcore.NewCore(zapcore.NewJSONEncoder(config.EncoderConfig), zapcore.AddSync(handle), config.Level),
	)

	return zap.New(core), nil
}
