package utils

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger представляет логгер сервиса и ETL-процесса
type Logger struct {
	sugar     *zap.SugaredLogger
	isVerbose bool
}

// NewLogger создает новый экземпляр логгера.
// Если logFile не пустой, записи дублируются в файл.
func NewLogger(verbose bool, logFile string) (*Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.Sampling = nil
	cfg.OutputPaths = []string{"stdout"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	if logFile != "" {
		cfg.OutputPaths = append(cfg.OutputPaths, logFile)
	}

	// Debug выводится только в подробном режиме
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}

	base, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, fmt.Errorf("не удалось создать логгер: %w", err)
	}

	return &Logger{
		sugar:     base.Sugar(),
		isVerbose: verbose,
	}, nil
}

// NewNopLogger возвращает логгер, который ничего не пишет
func NewNopLogger() *Logger {
	return &Logger{sugar: zap.NewNop().Sugar()}
}

// Info логирует информационное сообщение
func (l *Logger) Info(format string, v ...interface{}) {
	l.sugar.Infof(format, v...)
}

// Warn логирует предупреждение
func (l *Logger) Warn(format string, v ...interface{}) {
	l.sugar.Warnf(format, v...)
}

// Error логирует сообщение об ошибке
func (l *Logger) Error(format string, v ...interface{}) {
	l.sugar.Errorf(format, v...)
}

// Debug логирует отладочное сообщение (только если включен verbose режим)
func (l *Logger) Debug(format string, v ...interface{}) {
	if !l.isVerbose {
		return
	}
	l.sugar.Debugf(format, v...)
}

// Sync сбрасывает буферы логгера
func (l *Logger) Sync() {
	_ = l.sugar.Sync()
}

// LogStageStart логирует начало стадии конвейера
func (l *Logger) LogStageStart(stage string) {
	l.Info("Начало стадии %s", stage)
}

// LogStageComplete логирует завершение стадии конвейера
func (l *Logger) LogStageComplete(stage string, rows int, duration time.Duration) {
	l.Info("Стадия %s завершена. Записей: %d. Длительность: %v", stage, rows, duration)
}
