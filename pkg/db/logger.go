package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/utils"
)

// Queries slower than this are logged at Warn regardless of level. The rule
// tables this engine reads are small; anything past 200ms means a missing
// index or an unexpectedly large segment refresh.
const slowQueryThreshold = 200 * time.Millisecond

// ZapGormLogger adapts gorm's logger.Interface onto zap. SQL text is echoed
// only at Info level, which pkg/db enables outside production.
type ZapGormLogger struct {
	zap      *zap.Logger
	level    logger.LogLevel
	slowover time.Duration
}

func NewZapGormLogger(z *zap.Logger, level logger.LogLevel) *ZapGormLogger {
	return &ZapGormLogger{
		zap:      z,
		level:    level,
		slowover: slowQueryThreshold,
	}
}

func (l *ZapGormLogger) LogMode(level logger.LogLevel) logger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

func (l *ZapGormLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.level >= logger.Info {
		l.zap.Info(fmt.Sprintf(msg, data...))
	}
}

func (l *ZapGormLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.level >= logger.Warn {
		l.zap.Warn(fmt.Sprintf(msg, data...))
	}
}

func (l *ZapGormLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.level >= logger.Error {
		l.zap.Error(fmt.Sprintf(msg, data...))
	}
}

func (l *ZapGormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= logger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()
	fields := []zap.Field{
		zap.String("file", utils.FileWithLineNum()),
		zap.String("sql", sql),
		zap.Int64("rows", rows),
		zap.Duration("took", elapsed),
	}

	switch {
	case err != nil && !errors.Is(err, logger.ErrRecordNotFound):
		l.zap.Error("gorm.query", append(fields, zap.Error(err))...)
	case l.slowover > 0 && elapsed > l.slowover:
		l.zap.Warn("gorm.slow_query", append(fields, zap.Duration("threshold", l.slowover))...)
	case l.level >= logger.Info:
		l.zap.Info("gorm.query", fields...)
	}
}
