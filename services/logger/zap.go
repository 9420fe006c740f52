package logsvc

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/trezcool/maendeleo/core"
)

// ZapLogger is the local/dev implementation of core.Logger: structured
// console output, no external reporting.
type ZapLogger struct {
	log     *zap.SugaredLogger
	enabled bool
}

var _ core.Logger = (*ZapLogger)(nil)

func NewZapLogger(conf *core.Config) (*ZapLogger, error) {
	cfg := zap.NewProductionConfig()
	if conf.Debug {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cfg.DisableStacktrace = !conf.Debug

	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return &ZapLogger{log: logger.Sugar(), enabled: true}, nil
}

func (l *ZapLogger) Enable(enabled bool) { l.enabled = enabled }

func (l *ZapLogger) Debug(msg string, args ...interface{}) {
	if l.enabled {
		l.log.Debugw(msg, l.fields(args)...)
	}
}

func (l *ZapLogger) Info(msg string, args ...interface{}) {
	if l.enabled {
		l.log.Infow(msg, l.fields(args)...)
	}
}

func (l *ZapLogger) Warn(msg string, args ...interface{}) {
	if l.enabled {
		l.log.Warnw(msg, l.fields(args)...)
	}
}

func (l *ZapLogger) Error(msg string, args ...interface{}) {
	if l.enabled {
		l.log.Errorw(msg, l.fields(args)...)
	}
}

func (l *ZapLogger) Fatal(msg string, args ...interface{}) {
	l.log.Fatalw(msg, l.fields(args)...)
}

func (l *ZapLogger) Sync() error { return l.log.Sync() }

func (l *ZapLogger) fields(args []interface{}) []interface{} {
	fields := make([]interface{}, 0, 2*len(args))
	for _, arg := range args {
		switch v := arg.(type) {
		case error:
			fields = append(fields, "error", v)
		case map[string]interface{}:
			for k, val := range v {
				fields = append(fields, k, val)
			}
		default:
			fields = append(fields, zap.Any("arg", v))
		}
	}
	return fields
}
