package global

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type (
	Logging interface {
		Log() *zap.SugaredLogger
	}

	Metrics interface {
		MetricsRegistry() *prometheus.Registry
	}

	// Global is the process-wide environment: logger, shutdown context and
	// the wait group of started components
	Global struct {
		*zap.SugaredLogger
		*sync.WaitGroup
		ctx             context.Context
		stopFun         context.CancelFunc
		once            *sync.Once
		metricsRegistry *prometheus.Registry
	}
)

func New(logLevel ...zapcore.Level) *Global {
	lvl := zapcore.InfoLevel
	if len(logLevel) > 0 {
		lvl = logLevel[0]
	}
	ctx, cancelFun := context.WithCancel(context.Background())
	return &Global{
		ctx:             ctx,
		stopFun:         cancelFun,
		SugaredLogger:   NewLogger("", lvl, nil, ""),
		WaitGroup:       &sync.WaitGroup{},
		once:            &sync.Once{},
		metricsRegistry: prometheus.NewRegistry(),
	}
}

func (l *Global) MetricsRegistry() *prometheus.Registry {
	return l.metricsRegistry
}

func (l *Global) MarkStartedComponent() {
	l.WaitGroup.Add(1)
}

func (l *Global) MarkStoppedComponent() {
	l.WaitGroup.Done()
}

func (l *Global) Stop() {
	l.stopFun()
}

func (l *Global) Ctx() context.Context {
	return l.ctx
}

func (l *Global) Wait() {
	l.WaitGroup.Wait()
	l.once.Do(func() {
		l.Log().Info("all components stopped")
	})
}

func (l *Global) Log() *zap.SugaredLogger {
	return l.SugaredLogger
}

type SubLogger struct {
	Logging
}

func MakeSubLogger(l Logging, name string) Logging {
	return SubLogger{&Global{SugaredLogger: l.Log().Named(name)}}
}
