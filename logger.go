package scriptbridge

import (
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/scriptbridge/action"
	"github.com/wippyai/scriptbridge/control"
	"github.com/wippyai/scriptbridge/handle"
	"github.com/wippyai/scriptbridge/internal/savegame"
	"github.com/wippyai/scriptbridge/script"
	"github.com/wippyai/scriptbridge/slots"
)

var (
	logger     *zap.Logger
	loggerOnce sync.Once
)

// Logger returns the bridge's logger instance.
// It uses a no-op logger by default.
func Logger() *zap.Logger {
	loggerOnce.Do(func() {
		if logger == nil {
			logger = zap.NewNop()
		}
	})
	return logger
}

// SetLogger installs l in the bridge and every package it drives.
// This must be called before creating a Bridge.
func SetLogger(l *zap.Logger) {
	logger = l
	handle.SetLogger(l.Named("handle"))
	control.SetLogger(l.Named("control"))
	action.SetLogger(l.Named("action"))
	slots.SetLogger(l.Named("slots"))
	script.SetLogger(l.Named("script"))
	savegame.SetLogger(l.Named("savegame"))
}
