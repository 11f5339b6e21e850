// Package telemetry builds the *zap.Logger instances cmd/tci hands to the
// kernel, grounded on caddyserver-caddy's Logging.Logger/zap.New bootstrap:
// New always uses a console encoder on stderr, at debug level when verbose
// and warn level otherwise; Nop silences logging entirely.
package telemetry

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a logger for normal CLI operation: verbose turns on debug-level
// console output (useful while tracing scheduler rotation/ecall dispatch),
// otherwise only warnings and above reach the console.
func New(verbose bool) *zap.Logger {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder := zapcore.NewConsoleEncoder(cfg)

	level := zapcore.WarnLevel
	if verbose {
		level = zapcore.DebugLevel
	}

	core := zapcore.NewCore(encoder, zapcore.Lock(zapcore.AddSync(os.Stderr)), level)
	return zap.New(core)
}

// Nop returns a logger that discards everything, for embedders (like
// cmd/tci's hostmsg-driven serve mode) that report diagnostics over their
// own channel instead of the process's stderr.
func Nop() *zap.Logger { return zap.NewNop() }
