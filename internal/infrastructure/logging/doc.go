// Package logging provides structured logging for loopdb.
//
// This package wraps Go's standard log/slog package so every component
// logs with the same handler, level and default fields.
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("connection opened", "path", path)
//	logger.Error("vacuum failed", "error", err)
//
// Never log bound parameter values; they may carry user data. Log the SQL
// mode and the error instead.
package logging
