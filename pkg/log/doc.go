/*
Package log provides structured logging for Skiff using zerolog.

The log package wraps the zerolog library to provide JSON-structured process
logging with component-specific child loggers, configurable levels, and
helpers for common patterns. It is the logging used by Skiff's own code;
workload log capture and rotation lives in pkg/logstore.

Initialize once at startup:

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})

then derive scoped loggers:

	logger := log.WithComponent("rotator")
	logger.Warn().Err(err).Msg("segment prune failed")
*/
package log
