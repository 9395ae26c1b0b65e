// Package log provides structured logging for the scheduler runtime using
// zerolog. It wraps a global Logger configured once via Init, plus a set of
// WithX helpers that return component-scoped child loggers.
//
// # Usage
//
//	log.Init(log.Config{
//		Level:      log.InfoLevel,
//		JSONOutput: true,
//		Output:     os.Stdout,
//	})
//
//	logger := log.WithComponent("syncloop")
//	logger.Info().Int64("job_exe_id", 42).Msg("execution timed out")
//
// Console output (JSONOutput: false) is the default, both for a zero Config
// and for cmd/scheduler's --log-json flag; JSON output (JSONOutput: true,
// or --log-json) writes one JSON object per line, which can be shipped to
// an external index.
package log
