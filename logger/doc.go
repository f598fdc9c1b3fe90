// Package logger provides structured logging on top of zerolog.
//
// Loggers are scoped per component and carry structured fields passed as
// maps, usually built with Fields:
//
//	log := logger.Get("pipeline")
//	log.Info("stage completed", logger.Fields("job_id", id, "stage", "transcribing"))
package logger
