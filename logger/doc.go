// Package logger wraps zerolog with map-based structured fields, component
// tagging and optional rotating file output.
//
//	log := logger.WithComponent("pipeline")
//	log.Info("stage finished", logger.Fields("stage", "diarization", "segments", 4))
package logger
