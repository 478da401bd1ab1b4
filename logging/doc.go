// Package logging provides the minimal Logger interface used across finmesh
// together with adapters for zap (production), slog and a silent NoOpLogger.
//
// Usage:
//
//	logger, err := logging.New(logging.Config{Level: "info", Format: "json"})
//	if err != nil {
//		return err
//	}
//	advisor := finmesh.New(llm, func(o *finmesh.Options) { o.Logger = logger })
//
// Messages are dotted event keys ("tool.call.start") followed by key/value
// pairs, so any structured backend can be plugged in.
package logging
