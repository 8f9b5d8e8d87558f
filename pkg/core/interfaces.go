package core

// Logger interface for engine, mapper and pipeline logging
type Logger interface {
	Printf(format string, args ...interface{})
}
