package logger

// LoggerInstance defines the interface for logging backends.
type LoggerInstance interface {
	Log(message string, keyvals ...any)
	Debug(message string, keyvals ...any)
	Info(message string, keyvals ...any)
	Warn(message string, keyvals ...any)
	Error(message string, keyvals ...any)
	Fatal(message string, keyvals ...any)
}

// Logger fans log calls out to every configured backend.
type Logger struct {
	instances []LoggerInstance
	// keyvals are prepended to every call, see With.
	keyvals []any
}

var singleton *Logger

// Init installs the global logger. Calls made before Init are dropped.
func Init(instances ...LoggerInstance) {
	singleton = &Logger{instances: instances}
}

// With returns a logger that adds keyvals to every message, for example
// the job ID while a worker processes one ingest job. It is safe to call
// before Init; the result then drops everything.
func With(keyvals ...any) *Logger {
	if singleton == nil {
		return &Logger{}
	}
	kv := make([]any, 0, len(singleton.keyvals)+len(keyvals))
	kv = append(kv, singleton.keyvals...)
	kv = append(kv, keyvals...)
	return &Logger{instances: singleton.instances, keyvals: kv}
}

func (l *Logger) each(keyvals []any, fn func(LoggerInstance, []any)) {
	if l == nil {
		return
	}
	if len(l.keyvals) > 0 {
		keyvals = append(append([]any{}, l.keyvals...), keyvals...)
	}
	for _, instance := range l.instances {
		fn(instance, keyvals)
	}
}

func (l *Logger) Log(message string, keyvals ...any) {
	l.each(keyvals, func(i LoggerInstance, kv []any) { i.Log(message, kv...) })
}

func (l *Logger) Debug(message string, keyvals ...any) {
	l.each(keyvals, func(i LoggerInstance, kv []any) { i.Debug(message, kv...) })
}

func (l *Logger) Info(message string, keyvals ...any) {
	l.each(keyvals, func(i LoggerInstance, kv []any) { i.Info(message, kv...) })
}

func (l *Logger) Warn(message string, keyvals ...any) {
	l.each(keyvals, func(i LoggerInstance, kv []any) { i.Warn(message, kv...) })
}

func (l *Logger) Error(message string, keyvals ...any) {
	l.each(keyvals, func(i LoggerInstance, kv []any) { i.Error(message, kv...) })
}

func (l *Logger) Fatal(message string, keyvals ...any) {
	l.each(keyvals, func(i LoggerInstance, kv []any) { i.Fatal(message, kv...) })
}

// Log writes a message at the default level to all backends.
func Log(message string, keyvals ...any) { singleton.Log(message, keyvals...) }

// Debug writes a message at DEBUG level to all backends.
func Debug(message string, keyvals ...any) { singleton.Debug(message, keyvals...) }

// Info writes a message at INFO level to all backends.
func Info(message string, keyvals ...any) { singleton.Info(message, keyvals...) }

// Warn writes a message at WARN level to all backends.
func Warn(message string, keyvals ...any) { singleton.Warn(message, keyvals...) }

// Error writes a message at ERROR level to all backends.
func Error(message string, keyvals ...any) { singleton.Error(message, keyvals...) }

// Fatal writes a message at FATAL level and terminates the program.
func Fatal(message string, keyvals ...any) { singleton.Fatal(message, keyvals...) }
