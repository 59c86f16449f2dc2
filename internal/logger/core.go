package logger

import (
	"go.uber.org/zap/zapcore"
)

// DBCore wraps a zapcore.Core and forwards every entry to a DBLogWriter
type DBCore struct {
	zapcore.Core
	writer *DBLogWriter
}

func NewDBCore(baseCore zapcore.Core, writer *DBLogWriter) zapcore.Core {
	return &DBCore{
		Core:   baseCore,
		writer: writer,
	}
}

func (c *DBCore) With(fields []zapcore.Field) zapcore.Core {
	return &DBCore{
		Core:   c.Core.With(fields),
		writer: c.writer,
	}
}

// Write is called for every log entry
func (c *DBCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	var ip, userID, requestPath string
	for _, f := range fields {
		switch f.Key {
		case "ip":
			ip = f.String
		case "user_id":
			userID = f.String
		case "path":
			requestPath = f.String
		}
	}

	c.writer.AddLog(LogEntry{
		Level:     entry.Level,
		Message:   entry.Message,
		IpAddress: ip,
		UserID:    userID,
		Path:      requestPath,
		Caller:    entry.Caller.Function,
	})

	return c.Core.Write(entry, fields)
}

// Check decides if we should log this level
func (c *DBCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}
