package logger

import (
	"context"
	"fmt"
	"time"

	"go-kpi/internal/database"

	"go.uber.org/zap/zapcore"
)

// LogEntry holds the data passed from Zap to the worker
type LogEntry struct {
	Level     zapcore.Level
	Message   string
	IpAddress string
	UserID    string
	Path      string
	Caller    string
}

// LogRecord is the persisted shape of a log entry
type LogRecord struct {
	AppID      string    `bson:"app_id"`
	Message    string    `bson:"message"`
	IpAddress  string    `bson:"ip_address,omitempty"`
	UserID     string    `bson:"user_id,omitempty"`
	Path       string    `bson:"path,omitempty"`
	Caller     string    `bson:"caller,omitempty"`
	LogLevelId int       `bson:"log_level_id"`
	CreatedAt  time.Time `bson:"created_at"`
}

// LogSink persists a single record
type LogSink interface {
	Insert(ctx context.Context, record LogRecord) error
}

type mongoLogSink struct {
	db *database.MongodbDB
}

func NewMongoLogSink(db *database.MongodbDB) LogSink {
	return &mongoLogSink{db: db}
}

func (s *mongoLogSink) Insert(ctx context.Context, record LogRecord) error {
	_, err := s.db.DB.Collection("logs").InsertOne(ctx, record)
	return err
}

// DBLogWriter handles the async writing
type DBLogWriter struct {
	sink    LogSink
	logChan chan LogEntry
	appId   string
}

// NewDBLogWriter starts the background worker immediately
func NewDBLogWriter(sink LogSink, appId string) *DBLogWriter {
	writer := &DBLogWriter{
		sink:    sink,
		logChan: make(chan LogEntry, 1000),
		appId:   appId,
	}

	go writer.processLogs()

	return writer
}

// AddLog never blocks the caller; entries are dropped when the buffer is full
func (w *DBLogWriter) AddLog(entry LogEntry) {
	select {
	case w.logChan <- entry:
	default:
		fmt.Println("DB Log Channel Full! Dropping log:", entry.Message)
	}
}

func (w *DBLogWriter) processLogs() {
	for entry := range w.logChan {
		record := LogRecord{
			AppID:      w.appId,
			Message:    entry.Message,
			IpAddress:  entry.IpAddress,
			UserID:     entry.UserID,
			Path:       entry.Path,
			Caller:     entry.Caller,
			LogLevelId: mapLevelToInt(entry.Level),
			CreatedAt:  time.Now().UTC(),
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = w.sink.Insert(ctx, record)
		cancel()
	}
}

func mapLevelToInt(l zapcore.Level) int {
	switch l {
	case zapcore.DebugLevel:
		return 10
	case zapcore.InfoLevel:
		return 20
	case zapcore.WarnLevel:
		return 30
	case zapcore.ErrorLevel:
		return 40
	case zapcore.FatalLevel:
		return 50
	default:
		return 20
	}
}
