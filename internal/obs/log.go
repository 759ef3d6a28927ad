package obs

import (
	"encoding/json"
	"log"
	"os"
	"sync"
	"time"
)

// Log output is one JSON object per line on stdout. Request logging and the
// audit trail write through the same sink so a request's lines collate in
// order under any collector.

var (
	loggerOnce sync.Once
	logger     *log.Logger
)

// Logger returns the process-wide line logger. Tests may redirect its output.
func Logger() *log.Logger {
	loggerOnce.Do(func() {
		logger = log.New(os.Stdout, "", 0)
	})
	return logger
}

// LogEntry emits one structured line. ts and level are stamped when the
// caller did not set them, so call sites only carry their own fields.
func LogEntry(entry map[string]any) {
	if entry == nil {
		entry = make(map[string]any, 2)
	}
	if _, ok := entry["ts"]; !ok {
		entry["ts"] = time.Now().UTC().Format(time.RFC3339Nano)
	}
	if _, ok := entry["level"]; !ok {
		entry["level"] = "info"
	}
	data, err := json.Marshal(entry)
	if err != nil {
		Logger().Println(`{"level":"error","msg":"log entry not serializable"}`)
		return
	}
	Logger().Println(string(data))
}
