package logger

import (
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

var (
	baseOnce sync.Once
	base     *logrus.Logger
)

// New builds the process-wide logger. Local environments get a colored text
// formatter, everything else logs JSON for ingestion by the log pipeline.
func New() *logrus.Logger {
	baseOnce.Do(func() {
		base = logrus.New()

		env := os.Getenv("ENVIRONMENT")
		if env == "" || env == "local" {
			base.SetFormatter(&logrus.TextFormatter{
				FullTimestamp:   true,
				TimestampFormat: time.RFC3339,
			})
		} else {
			base.SetFormatter(&logrus.JSONFormatter{
				TimestampFormat: time.RFC3339Nano,
			})
		}

		base.SetOutput(os.Stdout)

		switch os.Getenv("LOG_LEVEL") {
		case "debug":
			base.SetLevel(logrus.DebugLevel)
		case "warn":
			base.SetLevel(logrus.WarnLevel)
		case "error":
			base.SetLevel(logrus.ErrorLevel)
		default:
			base.SetLevel(logrus.InfoLevel)
		}
	})
	return base
}

// Module returns an entry on the shared logger tagged with the component name.
func Module(name string) *logrus.Entry {
	return New().WithField("module", name)
}
