package observability

import (
	"os"

	"github.com/sirupsen/logrus"
)

// NewLogger returns a JSON logger tagged with the process name. Unknown levels fall back to info.
func NewLogger(service, level string) logrus.FieldLogger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	logger.SetFormatter(&logrus.JSONFormatter{})

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	logger.SetLevel(parsed)
	return logger.WithField("service", service)
}
