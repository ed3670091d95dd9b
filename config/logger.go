package config

import (
	"github.com/sirupsen/logrus"
)

const (
	fieldSeverity  = "severity"
	fieldMessage   = "message"
	fieldTimestamp = "timestamp"
)

// InitLogger configures the global logrus logger.
func InitLogger(cfg *Config) {
	if cfg.LogFormat == "text" {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logrus.SetFormatter(&logrus.JSONFormatter{
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  fieldTimestamp,
				logrus.FieldKeyLevel: fieldSeverity,
				logrus.FieldKeyMsg:   fieldMessage,
			},
		})
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logrus.WithError(err).Warn("invalid LOG_LEVEL, falling back to info")
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
}
