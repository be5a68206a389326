package logging

import (
	"strings"

	"github.com/sirupsen/logrus"
)

// Init 根据配置或环境变量初始化日志级别
// level 字符串支持：DEBUG / INFO / WARN / ERROR（不区分大小写），默认 INFO。
func Init(level string) {
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		logrus.SetLevel(logrus.DebugLevel)
	case "WARN":
		logrus.SetLevel(logrus.WarnLevel)
	case "ERROR":
		logrus.SetLevel(logrus.ErrorLevel)
	default:
		logrus.SetLevel(logrus.InfoLevel)
	}
}

func Debugf(format string, args ...any) {
	logrus.Debugf(format, args...)
}

func Infof(format string, args ...any) {
	logrus.Infof(format, args...)
}

func Warnf(format string, args ...any) {
	logrus.Warnf(format, args...)
}

func Errorf(format string, args ...any) {
	logrus.Errorf(format, args...)
}
