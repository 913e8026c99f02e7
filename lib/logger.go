package lib

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/labstack/gommon/log"
	"github.com/rs/zerolog"
	"github.com/ziflex/lecho/v3"
)

// Logger logs to stdout, or to a dated file when logFilePath is set.
func Logger(logFilePath string) *lecho.Logger {
	target := os.Stdout

	// check if a log file config is set
	if logFilePath != "" {
		file, err := GetLoggingFile(logFilePath)
		if err != nil {
			panic(err)
		}
		target = file
	}

	return lecho.From(
		zerolog.New(target).With().Timestamp().Logger(),
		lecho.WithLevel(log.INFO),
	)
}

func GetLoggingFile(path string) (*os.File, error) {
	extension := filepath.Ext(path)
	if extension != "" {
		path = strings.Replace(path, extension, time.Now().Format("-2006-01-02")+extension, 1)
	} else {
		path = path + time.Now().Format("-2006-01-02") + ".log"
	}
	return os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0664)
}
