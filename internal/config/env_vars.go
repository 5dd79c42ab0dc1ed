package config

import (
	"os"
	"strings"

	"github.com/jrsteele09/go-auth-client/internal/utils"
)

const (
	appNameVar   = "APP_NAME"
	envVar       = "ENV"
	logLevelVar  = "LOG_LEVEL"
	logFormatVar = "LOG_FORMAT"
)

type EnvVars struct {
	file *File
}

var _ EnvConfig = EnvVars{}

func (e EnvVars) GetAppName() string {
	return GetEnv(appNameVar, utils.FirstNonEmpty(e.file.AppName, "Go Auth Client"))
}

func (e EnvVars) GetEnv() string {
	return strings.ToUpper(GetEnv(envVar, utils.FirstNonEmpty(e.file.Env, "DEV")))
}

func (e EnvVars) GetLogLevel() string {
	def := "info"
	if e.GetEnv() == "DEV" {
		def = "debug"
	}
	return GetEnv(logLevelVar, utils.FirstNonEmpty(e.file.Log.Level, def))
}

// GetLogFormat returns "text" or "json".
func (e EnvVars) GetLogFormat() string {
	return GetEnv(logFormatVar, utils.FirstNonEmpty(e.file.Log.Format, "text"))
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}
