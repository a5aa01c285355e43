package logger

import (
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
)

const (
	envLocal    = "local"
	envDev      = "dev"
	envProd     = "prod"
	logFileName = "giftbot.log"
)

type envSetting struct {
	level  slog.Level
	toFile bool
}

var envSettings = map[string]envSetting{
	envLocal: {level: slog.LevelDebug},
	envDev:   {level: slog.LevelDebug, toFile: true},
	envProd:  {level: slog.LevelInfo, toFile: true},
}

// SetupLogger builds the base logger: text on stdout for local runs, appended
// to giftbot.log in logDir otherwise. The returned func closes the log file.
func SetupLogger(env, logDir string) (*slog.Logger, func()) {
	setting, ok := envSettings[env]
	if !ok {
		log.Fatal("invalid environment: ", env)
	}

	var out io.Writer = os.Stdout
	closer := func() {}
	if setting.toFile {
		logPath := filepath.Join(logDir, logFileName)
		logFile, err := os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
		if err != nil {
			log.Fatal("error opening log file: ", err)
		}
		log.Printf("env: %s; log file: %s", env, logPath)
		out = logFile
		closer = func() { _ = logFile.Close() }
	}

	logger := slog.New(
		slog.NewTextHandler(out, &slog.HandlerOptions{Level: setting.level}),
	)
	return logger, closer
}
