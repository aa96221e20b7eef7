package main

import (
	"log/slog"
	"os"

	"teaching-workload/internal/app"
	"teaching-workload/internal/logger"
)

func main() {
	level := new(slog.LevelVar)
	slog.SetDefault(slog.New(logger.NewPrettyHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	application, err := app.New(level)
	if err != nil {
		slog.Error("failed to initialize application", "error", err)
		os.Exit(1)
	}

	if err := application.Run(); err != nil {
		slog.Error("application run failed", "error", err)
		os.Exit(1)
	}
}
