package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/csheth/rulebook/internal/config"
	"github.com/csheth/rulebook/internal/gateway"
	"github.com/csheth/rulebook/internal/logging"
	"github.com/csheth/rulebook/internal/session"
	"github.com/csheth/rulebook/internal/tui"
)

func main() {
	configPath := flag.String("config", "", "path to a TOML config file (default ~/.config/rulebook/config.toml)")
	apiURL := flag.String("api", "", "backend base URL (default http://localhost:8000)")
	username := flag.String("username", "", "prefill the login username")
	pdfPath := flag.String("pdf", "", "prefill the PDF document path")
	jsonPath := flag.String("json", "", "prefill the JSON seed path")
	transcriptPath := flag.String("transcript", "", "where ctrl+s writes the question history")
	logFile := flag.String("log-file", "", "write logs to this file")
	debug := flag.Bool("debug", false, "enable debug logging")
	noAltScreen := flag.Bool("no-alt-screen", false, "disable the alternate screen buffer")
	flag.Parse()

	opts := config.DefaultOptions()
	opts.ConfigFile = *configPath
	cfg, err := config.Load(opts)
	if err != nil {
		fmt.Println("failed to load config:", err)
		os.Exit(1)
	}
	if *apiURL != "" {
		cfg.API.BaseURL = *apiURL
	}
	if *username != "" {
		cfg.Auth.Username = *username
	}
	if *transcriptPath != "" {
		cfg.Transcript.Path = *transcriptPath
	}
	if *logFile != "" {
		cfg.Log.File = *logFile
	}
	if *debug {
		cfg.Log.Debug = true
	}
	if *noAltScreen {
		cfg.UI.AltScreen = false
	}
	if err := cfg.Validate(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	logger, err := logging.New(logging.Options{File: cfg.Log.File, Debug: cfg.Log.Debug, Service: "rulebook"})
	if err != nil {
		fmt.Println("failed to open log file:", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("starting", zap.String("api", cfg.API.BaseURL), zap.Duration("timeout", cfg.API.Timeout))

	client := gateway.New(gateway.Config{
		BaseURL:    cfg.API.BaseURL,
		HTTPClient: &http.Client{Timeout: cfg.API.Timeout},
		Logger:     logger,
	})
	orch := session.New(client, session.WithLogger(logger))

	programOpts := []tea.ProgramOption{}
	if cfg.UI.AltScreen {
		programOpts = append(programOpts, tea.WithAltScreen())
	}
	program := tea.NewProgram(
		tui.New(tui.Config{
			Session:        orch,
			BaseURL:        client.BaseURL(),
			Username:       cfg.Auth.Username,
			Password:       cfg.Auth.Password,
			PDFPath:        *pdfPath,
			JSONPath:       *jsonPath,
			TranscriptPath: cfg.Transcript.Path,
			Logger:         logger,
			Timeout:        cfg.API.Timeout,
		}),
		programOpts...,
	)

	if _, err := program.Run(); err != nil {
		logger.Error("program error", zap.Error(err))
		fmt.Println("program error:", err)
		os.Exit(1)
	}
}
