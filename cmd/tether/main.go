// Tether is an interactive terminal chat that drives a model through a tool
// server. It loads a YAML configuration, connects one session to the tool
// server, and streams every message of the conversation to the terminal.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/germanamz/tether/pkg/engine"
	"github.com/germanamz/tether/pkg/validate"
	"github.com/joho/godotenv"
)

const defaultConfigPath = "tether.yaml"

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: tether [flags]\n\nFlags:\n")
		flag.PrintDefaults()
	}

	configPath := flag.String("config", "", "path to configuration file (default: "+defaultConfigPath+" if present)")
	envFile := flag.String("env", ".env", "path to .env file (ignored if missing)")
	model := flag.String("model", "", "model to start with (overrides gateway.model)")
	pick := flag.Bool("pick-model", false, "choose the model interactively before starting")
	logFile := flag.String("log-file", "tether.log", `log destination ("-" for stderr, "" to disable)`)
	flag.Parse()

	if err := loadDotEnv(*envFile); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if err := run(*configPath, *model, *pick, *logFile); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, model string, pick bool, logFile string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if model != "" {
		cfg.Gateway.Model = model
	}

	w, closeLog, err := openLog(logFile)
	if err != nil {
		return err
	}
	defer func() { _ = closeLog() }()

	logger, err := newLogger(w, cfg.Log)
	if err != nil {
		return err
	}

	eng, err := engine.New(cfg, engine.WithLogger(logger))
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	if err := validate.ModelID(eng.Models(), eng.DefaultModel()); err != nil {
		return err
	}

	sess, err := eng.NewSession()
	if err != nil {
		return err
	}

	if pick {
		choice, err := pickModel(eng.Models(), sess.Model())
		if err != nil {
			return err
		}
		if err := sess.SwitchModel(choice); err != nil {
			return err
		}
	}

	if !eng.InferenceAvailable() {
		fmt.Fprintln(os.Stderr, "warning: no API key configured; the model cannot be reached")
	}

	p := tea.NewProgram(newAppModel(ctx, eng, sess), tea.WithContext(ctx))

	// Send the program reference so the model can start the bridge.
	go func() {
		p.Send(programReadyMsg{program: p})
	}()

	_, err = p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// loadConfig reads the configuration file. Without an explicit path it uses
// tether.yaml when present and the built-in defaults otherwise.
func loadConfig(path string) (engine.Config, error) {
	if path == "" {
		if _, err := os.Stat(defaultConfigPath); err != nil {
			return engine.Defaults(), nil
		}
		path = defaultConfigPath
	}
	return engine.LoadConfig(path)
}

// loadDotEnv loads environment variables from path. Missing files are ignored.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
