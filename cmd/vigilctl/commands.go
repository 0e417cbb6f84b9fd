package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vigil-labs/vigilctl"
	"github.com/vigil-labs/vigilctl/internal/agentcfg"
	"github.com/vigil-labs/vigilctl/internal/logger"
	"github.com/vigil-labs/vigilctl/pkg/client"
)

func defaultConfigPath() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "vigil", "config.yaml")
	}
	return "config.yaml"
}

// command wraps the daemon client for the CLI subcommands.
type command struct {
	api *client.Client
}

func newCommand(api *APIFlags) command {
	return command{api: client.New(client.Config{BaseURL: api.URL, Timeout: api.Timeout})}
}

func (c command) Start(flags StartFlags) error {
	res, err := c.api.Start(context.Background(), vigilctl.StartOptions{
		BinaryPath:      flags.BinaryPath,
		ConfigPath:      flags.ConfigPath,
		TelegramEnabled: flags.Telegram,
	})
	if err != nil {
		return err
	}
	return printResult(res)
}

func (c command) Stop() error {
	res, err := c.api.Stop(context.Background())
	if err != nil {
		return err
	}
	return printResult(res)
}

func (c command) SetTelegram(target bool) error {
	res, err := c.api.SetTelegramEnabled(context.Background(), target)
	if err != nil {
		return err
	}
	if res.Outcome != "" {
		fmt.Printf("outcome: %s\n", res.Outcome)
	}
	return printResult(res)
}

func (c command) Status() error {
	snap, err := c.api.Status(context.Background())
	if err != nil {
		return err
	}
	fmt.Printf("state:     %s\n", snap.State)
	fmt.Printf("running:   %t\n", snap.Running)
	if snap.PID != 0 {
		fmt.Printf("pid:       %d\n", snap.PID)
	}
	fmt.Printf("telegram:  %t\n", snap.TelegramEnabled)
	fmt.Printf("address:   %s\n", snap.BaseAddress)
	if snap.Transitioning {
		fmt.Println("transitioning: true")
	}
	if snap.LastError != "" {
		fmt.Printf("last error: %s\n", snap.LastError)
	}
	return nil
}

func printResult(res vigilctl.Result) error {
	if res.OK {
		if res.Message != "" {
			fmt.Println(res.Message)
		} else {
			fmt.Println("ok")
		}
		return nil
	}
	if res.Message != "" {
		return errors.New(res.Message)
	}
	return errors.New("operation failed")
}

func runServe(flags ServeFlags) error {
	log := logger.New(os.Stderr, flags.LogLevel)

	if err := vigilctl.RegisterMetricsDefault(); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	var sink vigilctl.HistorySink
	if flags.HistoryDSN != "" {
		s, err := vigilctl.NewHistorySink(flags.HistoryDSN)
		if err != nil {
			return fmt.Errorf("open history sink: %w", err)
		}
		sink = s
		defer func() { _ = s.Close() }()
	}

	var capture logger.CaptureConfig
	if flags.CaptureDir != "" {
		capture.Dir = flags.CaptureDir
	}

	sup := vigilctl.New(vigilctl.Config{
		BinaryPath: flags.BinaryPath,
		ConfigPath: flags.ConfigPath,
		DevCommand: flags.DevCommand,
		Capture:    capture,
		Sink:       sink,
		Logger:     log,
	})
	defer sup.Shutdown()

	srv, err := vigilctl.NewHTTPServer(flags.Listen, flags.BasePath, sup)
	if err != nil {
		return fmt.Errorf("start http server: %w", err)
	}
	defer func() { _ = srv.Close() }()

	log.Info("vigilctl daemon listening", "addr", flags.Listen, "agent_config", flags.ConfigPath)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info("shutting down", "signal", sig.String())
	return nil
}

func initConfig(cmd *cobra.Command, flags ConfigInitFlags) error {
	if !flags.Force {
		if _, err := os.Stat(flags.Path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", flags.Path)
		}
	}
	if dir := filepath.Dir(flags.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(flags.Path, []byte(agentcfg.ExampleYAML), 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	cmd.Printf("wrote %s\n", flags.Path)
	return nil
}
