package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"go.uber.org/zap"

	"github.com/gwillem/thething/internal/logging"
	"github.com/gwillem/thething/pkg/bluez"
	"github.com/gwillem/thething/pkg/config"
)

// loadConfig reads the config file named by --config, falling back to the
// defaults when it does not exist, and applies the global overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadOrDefault(opts.Config)
	if err != nil {
		return nil, err
	}
	if opts.LogLevel != "" {
		cfg.Log.Level = opts.LogLevel
	}
	if opts.LogFormat != "" {
		cfg.Log.Format = opts.LogFormat
	}
	return cfg, nil
}

func newLogger(cfg *config.Config, out io.Writer) (*zap.Logger, error) {
	return logging.New(logging.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: out,
	})
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// preflight checks BlueZ and the adapter's power before the radio is opened.
// A missing BlueZ daemon is only a warning, since other hosts have no D-Bus.
func preflight(adapter string, powerOn bool, log *zap.Logger) (*bluez.Client, error) {
	client, err := bluez.Open(log)
	if err != nil {
		log.Warn("skipping adapter check", zap.Error(err))
		return nil, nil
	}
	if err := client.Ensure(adapter, powerOn); err != nil {
		client.Close()
		if errors.Is(err, bluez.ErrPoweredOff) {
			return nil, fmt.Errorf("%w (set power_on in the config to switch it on)", err)
		}
		return nil, err
	}
	if addr, err := client.Address(adapter); err == nil {
		log.Info("adapter ready", zap.String("adapter", adapter), zap.String("addr", addr))
	}
	return client, nil
}

// task is a long-running part of a device. When a final task returns, the
// others are stopped.
type task struct {
	name  string
	run   func(ctx context.Context) error
	final bool
}

// runTasks runs every task until ctx is cancelled, a final task returns or
// a task fails. It returns the first error that is not a cancellation.
func runTasks(ctx context.Context, log *zap.Logger, tasks ...task) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg    sync.WaitGroup
		once  sync.Once
		first error
	)
	for _, t := range tasks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := t.run(ctx)
			if t.final {
				defer cancel()
			}
			if err == nil || errors.Is(err, context.Canceled) {
				return
			}
			log.Error("task failed", zap.String("task", t.name), zap.Error(err))
			once.Do(func() {
				first = fmt.Errorf("%s: %w", t.name, err)
				cancel()
			})
		}()
	}
	wg.Wait()
	return first
}
