// cmd/ecdebug/daemon.go
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tamzrod/ecdebug/internal/device"
	"github.com/tamzrod/ecdebug/internal/fsys"
	"github.com/tamzrod/ecdebug/internal/status"
	"github.com/tamzrod/ecdebug/internal/work"
)

var (
	mountpoint string
	allowOther bool
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Attach devices and serve them until interrupted",
	Long: `Attach every configured device, keep their console logs drained and
track their health. With a mountpoint the devices are exposed as a FUSE
filesystem, one directory per device.

Signals:
  SIGINT, SIGTERM  detach and exit
  SIGUSR1          treat as an EC panic: drain consoles immediately
  SIGUSR2          toggle suspend/resume`,
	RunE: runDaemon,
}

func init() {
	daemonCmd.Flags().StringVarP(&mountpoint, "mount", "m", "", "FUSE mountpoint (overrides mount.mountpoint)")
	daemonCmd.Flags().BoolVar(&allowOther, "allow-other", false, "Let other users access the mount")
	rootCmd.AddCommand(daemonCmd)
}

func runDaemon(cmd *cobra.Command, args []string) error {
	s, err := openSession(nil)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --------------------
	// Filesystem
	// --------------------

	mp := s.cfg.ECDebug.Mount.Mountpoint
	if mountpoint != "" {
		mp = mountpoint
	}
	if mp != "" {
		server, err := fsys.Mount(fsys.Options{
			Mountpoint: mp,
			Devices:    s.devices,
			AllowOther: allowOther || s.cfg.ECDebug.Mount.AllowOther,
			Logger:     s.logger,
		})
		if err != nil {
			return err
		}
		defer func() {
			if err := server.Unmount(); err != nil {
				s.logger.Warn("unmount failed", "mountpoint", mp, "error", err)
			}
		}()
	}

	// --------------------
	// Per-device health (1 Hz)
	// --------------------

	var wg sync.WaitGroup
	for _, d := range s.devices {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runHealth(ctx, d, s.logger)
		}()
	}

	// --------------------
	// Lifecycle signals
	// --------------------

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGUSR1, syscall.SIGUSR2)
	defer signal.Stop(sigs)

	s.logger.Info("ecdebug running", "devices", len(s.devices))

	suspended := false
	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			s.logger.Info("shutting down")
			return nil

		case sig := <-sigs:
			switch sig {
			case syscall.SIGUSR1:
				for _, d := range s.devices {
					d.HandlePanic()
				}
			case syscall.SIGUSR2:
				suspended = !suspended
				for _, d := range s.devices {
					if suspended {
						d.Suspend()
					} else {
						d.Resume()
					}
				}
				s.logger.Info("power state", "suspended", suspended)
			}
		}
	}
}

// runHealth folds console outcomes into the device health once per
// second and logs transitions. Seconds-in-error advance on the tick only.
func runHealth(ctx context.Context, d *device.Device, logger *slog.Logger) {
	last := d.Health()
	work.Every(ctx, time.Second, func(time.Time) {
		d.Observe()
		d.Tick()

		h := d.Health()
		if h == last {
			return
		}
		last = h

		if h != status.HealthError {
			logger.Info("device health changed", "device", d.ID(), "health", status.HealthName(h))
			return
		}
		var err error
		if p, ok := d.Console(); ok {
			err = p.Stats().LastError
		}
		logger.Warn("device health changed",
			"device", d.ID(),
			"health", status.HealthName(h),
			"last_error_code", status.ErrorCode(err),
			"error", err,
		)
	})
}
