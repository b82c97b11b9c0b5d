package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/BrandonDHaskell/nfcgate/internal/console"
	"github.com/BrandonDHaskell/nfcgate/internal/serialreader"
)

func addReaderFlags(cmd *cobra.Command, c *cli) {
	var (
		port string
		baud int
	)
	cmd.Flags().StringVar(&port, "port", "", "serial port (overrides NFCGATE_SERIAL_PORT; empty auto-discovers)")
	cmd.Flags().IntVar(&baud, "baud", 0, "serial baud rate (overrides NFCGATE_SERIAL_BAUD)")

	prev := cmd.PreRun
	cmd.PreRun = func(cmd *cobra.Command, args []string) {
		if cmd.Flags().Changed("port") {
			c.cfg.SerialPort = port
			c.cfg.SerialEnabled = true
		}
		if cmd.Flags().Changed("baud") && baud > 0 {
			c.cfg.SerialBaud = baud
		}
		if prev != nil {
			prev(cmd, args)
		}
	}
}

func newReaderCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reader",
		Short: "Run the standalone serial reader with an operator console",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runReader(cmd.Context(), c)
		},
	}
	addReaderFlags(cmd, c)
	return cmd
}

func runReader(parent context.Context, c *cli) error {
	cfg, logger := c.cfg, c.logger

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	con := console.New(a.status, os.Stdin, os.Stdout, logger.Named("console"))
	con.Banner(cfg.MasterKey)

	readerErr := make(chan error, 1)
	go func() { readerErr <- a.newReader().Run(ctx) }()

	// stdin cannot be interrupted, so the console runs detached and only
	// signals when the operator quits.
	consoleDone := make(chan struct{})
	go func() {
		defer close(consoleDone)
		if err := con.Run(ctx); err != nil {
			logger.Warn("console input error", zap.Error(err))
		}
	}()

	select {
	case <-ctx.Done():
	case <-consoleDone:
	case err := <-readerErr:
		if errors.Is(err, serialreader.ErrNoDevice) {
			logger.Error("failed to connect to reader; close other serial monitors, replug the device and check the port name",
				zap.Error(err))
		}
		return err
	}

	logger.Info("shutting down")
	stop()
	return <-readerErr
}
