package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rbdannenberg/arco-sub000/internal/audioio"
	"github.com/rbdannenberg/arco-sub000/internal/control"
	"github.com/rbdannenberg/arco-sub000/internal/fileio"
	"github.com/rbdannenberg/arco-sub000/internal/graph"
	"github.com/rbdannenberg/arco-sub000/internal/inbox"
	"github.com/rbdannenberg/arco-sub000/internal/netio"
	"github.com/rbdannenberg/arco-sub000/internal/prefs"
	"github.com/rbdannenberg/arco-sub000/internal/recovery"
	"github.com/rbdannenberg/arco-sub000/internal/ugens"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "arcod",
	Short: "Arco audio engine daemon",
	Long:  `arcod opens an audio device, runs the ugen graph engine, and accepts control connections over HTTP/WebSocket and WebTransport.`,
	RunE:  runEngine,
}

// Execute runs the root command, following the teacher's cmd/root.go
// Execute/init split.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "arcod: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("control-addr", ":8420", "HTTP/WebSocket control-service listen address")
	flags.String("netio-addr", ":4443", "WebTransport control-message listen address")
	flags.String("prefs", "", "path to the preferences file (default: XDG config dir)")
	flags.Int("graph-chans", 2, "ugen graph channel count")
	flags.Bool("no-device", false, "skip opening a real audio device (engine stays idle, for testing control wiring)")

	cobra.CheckErr(viper.BindPFlag("control_addr", flags.Lookup("control-addr")))
	cobra.CheckErr(viper.BindPFlag("netio_addr", flags.Lookup("netio-addr")))
	cobra.CheckErr(viper.BindPFlag("prefs_path", flags.Lookup("prefs")))
	cobra.CheckErr(viper.BindPFlag("graph_chans", flags.Lookup("graph-chans")))
	cobra.CheckErr(viper.BindPFlag("no_device", flags.Lookup("no-device")))
}

func runEngine(_ *cobra.Command, _ []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("arcod: received signal, shutting down", "signal", sig)
		cancel()
	}()

	graphChans := viper.GetInt("graph_chans")
	if graphChans < 1 {
		graphChans = 2
	}

	table := graph.NewTable(0)
	sets := graph.NewSets()
	ib := inbox.New(512)

	ctrlSvc := control.New(table)
	go func() {
		defer recovery.HandlePanic()
		ctrlSvc.Run(ctx)
	}()

	engine := audioio.NewEngine(table, sets, ib, ctrlSvc, graphChans)

	worker := fileio.NewWorker(slog.Default())
	stopWorker := make(chan struct{})
	go func() {
		defer recovery.HandlePanic()
		worker.Run(stopWorker)
	}()

	netAddr := viper.GetString("netio_addr")
	cert, err := netio.GenerateSelfSignedCert(365*24*time.Hour, "arco.local")
	if err != nil {
		return fmt.Errorf("arcod: generate control-transport cert: %w", err)
	}
	netSrv := netio.NewServer(netAddr, cert, ib)

	ugens.RegisterAll(ib, table.Install, table.Lookup, worker, ctrlSvc, netSrv.Session)
	graph.RegisterLifecycle(ib, table, sets, ctrlSvc)
	engine.RegisterReset(ib)
	engine.RegisterOpenClose(ib)

	go func() {
		defer recovery.HandlePanic()
		if err := netSrv.ListenAndServe(ctx); err != nil {
			slog.Error("arcod: netio listener stopped", "err", err)
		}
	}()

	controlAddr := viper.GetString("control_addr")
	go func() {
		defer recovery.HandlePanic()
		if err := ctrlSvc.Echo().Start(controlAddr); err != nil {
			slog.Info("arcod: control HTTP listener stopped", "err", err)
		}
	}()

	if !viper.GetBool("no_device") {
		p, err := prefs.Load(viper.GetString("prefs_path"))
		if err != nil {
			slog.Warn("arcod: loading prefs, using defaults", "err", err)
			p = prefs.Default()
		}
		if err := engine.Open(p); err != nil {
			slog.Error("arcod: opening audio device", "err", err)
		} else {
			stopEngine := make(chan struct{})
			go func() {
				defer recovery.HandlePanic()
				engine.Run(stopEngine, p.BufferSize)
			}()
			defer close(stopEngine)
			defer engine.Close()
		}
	}

	pollTicker := time.NewTicker(5 * time.Millisecond)
	defer pollTicker.Stop()
	for {
		select {
		case <-ctx.Done():
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			_ = ctrlSvc.Echo().Shutdown(shutdownCtx)
			close(stopWorker)
			return nil
		case <-pollTicker.C:
			engine.ThreadPoll()
		}
	}
}
