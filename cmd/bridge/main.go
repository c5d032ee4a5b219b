// Command bridge runs Lua scripts against a simulated game world.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/scriptbridge/config"
)

type options struct {
	configFile  string
	scriptDir   string
	savePath    string
	metricsAddr string
	frames      int
	verbose     bool
	interactive bool
	watch       bool
	load        bool
}

func main() {
	var o options
	flag.StringVar(&o.configFile, "config", "", "Path to YAML config file")
	flag.StringVar(&o.scriptDir, "scripts", "", "Script directory (overrides config)")
	flag.IntVar(&o.frames, "frames", 0, "Frames to run (overrides config)")
	flag.StringVar(&o.savePath, "save", "", "Save file (overrides config)")
	flag.BoolVar(&o.load, "load", false, "Restore the save file before running")
	flag.BoolVar(&o.watch, "watch", false, "Reload scripts when their files change")
	flag.StringVar(&o.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	flag.BoolVar(&o.verbose, "v", false, "Debug logging")
	flag.BoolVar(&o.interactive, "i", false, "Interactive mode with TUI")
	flag.Parse()

	if o.configFile == "" && o.scriptDir == "" {
		fmt.Fprintln(os.Stderr, "Usage: bridge -config <bridge.yaml> [-frames n] [-save file] [-load] [-watch]")
		fmt.Fprintln(os.Stderr, "       bridge -config <bridge.yaml> -i  (interactive mode)")
		os.Exit(1)
	}

	if err := run(o); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(o options) (*config.Config, error) {
	cfg := config.Default()
	if o.configFile != "" {
		var err error
		if cfg, err = config.Load(o.configFile); err != nil {
			return nil, err
		}
	} else if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if o.scriptDir != "" {
		cfg.ScriptDir = o.scriptDir
	}
	if o.frames > 0 {
		cfg.Sim.Frames = o.frames
	}
	if o.savePath != "" {
		cfg.Sim.SavePath = o.savePath
	}
	if o.verbose {
		cfg.Log.Level = "debug"
		cfg.Log.Development = true
	}
	if o.metricsAddr != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Listen = o.metricsAddr
	}
	return cfg, cfg.Validate()
}

func run(o options) error {
	cfg, err := loadConfig(o)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if o.interactive && !term.IsTerminal(int(os.Stdout.Fd())) {
		return errors.New("interactive mode needs a terminal")
	}

	log, err := cfg.Log.Build()
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	if o.interactive {
		// the TUI owns the screen
		log = zap.NewNop()
	}
	defer log.Sync()

	var reg prometheus.Registerer
	if cfg.Metrics.Enabled {
		r := prometheus.NewRegistry()
		reg = r
		srv := &http.Server{
			Addr:              cfg.Metrics.Listen,
			Handler:           promhttp.HandlerFor(r, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics server", zap.Error(err))
			}
		}()
		defer srv.Close()
		log.Info("serving metrics", zap.String("addr", cfg.Metrics.Listen))
	}

	s, err := newSession(cfg, log, reg)
	if err != nil {
		return err
	}
	defer s.close()

	if o.load {
		if err := s.restore(); err != nil {
			return fmt.Errorf("restore: %w", err)
		}
	}

	if o.interactive {
		return runInteractive(s, o.watch)
	}

	changed := make(chan string, 16)
	if o.watch {
		stop, err := watchScripts(cfg.ScriptDir, log, func(name string) {
			select {
			case changed <- name:
			default:
			}
		})
		if err != nil {
			return fmt.Errorf("watch %s: %w", cfg.ScriptDir, err)
		}
		defer stop()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	start := time.Now()
	frames, err := loop(ctx, s, cfg.Sim.Frames, cfg.Sim.FrameInterval, changed)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	if s.save != nil {
		if err := s.store(); err != nil {
			return fmt.Errorf("save: %w", err)
		}
	}
	summary(s, frames, time.Since(start))
	return nil
}

// loop runs frames until n frames have run or ctx is done. Pending reloads
// are applied between frames.
func loop(ctx context.Context, s *session, n int, interval time.Duration, changed <-chan string) (int, error) {
	var tick <-chan time.Time
	if interval > 0 {
		t := time.NewTicker(interval)
		defer t.Stop()
		tick = t.C
	}

	for i := 0; i < n; i++ {
	drain:
		for {
			select {
			case name := <-changed:
				s.reload(name)
			default:
				break drain
			}
		}

		if err := s.frame(ctx); err != nil {
			return i, err
		}
		if tick != nil {
			select {
			case <-tick:
			case <-ctx.Done():
				return i + 1, ctx.Err()
			}
		}
	}
	return n, nil
}

func summary(s *session, frames int, elapsed time.Duration) {
	snap := s.bridge.Snapshot()
	fmt.Printf("Frames:       %s in %s\n", humanize.Comma(int64(frames)), elapsed.Round(time.Millisecond))
	fmt.Printf("Environments: %d\n", len(snap.Environments))
	for _, e := range snap.Environments {
		fmt.Printf("  %-12s %-12s threads=%d slots=%d faults=%d\n",
			e.Owner, e.Script, len(e.Threads), len(e.Slots), e.Faults)
	}
	fmt.Printf("Tokens:       %d\n", len(snap.Tokens))
	fmt.Printf("Globals:      %d\n", len(snap.Globals))
	for _, k := range s.bridge.Globals().Keys() {
		fmt.Printf("  %s = %s\n", k, snap.Globals[k])
	}
	if s.save != nil {
		fmt.Printf("Saved:        %s (%s)\n", s.save.Path(), humanize.Bytes(s.saveSize()))
	}
}
