// SPDX-License-Identifier: MIT
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"timegrapher/cmd"
	"timegrapher/internal/audio"
	"timegrapher/internal/config"
	"timegrapher/internal/detector"
	applog "timegrapher/internal/log"
	"timegrapher/internal/meter"
	"timegrapher/internal/regulation"
	"timegrapher/internal/transport"
	"timegrapher/internal/transport/natspub"
	"timegrapher/internal/transport/udp"
	"timegrapher/internal/tui"
	"timegrapher/pkg/build"
)

// main is the entry point for the timegrapher.
// The program flow is divided into three phases:
//
// 1. Startup Phase:
//   - Initialize build information
//   - Parse command line arguments and load configuration
//   - Initialize PortAudio for commands that use a microphone
//
// 2. Measurement Phase:
//   - Open the transports enabled in the configuration
//   - Run one or more sessions through a meter
//
// 3. Shutdown Phase:
//   - Stop the session on SIGINT/SIGTERM
//   - Close transports, then PortAudio
func main() {
	// ==================== STARTUP PHASE ====================

	if err := build.Initialize(); err != nil {
		applog.Debugf("Build: %v, using development defaults", err)
	}

	options, err := cmd.ParseArgs()
	if err != nil {
		applog.Fatalf("%v", err)
	}
	if options.Command == "" {
		// Help or version output.
		return
	}

	cfg, err := config.LoadConfig(options.ConfigPath)
	if err != nil {
		applog.Fatalf("%v", err)
	}
	if err := options.Apply(cfg); err != nil {
		applog.Fatalf("%v", err)
	}
	applog.Configure(cfg.LogLevel, cfg.Debug)

	// The terminal belongs to the UI, so logs go to a file.
	if options.TUIMode {
		logFile, err := os.OpenFile(build.GetBuildFlags().Name+".log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			applog.Fatalf("failed to open log file: %v", err)
		}
		defer logFile.Close()
		applog.SetOutput(logFile)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ==================== MEASUREMENT PHASE ====================

	if err := run(ctx, options, cfg); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, meter.ErrCancelled) {
			fmt.Fprintln(os.Stderr, "Measurement cancelled.")
			return
		}
		stop()
		applog.Fatalf("%v", err)
	}
}

func run(ctx context.Context, options *cmd.Options, cfg *config.Config) error {
	switch options.Command {
	case cmd.CommandAnalyze:
		source, err := audio.NewFileSource(options.File, cfg)
		if err != nil {
			return err
		}
		return measureOnce(ctx, source, cfg, options.TUIMode, "Analyzing "+options.File)
	}

	// Everything below needs PortAudio. Terminate runs after the session stops.
	if err := audio.Initialize(); err != nil {
		return err
	}
	defer func() {
		if err := audio.Terminate(); err != nil {
			applog.Errorf("%v", err)
		}
	}()

	switch options.Command {
	case cmd.CommandList:
		return listDevices(options.TUIMode)
	case cmd.CommandCycle:
		engine, err := audio.NewEngine(cfg)
		if err != nil {
			return err
		}
		return runCycles(ctx, engine, cfg, options)
	default:
		engine, err := audio.NewEngine(cfg)
		if err != nil {
			return err
		}
		return measureOnce(ctx, engine, cfg, options.TUIMode, "Listening to the watch")
	}
}

func listDevices(tuiMode bool) error {
	if !tuiMode {
		return audio.ListDevices(os.Stdout)
	}

	sel, ok, err := tui.StartDeviceListUI()
	if err != nil {
		return err
	}
	if ok {
		fmt.Printf("Selected %q. Measure with: %s --device %d --sample-rate %.0f\n",
			sel.Name, build.GetBuildFlags().Name, sel.DeviceID, sel.SampleRate)
	}
	return nil
}

// measureOnce runs a single session on source with every configured transport
// attached and prints the result. An error record fails the command.
func measureOnce(ctx context.Context, source audio.Source, cfg *config.Config, tuiMode bool, title string) error {
	m, closeTransports, err := newMeter(source, cfg)
	if err != nil {
		return err
	}
	defer closeTransports()

	res, err := measure(ctx, m, cfg, tuiMode, title)
	if err != nil {
		return err
	}
	printResult(os.Stdout, res)
	return res.Err()
}

// measure runs one session on m, in the terminal UI or with plain progress
// lines once per second.
func measure(ctx context.Context, m *meter.Meter, cfg *config.Config, tuiMode bool, title string) (detector.Result, error) {
	if tuiMode {
		model := tui.NewMeasureModel(title, cfg.Detector.SessionSeconds, cfg.Detector.Threshold)
		return tui.RunMeasurement(m, model)
	}

	fmt.Printf("%s for %.0f seconds...\n", title, cfg.Detector.SessionSeconds)
	lastSecond := -1
	return m.Measure(ctx, func(p meter.Progress) {
		if p.SecondsRemaining == lastSecond {
			return
		}
		lastSecond = p.SecondsRemaining
		line := fmt.Sprintf("  %2ds  %-9s ticks %-4d", p.SecondsRemaining, p.Phase, p.Ticks)
		if p.Stats != nil {
			line += "  " + p.Stats.String()
		}
		fmt.Println(line)
	})
}

// newMeter wires the transports from cfg into a meter on source. The returned
// function closes them.
func newMeter(source audio.Source, cfg *config.Config) (*meter.Meter, func(), error) {
	var transports transport.Fanout
	transports = append(transports, transport.NewLoggingTransport())

	fail := func(err error) (*meter.Meter, func(), error) {
		if cerr := transports.Close(); cerr != nil {
			applog.Warnf("Transport: %v", cerr)
		}
		return nil, nil, err
	}

	tc := cfg.Transport
	if tc.WebSocketEnabled {
		ws, err := transport.NewWebSocketTransport(tc.WebSocketAddr)
		if err != nil {
			return fail(err)
		}
		transports = append(transports, ws)
	}
	if tc.NATSEnabled {
		pub, err := natspub.Connect(tc.NATSURL, tc.NATSSubject)
		if err != nil {
			return fail(err)
		}
		transports = append(transports, pub)
	}

	opts := make([]meter.Option, 0, len(transports))
	for _, t := range transports {
		opts = append(opts, meter.WithTransport(t))
	}
	m := meter.New(source, cfg.Detector, opts...)

	var udpPublisher *udp.UDPPublisher
	if tc.UDPEnabled {
		sender, err := udp.NewUDPSender(tc.UDPTargetAddress)
		if err != nil {
			return fail(err)
		}
		udpPublisher, err = udp.NewUDPPublisher(tc.UDPSendInterval, sender, m)
		if err != nil {
			sender.Close()
			return fail(err)
		}
		udpPublisher.Start()
	}

	closeAll := func() {
		if udpPublisher != nil {
			if err := udpPublisher.Close(); err != nil {
				applog.Warnf("UDP: %v", err)
			}
		}
		if err := transports.Close(); err != nil {
			applog.Warnf("Transport: %v", err)
		}
	}
	return m, closeAll, nil
}

// runCycles measures the watch in every position, once per cycle, and prints
// the cycle statistics.
func runCycles(ctx context.Context, source audio.Source, cfg *config.Config, options *cmd.Options) error {
	m, closeTransports, err := newMeter(source, cfg)
	if err != nil {
		return err
	}
	defer closeTransports()

	// Stdin is only read while a prompt waits, so the measurement view gets
	// every keystroke.
	stdin := bufio.NewReader(os.Stdin)

	cycles := make([]regulation.Cycle, 0, options.Cycles)
	for n := 1; n <= options.Cycles; n++ {
		cycle := regulation.Cycle{Number: n}

		for _, pos := range regulation.Positions {
			fmt.Printf("\nCycle %d: place the watch %s and press Enter (or type 'skip').\n", n, pos)
			line, err := promptLine(ctx, stdin)
			if err != nil {
				return err
			}
			if line == "skip" {
				continue
			}

			res, err := measure(ctx, m, cfg, options.TUIMode, pos.String())
			if err != nil {
				return err
			}
			printResult(os.Stdout, res)
			if !cycle.Add(pos, res) {
				fmt.Printf("%s not counted.\n", pos.Abbr)
			}
		}

		if len(cycle.Readings) > 0 {
			fmt.Printf("\nCycle %d: %s\n", n, cycle.Stats())
		} else {
			fmt.Printf("\nCycle %d: no valid readings\n", n)
		}
		cycles = append(cycles, cycle)
	}

	if len(cycles) > 1 {
		totals := regulation.Aggregate(cycles)
		fmt.Printf("\nOverall (%d cycles): Avg Rate %+.1f s/d | Avg Beat Error %.2f ms\n",
			totals.RateCycles, totals.AvgRate, totals.AvgBeatError)
	}
	return nil
}

// promptLine reads one line from r, trimmed. The read happens on its own
// goroutine so ctx can interrupt the wait; after ctx is done r must not be used
// again.
func promptLine(ctx context.Context, r *bufio.Reader) (string, error) {
	type readResult struct {
		line string
		err  error
	}
	ch := make(chan readResult, 1)
	go func() {
		line, err := r.ReadString('\n')
		ch <- readResult{line, err}
	}()

	select {
	case res := <-ch:
		line := strings.TrimSpace(res.line)
		switch {
		case res.err == nil:
			return line, nil
		case errors.Is(res.err, io.EOF) && line != "":
			return line, nil
		case errors.Is(res.err, io.EOF):
			return "", io.ErrUnexpectedEOF
		default:
			return "", res.err
		}
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func printResult(w io.Writer, r detector.Result) {
	if r.Error != "" {
		fmt.Fprintf(w, "Measurement failed: %s (%d ticks)\n", r.Error, r.Ticks)
		return
	}
	fmt.Fprintf(w, "BPH:        %d (observed %d)\n", r.BPH, r.BPHActual)
	fmt.Fprintf(w, "Rate:       %+.1f s/d\n", r.Rate)
	fmt.Fprintf(w, "Beat error: %.1f ms\n", r.BeatError)
	fmt.Fprintf(w, "Ticks:      %d\n", r.Ticks)
}
