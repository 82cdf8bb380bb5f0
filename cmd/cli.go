// SPDX-License-Identifier: MIT
package cmd

import (
	"io"
	"os"

	"timegrapher/internal/config"
	"timegrapher/pkg/build"

	"github.com/spf13/cobra"
)

// Commands understood by main.
const (
	CommandMeasure = "measure"
	CommandList    = "list"
	CommandAnalyze = "analyze"
	CommandCycle   = "cycle"
)

// Options is the parsed command line. Command is empty when cobra already
// handled the invocation (help, version).
type Options struct {
	Command    string
	File       string // Recording for analyze.
	Cycles     int    // Passes through the positions for cycle.
	ConfigPath string
	TUIMode    bool
	Verbose    bool

	deviceID        int
	sampleRate      float64
	framesPerBuffer int
	lowLatency      bool
	changed         map[string]bool
}

// ParseArgs parses os.Args.
func ParseArgs() (*Options, error) {
	return parse(os.Args[1:], os.Stdout)
}

func parse(args []string, out io.Writer) (*Options, error) {
	options := &Options{Cycles: 1, changed: map[string]bool{}}
	rootCmd := newRootCmd(options)
	rootCmd.SetOut(out)
	rootCmd.SetArgs(args)

	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}
	return options, nil
}

func newRootCmd(options *Options) *cobra.Command {
	buildInfo := build.GetBuildFlags()

	// recordFlags notes which capture flags were set so Apply only overrides
	// those.
	recordFlags := func(cmd *cobra.Command) {
		for _, name := range []string{"device", "sample-rate", "frames-per-buffer", "low-latency"} {
			options.changed[name] = cmd.Flags().Changed(name)
		}
	}

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         buildInfo.Description,
		Long:          buildInfo.Description + ".\n\nHold the watch against the microphone and run without arguments to measure it.",
		Version:       buildInfo.String(),
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			options.Command = CommandMeasure
			recordFlags(cmd)
			return nil
		},
	}

	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List available audio devices (with --tui, pick one interactively)",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			options.Command = CommandList
			recordFlags(cmd)
		},
	}

	analyzeCmd := &cobra.Command{
		Use:   "analyze <file.wav>",
		Short: "Measure a WAV recording of a ticking watch",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			options.Command = CommandAnalyze
			options.File = args[0]
			recordFlags(cmd)
		},
	}

	cycleCmd := &cobra.Command{
		Use:   "cycle",
		Short: "Run a regulation cycle across the six watch positions",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			options.Command = CommandCycle
			recordFlags(cmd)
		},
	}
	cycleCmd.Flags().IntVarP(&options.Cycles, "cycles", "n", 1,
		"Number of passes through the positions")

	rootCmd.AddCommand(listCmd, analyzeCmd, cycleCmd)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&options.ConfigPath, "config", "",
		"Path to a YAML config file (default: ./config.yaml or ./timegrapher.yaml if present)")
	flags.IntVarP(&options.deviceID, "device", "d", config.DefaultDeviceID,
		"Input device ID, -1 for the system default. Use 'list' to see available devices.")
	flags.Float64VarP(&options.sampleRate, "sample-rate", "s", config.DefaultSampleRate,
		"Sample rate, measured in Hertz (Hz)")
	flags.IntVarP(&options.framesPerBuffer, "frames-per-buffer", "b", config.DefaultFramesPerBuffer,
		"The number of frames per buffer (affects latency)")
	flags.BoolVarP(&options.lowLatency, "low-latency", "l", config.DefaultLowLatency,
		"Use the device's low input latency")
	flags.BoolVarP(&options.TUIMode, "tui", "t", false,
		"Show an interactive terminal view")
	flags.BoolVarP(&options.Verbose, "verbose", "v", false,
		"Show verbose output")

	return rootCmd
}

// Apply overrides cfg with the capture flags given on the command line and
// validates the result.
func (o *Options) Apply(cfg *config.Config) error {
	if o.changed["device"] {
		cfg.Audio.InputDevice = o.deviceID
	}
	if o.changed["sample-rate"] {
		cfg.Audio.SampleRate = o.sampleRate
	}
	if o.changed["frames-per-buffer"] {
		cfg.Audio.FramesPerBuffer = o.framesPerBuffer
	}
	if o.changed["low-latency"] {
		cfg.Audio.LowLatency = o.lowLatency
	}
	if o.Verbose {
		cfg.Debug = true
	}
	return cfg.Validate()
}
