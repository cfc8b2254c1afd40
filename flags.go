package main

import "github.com/urfave/cli"

var (
	inPort      string
	outPort     string
	varianceMs  float64
	sampleRate  int
	blockSize   int
	maxPending  int
	anyChannel  bool
	seed        uint64
	debugLog    bool
	noTUI       bool
	configPath  string
	statsCount  int
	statsHeight int
)

var runFlags = []cli.Flag{
	cli.StringFlag{
		Name:        "in, i",
		Usage:       "MIDI input port to read from (case-insensitive substring)",
		EnvVar:      "SLOTH_IN",
		Destination: &inPort,
	},
	cli.StringFlag{
		Name:        "out, o",
		Usage:       "MIDI output port to write to (case-insensitive substring)",
		EnvVar:      "SLOTH_OUT",
		Destination: &outPort,
	},
	cli.Float64Flag{
		Name:        "variance",
		Usage:       "standard deviation of the note delay in milliseconds",
		EnvVar:      "SLOTH_VARIANCE",
		Destination: &varianceMs,
	},
	cli.IntFlag{
		Name:        "sample-rate",
		Usage:       "sample rate of the block clock in Hz",
		Destination: &sampleRate,
	},
	cli.IntFlag{
		Name:        "block-size",
		Usage:       "frames per processing block",
		Destination: &blockSize,
	},
	cli.IntFlag{
		Name:        "max-pending",
		Usage:       "maximum notes held at once, further note-ons pass straight through (0 = unbounded)",
		Destination: &maxPending,
	},
	cli.BoolFlag{
		Name:        "any-channel",
		Usage:       "delay note-ons on all 16 channels instead of channel 1 only",
		Destination: &anyChannel,
	},
	cli.Uint64Flag{
		Name:        "seed",
		Usage:       "seed for the delay generator (0 = random)",
		Destination: &seed,
	},
	cli.StringFlag{
		Name:        "config, c",
		Usage:       "config file (default ~/.config/go-sloth/config.json)",
		EnvVar:      "SLOTH_CONFIG",
		Destination: &configPath,
	},
	cli.BoolFlag{
		Name:        "debug, d",
		Usage:       "write a debug log to ~/.config/go-sloth/debug.log",
		Destination: &debugLog,
	},
	cli.BoolFlag{
		Name:        "no-tui",
		Usage:       "run headless until interrupted",
		Destination: &noTUI,
	},
}

var statsFlags = []cli.Flag{
	cli.Float64Flag{
		Name:        "variance",
		Usage:       "standard deviation in milliseconds",
		Value:       5,
		Destination: &varianceMs,
	},
	cli.IntFlag{
		Name:        "count, n",
		Usage:       "number of delays to draw",
		Value:       10000,
		Destination: &statsCount,
	},
	cli.IntFlag{
		Name:        "height",
		Usage:       "histogram height in rows (0 = no histogram)",
		Value:       8,
		Destination: &statsHeight,
	},
	cli.Uint64Flag{
		Name:        "seed",
		Usage:       "seed for the delay generator (0 = random)",
		Destination: &seed,
	},
}
