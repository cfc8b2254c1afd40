package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/afero"
	"github.com/urfave/cli"

	"go-sloth/config"
	"go-sloth/debug"
	"go-sloth/host"
	"go-sloth/humanize"
	"go-sloth/midi"
	"go-sloth/theme"
	"go-sloth/tui"
)

func main() {
	app := cli.App{
		Name:     "go-sloth",
		HelpName: "go-sloth",
		Usage:    "humanize MIDI timing by randomly delaying note-ons",
		Version:  "0.1.0",
		Flags:    runFlags,
		Action:   run,
		Commands: []cli.Command{
			{
				Name:   "run",
				Usage:  "connect the ports and start delaying notes (default)",
				Flags:  runFlags,
				Action: run,
			},
			{
				Name:   "ports",
				Usage:  "list MIDI input and output ports",
				Action: listPorts,
			},
			{
				Name:   "stats",
				Usage:  "draw delays offline and print their distribution",
				Flags:  statsFlags,
				Action: stats,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	if debugLog {
		if err := debug.Enable(""); err != nil {
			return err
		}
		defer debug.Disable()
	}

	fs := afero.NewOsFs()
	store, err := config.NewStore(fs, configPath)
	if err != nil {
		return err
	}
	cfg, err := store.Load()
	if err != nil {
		return err
	}
	applyFlags(c, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	debug.Log("main", "config %s: %+v", store.Path(), *cfg)

	palette, err := theme.LoadOrDefault(fs, cfg.UI.Palette)
	if err != nil {
		return err
	}

	variance := humanize.NewVariance(cfg.Humanize.VarianceMs/1000, cfg.Humanize.MaxVarianceMs/1000)
	deviceMgr := midi.NewDeviceManager(cfg.Ports.Input, cfg.Ports.Output)
	engine := host.New(variance, deviceMgr.Inputs(), deviceMgr, host.Options{
		SampleRate: float64(cfg.Engine.SampleRate),
		BlockSize:  cfg.Engine.BlockSize,
		MaxPending: cfg.Humanize.MaxPending,
		AnyChannel: cfg.Humanize.AnyChannel,
		Seed:       seed,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go deviceMgr.Run(ctx)
	engineDone := make(chan struct{})
	go func() {
		engine.Run(ctx)
		close(engineDone)
	}()

	if cfg.Ports.Input == "" {
		fmt.Println("No input port configured - pass --in (see `go-sloth ports`)")
	}

	if noTUI {
		fmt.Printf("go-sloth: variance %s, block %d @ %d Hz. Ctrl+C to stop.\n",
			variance.Text(), cfg.Engine.BlockSize, cfg.Engine.SampleRate)
		<-ctx.Done()
	} else {
		m := tui.NewModel(engine, deviceMgr, store, cfg, theme.New(palette))
		p := tea.NewProgram(m, tea.WithAltScreen())
		if _, err := p.Run(); err != nil {
			cancel()
			<-engineDone
			return fmt.Errorf("tui: %w", err)
		}
	}

	cancel()
	<-engineDone
	st := engine.Stats()
	debug.Log("main", "stopped: %+v", st)
	return nil
}

// applyFlags overrides config file values with flags given on the command line
func applyFlags(c *cli.Context, cfg *config.Config) {
	if c.IsSet("in") {
		cfg.Ports.Input = inPort
	}
	if c.IsSet("out") {
		cfg.Ports.Output = outPort
	}
	if c.IsSet("variance") {
		cfg.Humanize.VarianceMs = varianceMs
	}
	if c.IsSet("sample-rate") {
		cfg.Engine.SampleRate = sampleRate
	}
	if c.IsSet("block-size") {
		cfg.Engine.BlockSize = blockSize
	}
	if c.IsSet("max-pending") {
		cfg.Humanize.MaxPending = maxPending
	}
	if c.IsSet("any-channel") {
		cfg.Humanize.AnyChannel = anyChannel
	}
}

func listPorts(c *cli.Context) error {
	fmt.Println("(waiting up to 3 seconds...)")
	ins, outs, err := midi.PortNames()
	if err != nil {
		fmt.Println("Fix on macOS: sudo killall coreaudiod midiserver")
		return err
	}

	fmt.Println("=== MIDI Input Ports ===")
	for i, name := range ins {
		fmt.Printf("  %d: %s\n", i, name)
	}
	fmt.Println("\n=== MIDI Output Ports ===")
	for i, name := range outs {
		fmt.Printf("  %d: %s\n", i, name)
	}
	return nil
}
