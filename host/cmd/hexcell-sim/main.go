// Command hexcell-sim runs a table of simulated hexcells in real time,
// with an interactive console, a websocket snapshot feed, and optional
// bridges to a physical cell on a serial port and to LEDs on SPI.
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"hexcell/cell"
	"hexcell/config"
	"hexcell/core"
	"hexcell/display"
	"hexcell/host/link"
	"hexcell/host/serial"
	"hexcell/host/spiled"
	"hexcell/network"
	"hexcell/sim"
)

var (
	configPath = flag.String("config", "", "YAML table description (empty for an empty table)")
	serialDev  = flag.String("serial", "", "Serial device of a physical cell to bridge in (overrides config)")
	spiDev     = flag.String("spi", "", "SPI device mirroring one cell's LEDs (overrides config)")
	feedAddr   = flag.String("feed", "", "Websocket feed listen address (overrides config)")
	verbose    = flag.Bool("verbose", false, "Enable debug output")
)

func main() {
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			log.Fatal().Err(err).Msg("load config")
		}
	}
	applyFlags(cfg)
	if err := config.Validate(cfg); err != nil {
		log.Fatal().Err(err).Msg("config")
	}

	mesh, err := buildMesh(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("build mesh")
	}

	var closers []func() error
	defer func() {
		for _, c := range closers {
			c()
		}
	}()

	if cfg.Serial.Device != "" {
		sc := serial.DefaultConfig(cfg.Serial.Device)
		sc.Baud = cfg.Serial.Baud
		l, err := link.Open(sc)
		if err != nil {
			log.Fatal().Err(err).Msg("serial bridge")
		}
		port, _ := network.ParsePort(cfg.Serial.Port)
		if err := mesh.AttachBridge(cfg.Serial.Attach, port, l); err != nil {
			log.Fatal().Err(err).Msg("attach bridge")
		}
		closers = append(closers, l.Close)
		log.Info().Str("device", sc.Device).Stringer("at", cfg.Serial.Attach).Stringer("port", port).Msg("serial bridge up")
	}

	var mirror display.Sink
	if cfg.SPI.Device != "" {
		s, err := spiled.Open(cfg.SPI.Device, cfg.SPI.SpeedHz)
		if err != nil {
			log.Fatal().Err(err).Msg("spi leds")
		}
		mirror = s
		closers = append(closers, s.Close)
	}

	feed := sim.NewFeed()
	if cfg.Feed.Addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/ws", feed)
		go func() {
			log.Info().Str("addr", cfg.Feed.Addr).Msg("feed listening")
			if err := http.ListenAndServe(cfg.Feed.Addr, mux); err != nil {
				log.Error().Err(err).Msg("feed server")
			}
		}()
	}

	con := &console{mesh: mesh, cfg: cfg, out: os.Stdout}
	lines := make(chan string)
	go readLines(lines)

	mesh.Start()
	if err := show(mesh, cfg); err != nil {
		log.Fatal().Err(err).Msg("show")
	}
	step := time.NewTicker(cfg.Mesh.Step)
	defer step.Stop()
	publish := time.NewTicker(cfg.Feed.Interval)
	defer publish.Stop()
	stepUs := core.Microseconds(cfg.Mesh.Step / time.Microsecond)

	fmt.Println("hexcell-sim: type 'help' for commands")
	for {
		select {
		case <-step.C:
			mesh.Step(stepUs)
			if mirror != nil {
				if d, ok := mesh.Device(cfg.SPI.Mirror); ok {
					frame := d.Frame()
					mirror.UpdateDisplay(&frame)
				}
			}
		case <-publish.C:
			if feed.Clients() > 0 {
				feed.Publish(uint32(mesh.Now()), mesh.Snapshot())
			}
		case line, ok := <-lines:
			if !ok {
				return
			}
			if err := con.exec(line); err != nil {
				if errors.Is(err, errQuit) {
					return
				}
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			}
		}
	}
}

func applyFlags(cfg *config.Config) {
	if *serialDev != "" {
		cfg.Serial.Device = *serialDev
		if cfg.Serial.Baud == 0 {
			cfg.Serial.Baud = 115200
		}
		if cfg.Serial.Port == "" {
			cfg.Serial.Port = "A"
		}
	}
	if *spiDev != "" {
		cfg.SPI.Device = *spiDev
		if cfg.SPI.SpeedHz == 0 {
			cfg.SPI.SpeedHz = 2400000
		}
	}
	if *feedAddr != "" {
		cfg.Feed.Addr = *feedAddr
	}
}

// buildMesh places and links the configured cells and loads every
// configured pattern into each of them
func buildMesh(cfg *config.Config) (*sim.Mesh, error) {
	level, err := cfg.Cell.Level()
	if err != nil {
		return nil, err
	}
	opts := []cell.Option{cell.WithTiming(cfg.Cell.Timing())}
	if st := cfg.Cell.Status(); st > 0 {
		opts = append(opts, cell.WithStatusInterval(st))
	}
	mesh := sim.NewMesh(
		sim.WithCellOptions(opts...),
		sim.WithCellLogger(sim.CellLogger(log.Logger, level)),
	)

	for _, c := range cfg.Mesh.Cells {
		if _, err := mesh.NewDevice(c.At, c.UID); err != nil {
			return nil, err
		}
	}
	for _, l := range cfg.Mesh.Links {
		if err := mesh.EnableConnection(l.From, l.To); err != nil {
			return nil, err
		}
	}
	if cfg.Mesh.AutoLink {
		if err := mesh.AutoConnect(); err != nil {
			return nil, err
		}
	}

	for _, p := range cfg.Patterns {
		pat, err := p.Build()
		if err != nil {
			return nil, err
		}
		for _, at := range mesh.Devices() {
			d, _ := mesh.Device(at)
			if err := d.Core().Patterns().SetPattern(p.Slot, pat); err != nil {
				return nil, fmt.Errorf("pattern %q: %w", p.Name, err)
			}
		}
	}
	return mesh, nil
}

// show binds every LED of every cell to the configured show pattern.
// Cells reset their cursors when they start, so this runs after Start.
func show(mesh *sim.Mesh, cfg *config.Config) error {
	name := cfg.Mesh.Show
	if name == "" {
		return nil
	}
	p, _ := cfg.Pattern(name)
	for _, at := range mesh.Devices() {
		d, _ := mesh.Device(at)
		if err := d.Core().Patterns().SetAllCursors(p.Slot, true); err != nil {
			return fmt.Errorf("show %q: %w", name, err)
		}
	}
	return nil
}

func readLines(out chan<- string) {
	defer close(out)
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			out <- line
		}
	}
	if err := scanner.Err(); err != nil {
		log.Error().Err(err).Msg("reading input")
	}
}
