// Package config loads the YAML description of a simulated hexcell table:
// cell timing, the cells and their links, patterns, and the host bridges.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"hexcell/core"
	"hexcell/display"
	"hexcell/network"
	"hexcell/pattern"
	"hexcell/sim"
)

type Config struct {
	Cell     CellConfig      `yaml:"cell"`
	Mesh     MeshConfig      `yaml:"mesh"`
	Patterns []PatternConfig `yaml:"patterns,omitempty"`
	Feed     FeedConfig      `yaml:"feed"`
	Serial   SerialConfig    `yaml:"serial,omitempty"`
	SPI      SPIConfig       `yaml:"spi,omitempty"`
}

// CellConfig holds the runtime settings shared by every simulated cell
type CellConfig struct {
	PollInterval     time.Duration `yaml:"poll_interval"`
	QueryTimeout     time.Duration `yaml:"query_timeout"`
	RouteTimeout     time.Duration `yaml:"route_timeout"`
	DiscoveryTimeout time.Duration `yaml:"discovery_timeout"`
	RecoverDelay     time.Duration `yaml:"recover_delay"`
	StatusInterval   time.Duration `yaml:"status_interval,omitempty"` // 0 disables status lines
	LogLevel         string        `yaml:"log_level"`
}

type CellEntry struct {
	UID uint32         `yaml:"uid"`
	At  sim.Coordinate `yaml:"at"`
}

type LinkEntry struct {
	From sim.Coordinate `yaml:"from"`
	To   sim.Coordinate `yaml:"to"`
}

type MeshConfig struct {
	Cells    []CellEntry   `yaml:"cells"`
	Links    []LinkEntry   `yaml:"links,omitempty"`
	AutoLink bool          `yaml:"auto_link"`      // link every adjacent pair
	Show     string        `yaml:"show,omitempty"` // pattern bound to every LED at start
	Step     time.Duration `yaml:"step"`
}

type ElementConfig struct {
	Kind     string        `yaml:"kind"`
	Color    string        `yaml:"color"` // #rrggbb
	Duration time.Duration `yaml:"duration"`
}

type PatternConfig struct {
	Name     string          `yaml:"name"`
	Slot     int             `yaml:"slot"`
	Elements []ElementConfig `yaml:"elements"`
}

type FeedConfig struct {
	Addr     string        `yaml:"addr,omitempty"` // e.g. :8080; empty disables the feed
	Interval time.Duration `yaml:"interval"`
}

// SerialConfig bridges a physical cell into the table through one port
// of a simulated cell
type SerialConfig struct {
	Device string         `yaml:"device,omitempty"` // e.g. /dev/ttyACM0
	Baud   int            `yaml:"baud,omitempty"`
	Attach sim.Coordinate `yaml:"attach"`
	Port   string         `yaml:"port,omitempty"` // A..F
}

// SPIConfig mirrors one simulated cell onto a WS2812 strip
type SPIConfig struct {
	Device  string         `yaml:"device,omitempty"` // e.g. /dev/spidev0.0
	SpeedHz int            `yaml:"speed_hz,omitempty"`
	Mirror  sim.Coordinate `yaml:"mirror"`
}

// Load reads and parses the file at path
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes b, fills defaults and validates the result
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}
	applyDefaults(&c)
	if err := Validate(&c); err != nil {
		return nil, err
	}
	return &c, nil
}

func Save(path string, c *Config) error {
	b, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0644)
}

// Default returns a configuration with every default filled in and no cells
func Default() *Config {
	var c Config
	applyDefaults(&c)
	return &c
}

// applyDefaults fills in missing values
func applyDefaults(c *Config) {
	def := network.DefaultTiming()
	if c.Cell.PollInterval == 0 {
		c.Cell.PollInterval = duration(def.PollInterval)
	}
	if c.Cell.QueryTimeout == 0 {
		c.Cell.QueryTimeout = duration(def.QueryTimeout)
	}
	if c.Cell.RouteTimeout == 0 {
		c.Cell.RouteTimeout = duration(def.RouteTimeout)
	}
	if c.Cell.DiscoveryTimeout == 0 {
		c.Cell.DiscoveryTimeout = duration(def.DiscoveryTimeout)
	}
	if c.Cell.RecoverDelay == 0 {
		c.Cell.RecoverDelay = duration(def.RecoverDelay)
	}
	if c.Cell.LogLevel == "" {
		c.Cell.LogLevel = "info"
	}
	if c.Mesh.Step == 0 {
		c.Mesh.Step = time.Millisecond
	}
	if c.Feed.Interval == 0 {
		c.Feed.Interval = 50 * time.Millisecond
	}
	if c.Serial.Device != "" {
		if c.Serial.Baud == 0 {
			c.Serial.Baud = 115200
		}
		if c.Serial.Port == "" {
			c.Serial.Port = "A"
		}
	}
	if c.SPI.Device != "" && c.SPI.SpeedHz == 0 {
		c.SPI.SpeedHz = 2400000
	}
}

func duration(us core.Microseconds) time.Duration {
	return time.Duration(us) * time.Microsecond
}

func micros(d time.Duration) core.Microseconds {
	return core.Microseconds(d / time.Microsecond)
}

// Timing converts the cell section to network timing
func (c CellConfig) Timing() network.Timing {
	return network.Timing{
		PollInterval:     micros(c.PollInterval),
		QueryTimeout:     micros(c.QueryTimeout),
		RouteTimeout:     micros(c.RouteTimeout),
		DiscoveryTimeout: micros(c.DiscoveryTimeout),
		RecoverDelay:     micros(c.RecoverDelay),
	}
}

// Status returns the status report interval
func (c CellConfig) Status() core.Microseconds {
	return micros(c.StatusInterval)
}

// Level parses LogLevel by name, case-insensitively
func (c CellConfig) Level() (core.LogLevel, error) {
	return ParseLevel(c.LogLevel)
}

func ParseLevel(s string) (core.LogLevel, error) {
	for l := core.LogOff; l <= core.LogFatal; l++ {
		if strings.EqualFold(s, l.String()) {
			return l, nil
		}
	}
	return core.LogOff, fmt.Errorf("unknown log level %q", s)
}

// Build converts the element list into a pattern
func (p PatternConfig) Build() (pattern.Pattern, error) {
	b := pattern.NewBuilder()
	for i, e := range p.Elements {
		el, err := e.element()
		if err != nil {
			return pattern.Pattern{}, fmt.Errorf("pattern %q element %d: %w", p.Name, i, err)
		}
		b.Then(el.Kind, el.Color, el.Duration)
	}
	pat, err := b.Finish()
	if err != nil {
		return pattern.Pattern{}, fmt.Errorf("pattern %q: %w", p.Name, err)
	}
	return pat, nil
}

func (e ElementConfig) element() (pattern.Element, error) {
	kind, ok := pattern.ParseKind(e.Kind)
	if !ok {
		return pattern.Element{}, fmt.Errorf("unknown kind %q", e.Kind)
	}
	color, err := ParseColor(e.Color)
	if err != nil {
		return pattern.Element{}, err
	}
	if e.Duration <= 0 {
		return pattern.Element{}, fmt.Errorf("duration must be positive")
	}
	return pattern.Element{Kind: kind, Color: color, Duration: micros(e.Duration)}, nil
}

// ParseColor accepts #rrggbb or rrggbb
func ParseColor(s string) (display.Led, error) {
	h := strings.TrimPrefix(s, "#")
	if len(h) != 6 {
		return display.Off, fmt.Errorf("color %q: want #rrggbb", s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return display.Off, fmt.Errorf("color %q: %w", s, err)
	}
	return display.Hex(uint32(v)), nil
}

// Pattern returns the pattern named name
func (c *Config) Pattern(name string) (PatternConfig, bool) {
	for _, p := range c.Patterns {
		if p.Name == name {
			return p, true
		}
	}
	return PatternConfig{}, false
}
