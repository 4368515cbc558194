package config

import (
	"fmt"

	"hexcell/display"
	"hexcell/network"
	"hexcell/sim"
)

// Validate checks configuration correctness. It does not modify cfg.
func Validate(cfg *Config) error {
	t := cfg.Cell
	for name, d := range map[string]int64{
		"poll_interval":     int64(t.PollInterval),
		"query_timeout":     int64(t.QueryTimeout),
		"route_timeout":     int64(t.RouteTimeout),
		"discovery_timeout": int64(t.DiscoveryTimeout),
		"recover_delay":     int64(t.RecoverDelay),
	} {
		if d <= 0 {
			return fmt.Errorf("cell: %s must be positive", name)
		}
	}
	if t.StatusInterval < 0 {
		return fmt.Errorf("cell: status_interval must not be negative")
	}
	if _, err := t.Level(); err != nil {
		return fmt.Errorf("cell: %w", err)
	}

	// uid and position uniqueness
	uids := make(map[uint32]sim.Coordinate)
	cells := make(map[sim.Coordinate]uint32)
	for _, c := range cfg.Mesh.Cells {
		if c.UID == network.UIDUnassigned {
			return fmt.Errorf("mesh: cell at %v has reserved uid 0", c.At)
		}
		if prev, ok := uids[c.UID]; ok {
			return fmt.Errorf("mesh: uid %08x used at %v and %v", c.UID, prev, c.At)
		}
		if prev, ok := cells[c.At]; ok {
			return fmt.Errorf("mesh: cells %08x and %08x both at %v", prev, c.UID, c.At)
		}
		uids[c.UID] = c.At
		cells[c.At] = c.UID
	}
	for _, l := range cfg.Mesh.Links {
		_, okFrom := cells[l.From]
		_, okTo := cells[l.To]
		if !okFrom || !okTo {
			return fmt.Errorf("mesh: link %v-%v names an empty position", l.From, l.To)
		}
		if !l.From.IsAdjacent(l.To) {
			return fmt.Errorf("mesh: link %v-%v joins cells that are not adjacent", l.From, l.To)
		}
	}
	if cfg.Mesh.Step <= 0 {
		return fmt.Errorf("mesh: step must be positive")
	}

	names := make(map[string]bool)
	slots := make(map[int]string)
	for _, p := range cfg.Patterns {
		if p.Name == "" {
			return fmt.Errorf("patterns: pattern in slot %d has no name", p.Slot)
		}
		if names[p.Name] {
			return fmt.Errorf("patterns: duplicate name %q", p.Name)
		}
		names[p.Name] = true
		if p.Slot < 0 || p.Slot >= display.LEDCount {
			return fmt.Errorf("patterns: %q slot %d out of range", p.Name, p.Slot)
		}
		if prev, ok := slots[p.Slot]; ok {
			return fmt.Errorf("patterns: %q and %q share slot %d", prev, p.Name, p.Slot)
		}
		slots[p.Slot] = p.Name
		if len(p.Elements) == 0 {
			return fmt.Errorf("patterns: %q has no elements", p.Name)
		}
		if _, err := p.Build(); err != nil {
			return fmt.Errorf("patterns: %w", err)
		}
	}
	if s := cfg.Mesh.Show; s != "" && !names[s] {
		return fmt.Errorf("mesh: show names unknown pattern %q", s)
	}

	if cfg.Feed.Interval <= 0 {
		return fmt.Errorf("feed: interval must be positive")
	}

	if cfg.Serial.Device != "" {
		if cfg.Serial.Baud <= 0 {
			return fmt.Errorf("serial: baud must be positive")
		}
		if _, err := network.ParsePort(cfg.Serial.Port); err != nil {
			return fmt.Errorf("serial: %w", err)
		}
		if _, ok := cells[cfg.Serial.Attach]; !ok {
			return fmt.Errorf("serial: no cell at attach point %v", cfg.Serial.Attach)
		}
	}
	if cfg.SPI.Device != "" {
		if cfg.SPI.SpeedHz <= 0 {
			return fmt.Errorf("spi: speed_hz must be positive")
		}
		if _, ok := cells[cfg.SPI.Mirror]; !ok {
			return fmt.Errorf("spi: no cell at mirror point %v", cfg.SPI.Mirror)
		}
	}
	return nil
}
