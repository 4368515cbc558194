package main

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/google/shlex"

	"hexcell/cell"
	"hexcell/config"
	"hexcell/core"
	"hexcell/pattern"
	"hexcell/protocol"
	"hexcell/sim"
)

var errQuit = errors.New("quit")

type command struct {
	usage string
	args  int
	run   func(c *console, args []string) error
}

// console edits and drives a mesh from text commands. It must run on the
// goroutine that steps the mesh.
type console struct {
	mesh *sim.Mesh
	cfg  *config.Config
	out  io.Writer
}

var commands map[string]command

func init() {
	commands = map[string]command{
		"add":       {"add X Y UID", 3, (*console).add},
		"move":      {"move X Y X2 Y2", 4, (*console).move},
		"remove":    {"remove X Y", 2, (*console).remove},
		"link":      {"link X Y X2 Y2", 4, (*console).link},
		"unlink":    {"unlink X Y X2 Y2", 4, (*console).unlink},
		"autolink":  {"autolink", 0, (*console).autolink},
		"broadcast": {"broadcast X Y PATTERN|RRGGBB", 3, (*console).broadcast},
		"forward":   {"forward X Y NX NY PATTERN|RRGGBB", 5, (*console).forward},
		"route":     {"route X Y NX NY", 4, (*console).route},
		"enumerate": {"enumerate X Y", 2, (*console).enumerate},
		"result":    {"result X Y", 2, (*console).result},
		"step":      {"step MS", 1, (*console).step},
		"show":      {"show [PER_ROW]", -1, (*console).show},
		"status":    {"status", 0, (*console).status},
		"help":      {"help", 0, (*console).help},
		"quit":      {"quit", 0, func(*console, []string) error { return errQuit }},
	}
}

// exec runs one console line
func (c *console) exec(line string) error {
	words, err := shlex.Split(line)
	if err != nil {
		return err
	}
	if len(words) == 0 {
		return nil
	}
	cmd, ok := commands[strings.ToLower(words[0])]
	if !ok {
		return fmt.Errorf("unknown command %q (try help)", words[0])
	}
	args := words[1:]
	if cmd.args >= 0 && len(args) != cmd.args {
		return fmt.Errorf("usage: %s", cmd.usage)
	}
	return cmd.run(c, args)
}

func ints(args []string) ([]int, error) {
	out := make([]int, len(args))
	for i, a := range args {
		v, err := strconv.Atoi(a)
		if err != nil {
			return nil, fmt.Errorf("%q is not a number", a)
		}
		out[i] = v
	}
	return out, nil
}

func coords(args []string) (sim.Coordinate, sim.Coordinate, error) {
	v, err := ints(args)
	if err != nil {
		return sim.Coordinate{}, sim.Coordinate{}, err
	}
	a := sim.Coordinate{X: v[0], Y: v[1]}
	if len(v) < 4 {
		return a, sim.Coordinate{}, nil
	}
	return a, sim.Coordinate{X: v[2], Y: v[3]}, nil
}

func (c *console) device(args []string) (*sim.Cell, error) {
	at, _, err := coords(args[:2])
	if err != nil {
		return nil, err
	}
	d, ok := c.mesh.Device(at)
	if !ok {
		return nil, fmt.Errorf("%v: %w", at, sim.ErrUnknownDevice)
	}
	return d, nil
}

func (c *console) add(args []string) error {
	at, _, err := coords(args[:2])
	if err != nil {
		return err
	}
	uid, err := strconv.ParseUint(args[2], 0, 32)
	if err != nil || uid == 0 {
		return fmt.Errorf("bad uid %q", args[2])
	}
	if _, err := c.mesh.NewDevice(at, uint32(uid)); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "added %08x at %v\n", uid, at)
	return nil
}

func (c *console) move(args []string) error {
	from, to, err := coords(args)
	if err != nil {
		return err
	}
	return c.mesh.MoveDevice(from, to)
}

func (c *console) remove(args []string) error {
	at, _, err := coords(args)
	if err != nil {
		return err
	}
	return c.mesh.RemoveDevice(at)
}

func (c *console) link(args []string) error {
	a, b, err := coords(args)
	if err != nil {
		return err
	}
	return c.mesh.EnableConnection(a, b)
}

func (c *console) unlink(args []string) error {
	a, b, err := coords(args)
	if err != nil {
		return err
	}
	c.mesh.DisableConnection(a, b)
	return nil
}

func (c *console) autolink([]string) error {
	return c.mesh.AutoConnect()
}

// payload builds the command stream showing a configured pattern or a
// solid color on every LED of the receiving cell. Colors use slot 0.
func (c *console) payload(what string) ([]byte, error) {
	var (
		pat  pattern.Pattern
		slot int
		err  error
	)
	if p, ok := c.cfg.Pattern(what); ok {
		pat, err = p.Build()
		slot = p.Slot
	} else {
		led, perr := config.ParseColor(what)
		if perr != nil {
			return nil, fmt.Errorf("%q is neither a pattern nor a color", what)
		}
		pat, err = pattern.New(pattern.Element{Kind: pattern.Solid, Color: led, Duration: core.Millis(1000)})
	}
	if err != nil {
		return nil, err
	}
	out := protocol.NewScratchOutput()
	cell.EncodeSetPattern(out, slot, &pat)
	cell.EncodeBindAll(out, slot, true)
	return out.Result(), nil
}

func (c *console) broadcast(args []string) error {
	d, err := c.device(args)
	if err != nil {
		return err
	}
	body, err := c.payload(args[2])
	if err != nil {
		return err
	}
	return d.Core().Network().Broadcast(body)
}

func (c *console) forward(args []string) error {
	d, err := c.device(args)
	if err != nil {
		return err
	}
	v, err := ints(args[2:4])
	if err != nil {
		return err
	}
	body, err := c.payload(args[4])
	if err != nil {
		return err
	}
	return d.Core().Network().Forward(int16(v[0]), int16(v[1]), body)
}

func (c *console) route(args []string) error {
	d, err := c.device(args)
	if err != nil {
		return err
	}
	v, err := ints(args[2:])
	if err != nil {
		return err
	}
	return d.Core().Network().RouteTo(int16(v[0]), int16(v[1]))
}

func (c *console) enumerate(args []string) error {
	d, err := c.device(args)
	if err != nil {
		return err
	}
	return d.Core().Network().Enumerate()
}

// result prints the last route and enumeration a cell collected
func (c *console) result(args []string) error {
	d, err := c.device(args)
	if err != nil {
		return err
	}
	fsm := d.Core().Network()
	r := fsm.LastRoute()
	if r.Complete {
		fmt.Fprintf(c.out, "route (%d,%d): %v in %d hops\n", r.TargetX, r.TargetY, r.Responder, r.Hops)
	} else {
		fmt.Fprintf(c.out, "route (%d,%d): pending\n", r.TargetX, r.TargetY)
	}
	topo := fsm.Topology()
	fmt.Fprintf(c.out, "enumerated %d cells\n", len(topo))
	for _, id := range topo {
		fmt.Fprintf(c.out, "  %v\n", id)
	}
	return nil
}

func (c *console) step(args []string) error {
	v, err := ints(args)
	if err != nil {
		return err
	}
	for i := 0; i < v[0]; i++ {
		c.mesh.Step(core.Millis(1))
	}
	return nil
}

func (c *console) show(args []string) error {
	perRow := 4
	if len(args) > 0 {
		v, err := ints(args[:1])
		if err != nil {
			return err
		}
		perRow = v[0]
	}
	fmt.Fprintln(c.out, sim.RenderMesh(c.mesh.Snapshot(), perRow))
	return nil
}

func (c *console) status([]string) error {
	for _, s := range c.mesh.Snapshot() {
		fmt.Fprintf(c.out, "%v %08x %-13s (%d,%d) root=%08x parent=%s errors=%d timeouts=%d\n",
			s.Coord, s.UID, s.State, s.NetX, s.NetY, s.Root, s.Parent, s.Errors, s.Timeouts)
	}
	return nil
}

func (c *console) help([]string) error {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(c.out, "  %s\n", commands[name].usage)
	}
	if coords := c.mesh.Devices(); len(coords) > 0 {
		first, _ := c.mesh.Device(coords[0])
		fmt.Fprintf(c.out, "cell commands:\n")
		for _, line := range strings.Split(strings.TrimSpace(first.Core().Commands().GetDictionary()), "\n") {
			fmt.Fprintf(c.out, "  %s\n", line)
		}
	}
	return nil
}
