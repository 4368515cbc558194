package cell

import (
	"errors"

	"hexcell/core"
	"hexcell/network"
	"hexcell/pattern"
	"hexcell/protocol"
)

// Remote command ids. Every cell registers the commands in this order.
const (
	CmdSetPattern uint16 = iota
	CmdBindCursor
	CmdBindAll
	CmdStartPatterns
	CmdStopPatterns
)

var errBadArgument = errors.New("bad argument")

func (c *Core) registerCommands() {
	c.commands.Register("set_pattern", "slot=%u pattern=%*s", c.cmdSetPattern)
	c.commands.Register("bind_cursor", "cursor=%u pattern=%u restart=%c", c.cmdBindCursor)
	c.commands.Register("bind_all", "pattern=%u restart=%c", c.cmdBindAll)
	c.commands.Register("start_patterns", "", func(*[]byte) error {
		c.patterns.Start()
		return nil
	})
	c.commands.Register("stop_patterns", "", func(*[]byte) error {
		c.patterns.Stop()
		return nil
	})
}

func (c *Core) cmdSetPattern(data *[]byte) error {
	slot, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	p, err := pattern.Decode(data)
	if err != nil {
		return err
	}
	return c.patterns.SetPattern(int(slot), p)
}

func (c *Core) cmdBindCursor(data *[]byte) error {
	cursor, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	slot, restart, err := decodeBinding(data)
	if err != nil {
		return err
	}
	return c.patterns.SetCursorToPattern(int(cursor), slot, restart)
}

func (c *Core) cmdBindAll(data *[]byte) error {
	slot, restart, err := decodeBinding(data)
	if err != nil {
		return err
	}
	return c.patterns.SetAllCursors(slot, restart)
}

func decodeBinding(data *[]byte) (int, bool, error) {
	slot, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return 0, false, err
	}
	restart, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return 0, false, err
	}
	if restart > 1 {
		return 0, false, errBadArgument
	}
	return int(slot), restart == 1, nil
}

// onPayload runs the commands carried by a FORWARD or BROADCAST payload
func (c *Core) onPayload(d network.Delivery) {
	if err := c.commands.DispatchFrame(d.Payload); err != nil {
		c.commandErrors++
		if c.events != nil {
			c.events.Record(core.EvtCommandFail, 0, c.lastTick, d.OriginUID, uint32(d.Query))
		}
		c.log.Warn("cell: command from " + core.Hex32(d.OriginUID) + ": " + err.Error())
	}
}

// EncodeSetPattern appends a set_pattern command
func EncodeSetPattern(out protocol.OutputBuffer, slot int, p *pattern.Pattern) {
	protocol.EncodeVLQUint(out, uint32(CmdSetPattern))
	protocol.EncodeVLQUint(out, uint32(slot))
	pattern.Encode(out, p)
}

// EncodeBindCursor appends a bind_cursor command
func EncodeBindCursor(out protocol.OutputBuffer, cursor, slot int, restart bool) {
	protocol.EncodeVLQUint(out, uint32(CmdBindCursor))
	protocol.EncodeVLQUint(out, uint32(cursor))
	encodeBinding(out, slot, restart)
}

// EncodeBindAll appends a bind_all command
func EncodeBindAll(out protocol.OutputBuffer, slot int, restart bool) {
	protocol.EncodeVLQUint(out, uint32(CmdBindAll))
	encodeBinding(out, slot, restart)
}

// EncodeStart appends a start_patterns command
func EncodeStart(out protocol.OutputBuffer) {
	protocol.EncodeVLQUint(out, uint32(CmdStartPatterns))
}

// EncodeStop appends a stop_patterns command
func EncodeStop(out protocol.OutputBuffer) {
	protocol.EncodeVLQUint(out, uint32(CmdStopPatterns))
}

func encodeBinding(out protocol.OutputBuffer, slot int, restart bool) {
	protocol.EncodeVLQUint(out, uint32(slot))
	r := uint32(0)
	if restart {
		r = 1
	}
	protocol.EncodeVLQUint(out, r)
}
