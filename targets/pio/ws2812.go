//go:build rp2040

// Package pio drives WS2812 LEDs from an RP2040 PIO state machine
package pio

import (
	"machine"

	rp2pio "github.com/tinygo-org/pio/rp2-pio"

	"hexcell/display"
)

// Bit timing in PIO cycles: T1 high, T2 data, T3 low
const (
	t1 = 2
	t2 = 5
	t3 = 3

	cyclesPerBit = t1 + t2 + t3
	bitRate      = 800000
)

// buildWS2812Program emits each bit as a high pulse whose width carries
// the data: long for 1, short for 0. Side-set drives the data pin.
func buildWS2812Program() []uint16 {
	asm := rp2pio.AssemblerV0{SidesetBits: 1}
	return []uint16{
		// .wrap_target
		// bitloop:
		asm.Out(rp2pio.OutDestX, 1).Side(0).Delay(t3 - 1).Encode(), // 0: out x, 1      side 0 [T3-1]
		asm.Jmp(3, rp2pio.JmpXZero).Side(1).Delay(t1 - 1).Encode(), // 1: jmp !x zero   side 1 [T1-1]
		// one:
		asm.Jmp(0, rp2pio.JmpAlways).Side(1).Delay(t2 - 1).Encode(), // 2: jmp bitloop side 1 [T2-1]
		// zero:
		asm.Nop().Side(0).Delay(t2 - 1).Encode(), // 3: nop            side 0 [T2-1]
		// .wrap
	}
}

const ws2812Origin = 0 // Load at offset 0 for correct jump addresses

// WS2812 is a display.Sink shifting frames out of one state machine
type WS2812 struct {
	pio    *rp2pio.PIO
	sm     rp2pio.StateMachine
	pin    machine.Pin
	offset uint8
}

var _ display.Sink = (*WS2812)(nil)

// NewWS2812 claims a free state machine and starts the program on pin
func NewWS2812(pin machine.Pin) (*WS2812, error) {
	pioNum, smNum, ok := allocate()
	if !ok {
		return nil, ErrNoStateMachine
	}
	hw := rp2pio.PIO0
	if pioNum == 1 {
		hw = rp2pio.PIO1
	}
	ws := &WS2812{pio: hw, sm: hw.StateMachine(smNum), pin: pin}
	if err := ws.init(); err != nil {
		release(pioNum, smNum)
		return nil, err
	}
	return ws, nil
}

func (ws *WS2812) init() error {
	ws.sm.TryClaim()

	program := buildWS2812Program()
	offset, err := ws.pio.AddProgram(program, ws2812Origin)
	if err != nil {
		return err
	}
	ws.offset = offset

	ws.pin.Configure(machine.PinConfig{Mode: ws.pio.PinMode()})

	cfg := rp2pio.DefaultStateMachineConfig()
	cfg.SetSidesetParams(1, false, false)
	cfg.SetSidesetPins(ws.pin)
	// Shift left, autopull every 24 bits of GRB
	cfg.SetOutShift(false, true, 24)
	cfg.SetFIFOJoin(rp2pio.FifoJoinTx)
	cfg.SetWrap(offset+uint8(len(program))-1, offset)

	whole, frac, err := rp2pio.ClkDivFromFrequency(bitRate*cyclesPerBit, machine.CPUFrequency())
	if err != nil {
		return err
	}
	cfg.SetClkDivIntFrac(whole, frac)

	// Pin directions must be set after Init
	ws.sm.Init(offset, cfg)
	ws.sm.SetPindirsConsecutive(ws.pin, 1, true)
	ws.sm.SetEnabled(true)
	return nil
}

// UpdateDisplay queues the nine LEDs in wire order
func (ws *WS2812) UpdateDisplay(buf *display.LedBuffer) {
	for _, led := range buf {
		for ws.sm.IsTxFIFOFull() {
		}
		ws.sm.TxPut(led.GRB() << 8)
	}
}
