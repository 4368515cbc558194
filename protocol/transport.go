package protocol

import "sync/atomic"

// Frame layout on a serial link:
//
//	sync(0x7E) | version | port | status | length(2, LE) | payload | crc16(2, BE)
//
// The CRC covers version through payload.
const (
	FrameSync     = 0x7E
	FrameHeader   = 2 + HeaderSize // sync + version + header
	FrameTrailer  = 2              // CRC
	FrameOverhead = FrameHeader + FrameTrailer
	FrameMax      = FrameOverhead + MaxPayload

	framePositionVersion = 1
	framePositionHeader  = 2
)

// FrameHandler receives each decoded message. The message is only valid
// for the duration of the call.
type FrameHandler func(m *Message)

// FrameErrorHandler is told about every frame that was discarded
type FrameErrorHandler func(err error)

// LinkCodec frames messages onto a byte stream and recovers them on the
// receive side, resynchronizing on the sync byte after any corruption.
type LinkCodec struct {
	isSynchronized uint32 // atomic bool (0 = false, 1 = true)
	received       uint32
	discarded      uint32

	handler FrameHandler
	onError FrameErrorHandler
	scratch Message
}

// NewLinkCodec creates a codec delivering decoded messages to handler
func NewLinkCodec(handler FrameHandler) *LinkCodec {
	return &LinkCodec{
		isSynchronized: 1,
		handler:        handler,
	}
}

// SetErrorHandler sets a callback for discarded frames
func (c *LinkCodec) SetErrorHandler(h FrameErrorHandler) {
	c.onError = h
}

// Receive decodes every complete frame in input and pops the consumed
// bytes. A partial trailing frame is left in place for the next call.
func (c *LinkCodec) Receive(input InputBuffer) {
	data := input.Data()

	for len(data) > 0 {
		if !c.getSynchronized() {
			syncPos := -1
			for i, b := range data {
				if b == FrameSync {
					syncPos = i
					break
				}
			}
			if syncPos < 0 {
				data = nil
				break
			}
			data = data[syncPos:]
			c.setSynchronized(true)
			continue
		}

		if data[0] != FrameSync {
			c.setSynchronized(false)
			continue
		}

		if len(data) < FrameOverhead {
			break
		}

		if data[framePositionVersion] != WireVersion {
			c.discard(InvalidMessageContents)
			data = data[1:]
			continue
		}

		hdr, err := DecodeHeader(data[framePositionHeader:])
		if err != nil {
			c.discard(err)
			data = data[1:]
			continue
		}

		frameLen := FrameOverhead + int(hdr.Length)
		if len(data) < frameLen {
			break
		}

		crcPos := FrameHeader + int(hdr.Length)
		frameCRC := uint16(data[crcPos])<<8 | uint16(data[crcPos+1])
		if frameCRC != CRC16(data[framePositionVersion:crcPos]) {
			c.discard(ChecksumFailure)
			data = data[1:]
			continue
		}

		c.scratch.Header = hdr
		copy(c.scratch.Payload[:], data[FrameHeader:crcPos])
		data = data[frameLen:]
		atomic.AddUint32(&c.received, 1)
		if c.handler != nil {
			c.handler(&c.scratch)
		}
	}

	consumed := input.Available() - len(data)
	if consumed > 0 {
		input.Pop(consumed)
	}
}

func (c *LinkCodec) discard(err error) {
	c.setSynchronized(false)
	atomic.AddUint32(&c.discarded, 1)
	if c.onError != nil {
		c.onError(err)
	}
}

// EncodeFrame writes m as a complete frame
func EncodeFrame(output OutputBuffer, m *Message) {
	output.Output([]byte{FrameSync})
	cursor := output.CurPosition()
	m.Encode(output)
	crc := CRC16(output.DataSince(cursor))
	output.Output([]byte{
		uint8((crc & 0xFF00) >> 8),
		uint8(crc & 0xFF),
	})
}

// MarshalFrame returns m framed in a new slice
func MarshalFrame(m *Message) []byte {
	out := NewScratchOutput()
	EncodeFrame(out, m)
	frame := make([]byte, out.CurPosition())
	copy(frame, out.Result())
	return frame
}

// Received returns the number of frames decoded
func (c *LinkCodec) Received() uint32 {
	return atomic.LoadUint32(&c.received)
}

// Discarded returns the number of frames dropped for corruption
func (c *LinkCodec) Discarded() uint32 {
	return atomic.LoadUint32(&c.discarded)
}

// Reset returns the codec to the synchronized state
func (c *LinkCodec) Reset() {
	atomic.StoreUint32(&c.isSynchronized, 1)
}

func (c *LinkCodec) getSynchronized() bool {
	return atomic.LoadUint32(&c.isSynchronized) != 0
}

func (c *LinkCodec) setSynchronized(val bool) {
	if val {
		atomic.StoreUint32(&c.isSynchronized, 1)
	} else {
		atomic.StoreUint32(&c.isSynchronized, 0)
	}
}
