// Package link carries framed cell messages over a byte stream, such as
// the serial line between the desktop and a physical cell.
package link

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"hexcell/host/serial"
	"hexcell/protocol"
)

// Link frames outgoing messages onto port and decodes incoming frames on
// a background reader. It satisfies sim.Bridge.
type Link struct {
	port io.ReadWriteCloser

	codec *protocol.LinkCodec
	input *protocol.FifoBuffer
	inbox protocol.MessageQueue
	errs  chan error

	writeMutex sync.Mutex
	closeOnce  sync.Once

	log zerolog.Logger

	stopChan chan struct{}
	doneChan chan struct{}
}

// Frame errors beyond this many unread are only counted
const errorBacklog = 16

type Option func(*Link)

// WithLogger replaces the global zerolog logger
func WithLogger(l zerolog.Logger) Option {
	return func(k *Link) { k.log = l }
}

// New starts a link over port
func New(port io.ReadWriteCloser, opts ...Option) *Link {
	l := &Link{
		port:     port,
		input:    protocol.NewFifoBuffer(2 * protocol.FrameMax),
		errs:     make(chan error, errorBacklog),
		log:      log.Logger,
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.codec = protocol.NewLinkCodec(func(m *protocol.Message) {
		if !l.inbox.Push(m) {
			l.log.Warn().Uint8("port", m.Header.Port).Msg("link inbox full, frame dropped")
		}
	})
	l.codec.SetErrorHandler(func(err error) {
		l.log.Debug().Err(err).Msg("frame discarded")
		select {
		case l.errs <- err:
		default:
		}
	})

	go l.readLoop()
	return l
}

// Open opens the serial device in cfg and starts a link on it
func Open(cfg *serial.Config, opts ...Option) (*Link, error) {
	port, err := serial.Open(cfg)
	if err != nil {
		return nil, err
	}
	return New(port, opts...), nil
}

// SendMessage writes m as one frame
func (l *Link) SendMessage(m *protocol.Message) error {
	frame := protocol.MarshalFrame(m)

	l.writeMutex.Lock()
	defer l.writeMutex.Unlock()

	n, err := l.port.Write(frame)
	if err != nil {
		return fmt.Errorf("link write: %w", errors.Join(protocol.Chain(protocol.UartError, protocol.DestinationUnreachable), err))
	}
	if n != len(frame) {
		return fmt.Errorf("link write: incomplete %d/%d bytes: %w", n, len(frame), protocol.UartError)
	}
	return nil
}

// GetMessage dequeues a received message
func (l *Link) GetMessage() (protocol.Message, bool) {
	var m protocol.Message
	ok := l.inbox.Pop(&m)
	return m, ok
}

// Errors delivers the error of every discarded frame. It satisfies
// sim.ErrorSource.
func (l *Link) Errors() <-chan error {
	return l.errs
}

// readLoop feeds the codec until Close or end of stream
func (l *Link) readLoop() {
	defer close(l.doneChan)

	buffer := make([]byte, 256)
	for {
		select {
		case <-l.stopChan:
			return
		default:
		}

		n, err := l.port.Read(buffer)
		if n > 0 {
			for data := buffer[:n]; len(data) > 0; {
				w := l.input.Write(data)
				data = data[w:]
				l.codec.Receive(l.input)
				if w == 0 && len(data) > 0 {
					// Unframed garbage filling the buffer
					l.input.Reset()
				}
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) {
				return
			}
			select {
			case <-l.stopChan:
				return
			default:
			}
			l.log.Debug().Err(err).Msg("link read")
			time.Sleep(10 * time.Millisecond)
		}
	}
}

// Close stops the reader and closes the port
func (l *Link) Close() error {
	var err error
	l.closeOnce.Do(func() {
		close(l.stopChan)
		err = l.port.Close()
		<-l.doneChan
	})
	return err
}

// Stats reports frames decoded, frames discarded for corruption and
// messages lost to a full inbox
func (l *Link) Stats() (received, discarded, dropped uint32) {
	return l.codec.Received(), l.codec.Discarded(), l.inbox.Dropped()
}
