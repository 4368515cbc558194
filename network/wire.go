package network

import "encoding/binary"

// Body layouts (little endian), after the [query, tag] prefix:
//
//	WHOAMI    Q   asker uid(4)
//	          OK  assigned(8) responder(8) root uid(4) responder parent uid(4) responder hops(1)
//	          NAK responder uid(4)
//	GETID     Q   -
//	          OK  id(8) root uid(4)
//	SETID     Q   assigned(8) root uid(4) sender(8) sender parent uid(4) sender hops(1)
//	          OK  id(8)
//	          NAK id(8) root uid(4)
//	FORWARD   Q   x(2) y(2) hops(1) origin(8) payload
//	ROUTETO   Q   x(2) y(2) hops(1) origin(8)
//	          OK  x(2) y(2) hops(1) responder(8) route hops(1)
//	ENUMERATE Q   origin uid(4) hops(1)
//	          OK  origin uid(4) reporter(8)
//	BROADCAST Q   origin uid(4) hops(1) payload
//	DETACH    Q   root uid(4), no response
//
// Hops in WHOAMI and SETID count the distance from the sender to its root.
const bodyPrefix = 2

// bodyWriter appends fields to a fixed message body
type bodyWriter struct {
	buf [256]byte
	n   int
}

func (w *bodyWriter) reset(q Query, tag uint8) {
	w.buf[0] = uint8(q)
	w.buf[1] = tag
	w.n = bodyPrefix
}

func (w *bodyWriter) u8(v uint8) {
	w.buf[w.n] = v
	w.n++
}

func (w *bodyWriter) i16(v int16) {
	binary.LittleEndian.PutUint16(w.buf[w.n:], uint16(v))
	w.n += 2
}

func (w *bodyWriter) u32(v uint32) {
	binary.LittleEndian.PutUint32(w.buf[w.n:], v)
	w.n += 4
}

func (w *bodyWriter) id(id NetworkId) {
	PutID(w.buf[w.n:], id)
	w.n += IDSize
}

// bytes appends b, reporting false if it does not fit
func (w *bodyWriter) bytes(b []byte) bool {
	if w.n+len(b) > len(w.buf) {
		return false
	}
	w.n += copy(w.buf[w.n:], b)
	return true
}

func (w *bodyWriter) body() []byte {
	return w.buf[:w.n]
}

// bodyReader consumes fields; any short read sets err
type bodyReader struct {
	data []byte
	bad  bool
}

func (r *bodyReader) take(n int) []byte {
	if r.bad || len(r.data) < n {
		r.bad = true
		return nil
	}
	b := r.data[:n]
	r.data = r.data[n:]
	return b
}

func (r *bodyReader) u8() uint8 {
	if b := r.take(1); b != nil {
		return b[0]
	}
	return 0
}

func (r *bodyReader) i16() int16 {
	if b := r.take(2); b != nil {
		return int16(binary.LittleEndian.Uint16(b))
	}
	return 0
}

func (r *bodyReader) u32() uint32 {
	if b := r.take(4); b != nil {
		return binary.LittleEndian.Uint32(b)
	}
	return 0
}

func (r *bodyReader) id() NetworkId {
	b := r.take(IDSize)
	if b == nil {
		return NetworkId{}
	}
	id, _ := ReadID(b)
	return id
}

func (r *bodyReader) rest() []byte {
	if r.bad {
		return nil
	}
	b := r.data
	r.data = nil
	return b
}
