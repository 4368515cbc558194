package protocol

// Header precedes every payload
type Header struct {
	Port   uint8
	Status Status
	Length uint16
}

// Message is a header and a fixed payload area. It is copied by value
// through queues, so no allocation happens on the receive path.
type Message struct {
	Header  Header
	Payload [MaxPayload]byte
}

// NewMessage builds a message carrying body. Bodies longer than
// MaxPayload are rejected with InvalidMessageContents.
func NewMessage(port uint8, status Status, body []byte) (Message, error) {
	var m Message
	if err := m.Set(port, status, body); err != nil {
		return Message{}, err
	}
	return m, nil
}

// Set overwrites the message in place
func (m *Message) Set(port uint8, status Status, body []byte) error {
	if len(body) > MaxPayload {
		return InvalidMessageContents
	}
	m.Header = Header{Port: port, Status: status, Length: uint16(len(body))}
	copy(m.Payload[:], body)
	return nil
}

// Body returns the valid part of the payload
func (m *Message) Body() []byte {
	n := int(m.Header.Length)
	if n > MaxPayload {
		n = MaxPayload
	}
	return m.Payload[:n]
}

// EncodeHeader writes h into dst, which must hold HeaderSize bytes
func EncodeHeader(dst []byte, h Header) {
	dst[0] = h.Port
	dst[1] = uint8(h.Status)
	dst[2] = uint8(h.Length)
	dst[3] = uint8(h.Length >> 8)
}

// DecodeHeader parses a header, rejecting unknown status codes and
// oversize lengths
func DecodeHeader(src []byte) (Header, error) {
	if len(src) < HeaderSize {
		return Header{}, InvalidMessageContents
	}
	h := Header{
		Port:   src[0],
		Status: Status(src[1]),
		Length: uint16(src[2]) | uint16(src[3])<<8,
	}
	if !h.Status.Valid() || h.Length > MaxPayload {
		return Header{}, InvalidMessageContents
	}
	return h, nil
}

// Encode writes the versioned message (version byte, header, payload)
func (m *Message) Encode(output OutputBuffer) {
	var hdr [1 + HeaderSize]byte
	hdr[0] = WireVersion
	EncodeHeader(hdr[1:], m.Header)
	output.Output(hdr[:])
	output.Output(m.Body())
}

// Decode parses a versioned message produced by Encode
func (m *Message) Decode(data []byte) error {
	if len(data) < 1+HeaderSize || data[0] != WireVersion {
		return InvalidMessageContents
	}
	h, err := DecodeHeader(data[1:])
	if err != nil {
		return err
	}
	body := data[1+HeaderSize:]
	if len(body) != int(h.Length) {
		return InvalidMessageContents
	}
	m.Header = h
	copy(m.Payload[:], body)
	return nil
}
