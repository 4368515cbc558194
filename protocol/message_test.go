package protocol

import (
	"bytes"
	"errors"
	"testing"
)

func TestNewMessageRejectsOversizeBody(t *testing.T) {
	if _, err := NewMessage(0, StatusOK, make([]byte, MaxPayload)); err != nil {
		t.Fatalf("MaxPayload body rejected: %v", err)
	}
	_, err := NewMessage(0, StatusOK, make([]byte, MaxPayload+1))
	if !errors.Is(err, InvalidMessageContents) {
		t.Errorf("Expected InvalidMessageContents, got %v", err)
	}
}

func TestMessageEncodingLayout(t *testing.T) {
	m, err := NewMessage(3, StatusQuery, []byte{0xAA, 0xBB})
	if err != nil {
		t.Fatal(err)
	}
	out := NewScratchOutput()
	m.Encode(out)

	want := []byte{WireVersion, 3, byte(StatusQuery), 2, 0, 0xAA, 0xBB}
	if !bytes.Equal(out.Result(), want) {
		t.Errorf("Encode = %v, want %v", out.Result(), want)
	}

	var decoded Message
	if err := decoded.Decode(out.Result()); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if decoded.Header != m.Header || !bytes.Equal(decoded.Body(), m.Body()) {
		t.Errorf("Decoded %+v, want %+v", decoded.Header, m.Header)
	}
}

func TestMessageDecodeRejects(t *testing.T) {
	testCases := []struct {
		name string
		data []byte
	}{
		{"legacy version", []byte{WireVersionLegacy, 0, 0, 0, 0}},
		{"short", []byte{WireVersion, 0}},
		{"unknown status", []byte{WireVersion, 0, 9, 0, 0}},
		{"length mismatch", []byte{WireVersion, 0, 0, 3, 0, 1}},
		{"oversize length", []byte{WireVersion, 0, 0, 0x01, 0x01}},
	}

	for _, tc := range testCases {
		var m Message
		if err := m.Decode(tc.data); !errors.Is(err, InvalidMessageContents) {
			t.Errorf("%s: expected InvalidMessageContents, got %v", tc.name, err)
		}
	}
}

func TestStatusString(t *testing.T) {
	if StatusTimeout.String() != "TIMEOUT" {
		t.Errorf("StatusTimeout = %s", StatusTimeout)
	}
	if Status(42).Valid() {
		t.Error("Status 42 should be invalid")
	}
}
