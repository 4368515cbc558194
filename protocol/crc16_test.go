package protocol

import "testing"

func TestCRC16(t *testing.T) {
	testCases := []struct {
		name string
		data []byte
		want uint16
	}{
		{"empty", []byte{}, 0xFFFF},
		{"check string", []byte("123456789"), 0x6F91},
	}

	for _, tc := range testCases {
		if got := CRC16(tc.data); got != tc.want {
			t.Errorf("%s: CRC16 = 0x%04X, want 0x%04X", tc.name, got, tc.want)
		}
	}
}

func TestCRC16DetectsBitFlip(t *testing.T) {
	data := []byte{WireVersion, 2, byte(StatusQuery), 3, 0, 'a', 'b', 'c'}
	orig := CRC16(data)
	for i := range data {
		data[i] ^= 0x01
		if CRC16(data) == orig {
			t.Errorf("Flip in byte %d not detected", i)
		}
		data[i] ^= 0x01
	}
}
