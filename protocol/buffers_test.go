package protocol

import (
	"bytes"
	"testing"
)

func TestSliceInputBufferPop(t *testing.T) {
	tests := []struct {
		name string
		pop  int
		want []byte
	}{
		{"none", 0, []byte{0x7E, 2, 0, 0}},
		{"sync byte", 1, []byte{2, 0, 0}},
		{"past end", 10, []byte{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := NewSliceInputBuffer([]byte{0x7E, 2, 0, 0})
			in.Pop(tt.pop)
			if !bytes.Equal(in.Data(), tt.want) {
				t.Errorf("Data() = %v, want %v", in.Data(), tt.want)
			}
			if in.Available() != len(tt.want) {
				t.Errorf("Available() = %d, want %d", in.Available(), len(tt.want))
			}
		})
	}
}

func TestScratchOutputPatchesLength(t *testing.T) {
	out := NewScratchOutput()
	out.Output([]byte{FrameSync, WireVersion})
	lenPos := out.CurPosition()
	out.Output([]byte{0, 0xAA, 0xBB})
	out.Update(lenPos, 2)

	if got := out.DataSince(lenPos); !bytes.Equal(got, []byte{2, 0xAA, 0xBB}) {
		t.Errorf("DataSince = %v", got)
	}
	if out.DataSince(out.CurPosition()+1) != nil {
		t.Errorf("DataSince past the end should be nil")
	}

	out.Update(100, 9)
	if out.CurPosition() != 5 {
		t.Errorf("Update past the end moved the cursor to %d", out.CurPosition())
	}

	out.Reset()
	if len(out.Result()) != 0 {
		t.Errorf("Result after Reset = %v", out.Result())
	}
}

func TestScratchOutputTruncates(t *testing.T) {
	out := NewScratchOutput()
	out.Output(make([]byte, MessageMax+10))
	if out.CurPosition() != MessageMax {
		t.Errorf("CurPosition = %d, want %d", out.CurPosition(), MessageMax)
	}
}

func TestFifoBufferCapacity(t *testing.T) {
	fifo := NewFifoBuffer(8)
	if !fifo.IsEmpty() || fifo.Free() != 7 {
		t.Fatalf("new fifo: empty=%v free=%d", fifo.IsEmpty(), fifo.Free())
	}

	if n := fifo.Write(make([]byte, 12)); n != 7 {
		t.Errorf("Write into 8-slot fifo stored %d bytes, want 7", n)
	}
	if fifo.Free() != 0 || fifo.Write([]byte{1}) != 0 {
		t.Errorf("full fifo accepted more data")
	}

	fifo.Reset()
	if !fifo.IsEmpty() || fifo.Available() != 0 {
		t.Errorf("Reset left %d bytes", fifo.Available())
	}
}

func TestFifoBufferKeepsOrderAcrossWrap(t *testing.T) {
	fifo := NewFifoBuffer(6)
	fifo.Write([]byte{1, 2, 3, 4})

	head := make([]byte, 3)
	if n := fifo.Read(head); n != 3 || !bytes.Equal(head, []byte{1, 2, 3}) {
		t.Fatalf("Read = %d %v", n, head)
	}

	fifo.Write([]byte{5, 6, 7})
	if got := fifo.Data(); !bytes.Equal(got, []byte{4, 5, 6, 7}) {
		t.Errorf("wrapped Data() = %v", got)
	}

	fifo.Pop(2)
	if got := fifo.Data(); !bytes.Equal(got, []byte{6, 7}) {
		t.Errorf("Data() after Pop = %v", got)
	}

	fifo.Pop(100)
	if !fifo.IsEmpty() {
		t.Errorf("Pop beyond available should empty the fifo")
	}
}

// A frame split across the ring boundary decodes as one message
func TestFifoBufferFeedsCodecAcrossWrap(t *testing.T) {
	msg, err := NewMessage(3, StatusQuery, []byte{0x10, 0x20, 0x30})
	if err != nil {
		t.Fatal(err)
	}
	frame := MarshalFrame(&msg)

	fifo := NewFifoBuffer(len(frame) + 4)
	fifo.Write(make([]byte, 6))
	fifo.Pop(6)

	var got []Message
	codec := NewLinkCodec(func(m *Message) { got = append(got, *m) })

	half := len(frame) / 2
	fifo.Write(frame[:half])
	codec.Receive(fifo)
	if len(got) != 0 {
		t.Fatalf("partial frame decoded")
	}
	fifo.Write(frame[half:])
	codec.Receive(fifo)

	if len(got) != 1 {
		t.Fatalf("decoded %d messages, want 1", len(got))
	}
	if got[0].Header.Port != 3 || !bytes.Equal(got[0].Body(), []byte{0x10, 0x20, 0x30}) {
		t.Errorf("decoded %+v", got[0].Header)
	}
	if !fifo.IsEmpty() {
		t.Errorf("codec left %d bytes", fifo.Available())
	}
}
