package wire

import (
	"bytes"
	"testing"
)

func TestRequestRoundTrip(t *testing.T) {
	cases := []Request{
		{Op: OpEnable, Quad: Quad{Address: 0xdeadbeef, Kind: KindWrite, Width: Width1, HW: true}},
		{Op: OpDisable, Quad: Quad{Address: 0, Kind: KindExecute, Width: Width4, HW: true}},
		{Op: OpDisableAll},
		{Op: OpGetTriggered},
	}
	for _, want := range cases {
		var buf bytes.Buffer
		if err := WriteRequest(&buf, want); err != nil {
			t.Fatalf("WriteRequest: %v", err)
		}
		if buf.Len() != RequestSize {
			t.Fatalf("wrote %d bytes, want %d", buf.Len(), RequestSize)
		}
		got, err := ReadRequest(&buf)
		if err != nil {
			t.Fatalf("ReadRequest: %v", err)
		}
		if got != want {
			t.Fatalf("round trip mismatch: got %+v, want %+v", got, want)
		}
	}
}

func TestResponseRoundTrip(t *testing.T) {
	cases := []Response{
		{Result: ResultSuccess},
		{Result: ResultErrno, Errno: 3},
		{Result: ResultSuccess, Quad: Quad{Address: 0x1000, Kind: KindRdWr, Width: Width8, HW: true}},
		{Result: ResultNoTrigger},
	}
	for _, want := range cases {
		var buf bytes.Buffer
		if err := WriteResponse(&buf, want); err != nil {
			t.Fatalf("WriteResponse: %v", err)
		}
		if buf.Len() != ResponseSize {
			t.Fatalf("wrote %d bytes, want %d", buf.Len(), ResponseSize)
		}
		got, err := ReadResponse(&buf)
		if err != nil {
			t.Fatalf("ReadResponse: %v", err)
		}
		if got != want {
			t.Fatalf("round trip mismatch: got %+v, want %+v", got, want)
		}
	}
}

func TestWidthConversions(t *testing.T) {
	for _, n := range []int{1, 2, 4, 8} {
		w, ok := WidthFromBytes(n)
		if !ok {
			t.Fatalf("WidthFromBytes(%d): not ok", n)
		}
		if got := WidthBytes(w); got != n {
			t.Fatalf("WidthBytes(WidthFromBytes(%d)) = %d, want %d", n, got, n)
		}
	}
	if _, ok := WidthFromBytes(3); ok {
		t.Fatalf("WidthFromBytes(3) should not be ok")
	}
}
