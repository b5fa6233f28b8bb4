package debugreg

import (
	"math/rand/v2"
	"testing"
)

func TestControlRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 2000; i++ {
		var c Control
		for s := 0; s < 4; s++ {
			c.Slots[s] = SlotControl{
				Local:  rng.IntN(2) == 1,
				Global: rng.IntN(2) == 1,
				RW:     RW(rng.IntN(4)),
				Len:    Len(rng.IntN(4)),
			}
		}
		c.RTM = rng.IntN(2) == 1
		c.GD = rng.IntN(2) == 1

		raw := EncodeControl(c)
		got, err := DecodeControl(raw)
		if err != nil {
			t.Fatalf("DecodeControl: %v", err)
		}
		// LE/GE are forced to true by EncodeControl regardless of input.
		got.LE, got.GE = false, false
		c.LE, c.GE = false, false
		if got != c {
			t.Fatalf("round trip mismatch: got %+v, want %+v (raw=%#x)", got, c, raw)
		}
	}
}

func TestDecodeControlRejectsMissingMBS(t *testing.T) {
	raw := EncodeControl(Control{})
	raw &^= 1 << bitMBS
	if _, err := DecodeControl(raw); err != ErrMalformedControl {
		t.Fatalf("DecodeControl with cleared MBS: got %v, want ErrMalformedControl", err)
	}
}

func TestStatusRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))
	for i := 0; i < 2000; i++ {
		s := Status{
			B:   [4]bool{rng.IntN(2) == 1, rng.IntN(2) == 1, rng.IntN(2) == 1, rng.IntN(2) == 1},
			BD:  rng.IntN(2) == 1,
			BS:  rng.IntN(2) == 1,
			BT:  rng.IntN(2) == 1,
			RTM: rng.IntN(2) == 1,
		}
		got, err := DecodeStatus(EncodeStatus(s))
		if err != nil {
			t.Fatalf("DecodeStatus: %v", err)
		}
		if got != s {
			t.Fatalf("round trip mismatch: got %+v, want %+v", got, s)
		}
	}
}

func TestDecodeStatusRejectsMissingMBS(t *testing.T) {
	raw := EncodeStatus(Status{})
	raw &^= 1 << bitMBS
	if _, err := DecodeStatus(raw); err != ErrMalformedStatus {
		t.Fatalf("DecodeStatus with cleared MBS: got %v, want ErrMalformedStatus", err)
	}
}

func TestClearedStatusPreservesOnlyRTM(t *testing.T) {
	s, err := DecodeStatus(ClearedStatus())
	if err != nil {
		t.Fatalf("DecodeStatus: %v", err)
	}
	want := Status{RTM: true}
	if s != want {
		t.Fatalf("ClearedStatus decoded to %+v, want %+v", s, want)
	}
}

func TestEnabledSlotPopcount(t *testing.T) {
	c := Control{}
	c.Slots[0].Local = true
	c.Slots[2].Local = true
	raw := EncodeControl(c)
	got, err := DecodeControl(raw)
	if err != nil {
		t.Fatalf("DecodeControl: %v", err)
	}
	n := 0
	for _, s := range got.Slots {
		if s.Local {
			n++
		}
	}
	if n != 2 {
		t.Fatalf("popcount(L0..L3) = %d, want 2", n)
	}
}
