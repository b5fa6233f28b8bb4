// Package debugreg implements the x86-64 debug-register codec and the
// ptrace-based peek/poke primitives used to read and write it on a traced
// task. This is component A of the design: a bit-exact mapping between
// Go structs and the DR6 status word / DR7 control word, independent of
// how those words are fetched from the kernel.
package debugreg

import "github.com/pkg/errors"

// Reg identifies one of the six debug registers exposed through the
// kernel's debug-register peek/poke interface.
type Reg int

const (
	DR0 Reg = iota
	DR1
	DR2
	DR3
	DR6
	DR7
)

func (r Reg) index() (int, bool) {
	switch r {
	case DR0:
		return 0, true
	case DR1:
		return 1, true
	case DR2:
		return 2, true
	case DR3:
		return 3, true
	case DR6:
		return 6, true
	case DR7:
		return 7, true
	default:
		return 0, false
	}
}

// RW mirrors the DR7 R/W field: 00=execute, 01=write, 10=io-rdwr,
// 11=rdwr. Bit-exact; do not renumber.
type RW uint8

const (
	RWExecute RW = 0
	RWWrite   RW = 1
	RWIORdWr  RW = 2
	RWRdWr    RW = 3
)

// Len mirrors the DR7 LEN field. Note 8 sorts between 2 and 4.
type Len uint8

const (
	Len1 Len = 0
	Len2 Len = 1
	Len8 Len = 2
	Len4 Len = 3
)

// SlotControl is the per-slot portion of DR7: local/global enable and
// the RW/LEN fields that select what a slot watches.
type SlotControl struct {
	Local  bool
	Global bool
	RW     RW
	Len    Len
}

// Control is the decoded form of DR7.
type Control struct {
	Slots [4]SlotControl
	LE    bool // bit 8, local exact
	GE    bool // bit 9, global exact
	RTM   bool // bit 11, restricted transactional memory
	GD    bool // bit 13, general detect
}

// control bit-layout constants, per the Intel SDM and spec.md §4.A.
const (
	bitMBS      = 10 // must-be-set reserved validator bit
	bitRTM      = 11
	bitReserved = 12
	bitGD       = 13
	bitLE       = 8
	bitGE       = 9
)

// ErrMalformedControl/ErrMalformedStatus are returned when the reserved
// bit pattern in a DR7/DR6 word doesn't match its architectural value —
// the codec's only notion of a "malformed" register image (§4.A).
var (
	ErrMalformedControl = errors.New("debugreg: control word reserved-bit pattern is invalid")
	ErrMalformedStatus  = errors.New("debugreg: status word reserved-bit pattern is invalid")
)

// DecodeControl unpacks a raw DR7 value, returning ErrMalformedControl if
// the reserved bit-10 (MBS) pattern is inconsistent: on real hardware DR7
// bit 10 always reads back as 1, so a 0 there indicates the value did not
// come from a live DR7 (corrupted peek, wrong register, etc).
func DecodeControl(raw uint64) (Control, error) {
	if raw&(1<<bitMBS) == 0 {
		return Control{}, ErrMalformedControl
	}
	var c Control
	for i := 0; i < 4; i++ {
		c.Slots[i] = SlotControl{
			Local:  raw&(1<<(2*i)) != 0,
			Global: raw&(1<<(2*i+1)) != 0,
			RW:     RW((raw >> (16 + 4*i)) & 0x3),
			Len:    Len((raw >> (18 + 4*i)) & 0x3),
		}
	}
	c.LE = raw&(1<<bitLE) != 0
	c.GE = raw&(1<<bitGE) != 0
	c.RTM = raw&(1<<bitRTM) != 0
	c.GD = raw&(1<<bitGD) != 0
	return c, nil
}

// EncodeControl packs a Control back into a raw DR7 value. LE/GE are
// forced to 1 regardless of the struct's fields, matching §4.A's "both
// set to 1 on program" rule; MBS (bit 10) is always set.
func EncodeControl(c Control) uint64 {
	var raw uint64
	for i := 0; i < 4; i++ {
		s := c.Slots[i]
		if s.Local {
			raw |= 1 << (2 * i)
		}
		if s.Global {
			raw |= 1 << (2*i + 1)
		}
		raw |= uint64(s.RW) << (16 + 4*i)
		raw |= uint64(s.Len) << (18 + 4*i)
	}
	raw |= 1 << bitLE
	raw |= 1 << bitGE
	raw |= 1 << bitMBS
	if c.RTM {
		raw |= 1 << bitRTM
	}
	if c.GD {
		raw |= 1 << bitGD
	}
	return raw
}

// Status is the decoded form of DR6.
type Status struct {
	B   [4]bool // slot-i fired
	BD  bool    // bit 13, debug-register access detected
	BS  bool    // bit 14, single-step
	BT  bool    // bit 15, task switch
	RTM bool    // bit 16
}

const (
	bitBD   = 13
	bitBS   = 14
	bitBT   = 15
	bitRTM6 = 16
)

// DecodeStatus unpacks a raw DR6 value, returning ErrMalformedStatus if
// the reserved bit-10 pattern is inconsistent: like DR7, DR6 bit 10 always
// reads back as 1 on real hardware, so a 0 there indicates the value did
// not come from a live DR6.
func DecodeStatus(raw uint64) (Status, error) {
	if raw&(1<<bitMBS) == 0 {
		return Status{}, ErrMalformedStatus
	}
	var s Status
	for i := 0; i < 4; i++ {
		s.B[i] = raw&(1<<i) != 0
	}
	s.BD = raw&(1<<bitBD) != 0
	s.BS = raw&(1<<bitBS) != 0
	s.BT = raw&(1<<bitBT) != 0
	s.RTM = raw&(1<<bitRTM6) != 0
	return s, nil
}

// EncodeStatus packs a Status back into a raw DR6 value. Bit 10 (MBS) is
// always set, matching the value DecodeStatus requires back.
func EncodeStatus(s Status) uint64 {
	var raw uint64
	for i := 0; i < 4; i++ {
		if s.B[i] {
			raw |= 1 << i
		}
	}
	if s.BD {
		raw |= 1 << bitBD
	}
	if s.BS {
		raw |= 1 << bitBS
	}
	if s.BT {
		raw |= 1 << bitBT
	}
	if s.RTM {
		raw |= 1 << bitRTM6
	}
	raw |= 1 << bitMBS
	return raw
}

// ClearedStatus returns the DR6 value the monitor writes back after
// observing a trigger: all Bi/BS/BT/BD cleared, RTM preserved as 1 — the
// sticky-DR6 policy of §4.A that prevents re-triggering on the same
// exception.
func ClearedStatus() uint64 {
	return EncodeStatus(Status{RTM: true})
}
