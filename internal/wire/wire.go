// Package wire defines the fixed-size request/response records exchanged
// between the inferior and the monitor over the two control pipes.
//
// There is no framing, length prefix, or version byte: the struct size is
// the frame. Both ends run in the same binary on the same host, so there
// is no endianness negotiation either — native byte order throughout.
package wire

import (
	"encoding/binary"
	"io"
)

// Op identifies the operation carried by a Request.
type Op uint32

const (
	OpEnable Op = iota + 1
	OpDisable
	OpDisableAll
	OpGetTriggered
)

func (o Op) String() string {
	switch o {
	case OpEnable:
		return "ENABLE"
	case OpDisable:
		return "DISABLE"
	case OpDisableAll:
		return "DISABLE_ALL"
	case OpGetTriggered:
		return "GET_TRIGGERED"
	default:
		return "UNKNOWN"
	}
}

// Kind mirrors the DR7 R/W field encoding bit-for-bit: 00=execute,
// 01=write, 10=io-rdwr, 11=rdwr. The numeric values are load-bearing.
type Kind uint8

const (
	KindExecute Kind = 0
	KindWrite   Kind = 1
	KindIORdWr  Kind = 2
	KindRdWr    Kind = 3
)

// Width mirrors the DR7 LEN field encoding bit-for-bit. Note that 8
// sorts between 2 and 4 per the Intel table — this is not a typo.
type Width uint8

const (
	Width1 Width = 0
	Width2 Width = 1
	Width8 Width = 2
	Width4 Width = 3
)

// WidthBytes converts a wire Width back to a byte count.
func WidthBytes(w Width) int {
	switch w {
	case Width1:
		return 1
	case Width2:
		return 2
	case Width8:
		return 8
	case Width4:
		return 4
	default:
		return 0
	}
}

// WidthFromBytes converts a byte count to its wire Width encoding. The
// second return is false for any width not in {1, 2, 4, 8}.
func WidthFromBytes(n int) (Width, bool) {
	switch n {
	case 1:
		return Width1, true
	case 2:
		return Width2, true
	case 4:
		return Width4, true
	case 8:
		return Width8, true
	default:
		return 0, false
	}
}

// Result is the monitor's verdict, flattened from either a protocol
// outcome or a raw OS errno into a single numeric code. The inferior
// maps this back onto its own Result/error taxonomy; the wire itself is
// agnostic about what the numbers mean beyond zero-is-success.
type Result int32

const (
	ResultSuccess Result = iota
	ResultAllSlotsBusy
	ResultSlotNotFound
	ResultNoTrigger // GET_TRIGGERED observed no Bi set in DR6
	ResultUnknownOp
	ResultErrno // Errno carries the underlying errno value
)

// Quad is the (address, kind, width, hw) quadruple embedded in both
// breakpoint-bearing requests and GET_TRIGGERED responses.
type Quad struct {
	Address uint64
	Kind    Kind
	Width   Width
	HW      bool
}

// Request is written as one fixed-size record per exchange.
type Request struct {
	Op   Op
	Quad Quad
}

// Response is read back as one fixed-size record per exchange.
type Response struct {
	Result Result
	Errno  int32 // valid iff Result == ResultErrno
	Quad   Quad  // only populated for GET_TRIGGERED
}

// wireRequest and wireResponse are the flat, fixed-layout forms actually
// put on the pipe; bool and enum-sized Go fields are normalized to fixed
// integer widths so binary.Write/Read produce a stable frame size.
type wireRequest struct {
	Op      uint32
	Address uint64
	Kind    uint8
	Width   uint8
	HW      uint8
	_       uint8 // pad to keep the struct 4-byte aligned
}

type wireResponse struct {
	Result  int32
	Errno   int32
	Address uint64
	Kind    uint8
	Width   uint8
	HW      uint8
	_       uint8
}

// RequestSize and ResponseSize are the exact byte counts of one frame.
// Exported so callers can reason about partial reads without duplicating
// the layout.
const (
	RequestSize  = 4 + 8 + 1 + 1 + 1 + 1
	ResponseSize = 4 + 4 + 8 + 1 + 1 + 1 + 1
)

func boolToByte(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

// WriteRequest writes exactly RequestSize bytes, or returns an error
// without partial effects visible to the caller beyond what the
// underlying writer already committed.
func WriteRequest(w io.Writer, r Request) error {
	wr := wireRequest{
		Op:      uint32(r.Op),
		Address: r.Quad.Address,
		Kind:    uint8(r.Quad.Kind),
		Width:   uint8(r.Quad.Width),
		HW:      boolToByte(r.Quad.HW),
	}
	return binary.Write(w, binary.NativeEndian, &wr)
}

// ReadRequest reads exactly RequestSize bytes and decodes one Request.
func ReadRequest(r io.Reader) (Request, error) {
	var wr wireRequest
	if err := binary.Read(r, binary.NativeEndian, &wr); err != nil {
		return Request{}, err
	}
	return Request{
		Op: Op(wr.Op),
		Quad: Quad{
			Address: wr.Address,
			Kind:    Kind(wr.Kind),
			Width:   Width(wr.Width),
			HW:      wr.HW != 0,
		},
	}, nil
}

// WriteResponse writes exactly ResponseSize bytes.
func WriteResponse(w io.Writer, r Response) error {
	wr := wireResponse{
		Result:  int32(r.Result),
		Errno:   r.Errno,
		Address: r.Quad.Address,
		Kind:    uint8(r.Quad.Kind),
		Width:   uint8(r.Quad.Width),
		HW:      boolToByte(r.Quad.HW),
	}
	return binary.Write(w, binary.NativeEndian, &wr)
}

// ReadResponse reads exactly ResponseSize bytes and decodes one Response.
func ReadResponse(r io.Reader) (Response, error) {
	var wr wireResponse
	if err := binary.Read(r, binary.NativeEndian, &wr); err != nil {
		return Response{}, err
	}
	return Response{
		Result: Result(wr.Result),
		Errno:  wr.Errno,
		Quad: Quad{
			Address: wr.Address,
			Kind:    Kind(wr.Kind),
			Width:   Width(wr.Width),
			HW:      wr.HW != 0,
		},
	}, nil
}
