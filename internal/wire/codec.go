// Package wire implements the self-describing binary framing of spec.md
// §4.1/§6: a 4-byte big-endian guide frame followed by a payload frame of
// {4-byte ASCII code, 8-byte space-padded format string, fixed-width
// section, variable-width section}.
//
// It is built on github.com/calmh/xdr's Reader/Writer, the teacher's own
// wire-codec dependency (internal/protocol/header.go encodes/decodes the BEP
// header word through an xdr.Writer/xdr.Reader pair). Only the raw and
// fixed-width primitives (ReadRaw/WriteRaw, ReadUint32/WriteUint32, ...) are
// used — xdr's ReadBytes/WriteBytes pad strings to a 4-byte boundary, which
// would break this format's exact-length framing, so length-prefixed
// strings and blobs are framed by hand with WriteRaw/ReadRaw instead.
//
// One format character extends the alphabet spec.md §4.1 defines (I, d, ?,
// $, #): L is a u64, used for the wire-widened file size and block position
// spec.md §9's REDESIGN FLAGS call for. Separately, the SEND message
// carries the sending block's index (see DESIGN.md, Open Question #2) so
// that ReceiveRegistry accounting can be keyed by (path, block index)
// instead of a bare decrementing counter.
package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/calmh/xdr"
)

// Packet codes, exactly as spec.md §6 names them.
const (
	CodeCont = "CONT"
	CodeSend = "SEND"
	CodePakg = "PAKG"
	CodeVrfy = "VRFY"
)

const formatLen = 8

// Sentinel errors per spec.md §4.1/§7. Use errors.Is to test against them;
// Pack and Unpack wrap them with context via fmt.Errorf's %w.
var (
	ErrUnsupportedType = errors.New("wire: unsupported argument type")
	ErrUnknownCode     = errors.New("wire: unknown code")
	ErrTruncated       = errors.New("wire: truncated payload")
)

// PackError reports a programmer error in the arguments passed to Pack.
type PackError struct{ Err error }

func (e *PackError) Error() string { return e.Err.Error() }
func (e *PackError) Unwrap() error { return e.Err }

// UnpackError reports a malformed or truncated payload.
type UnpackError struct{ Err error }

func (e *UnpackError) Error() string { return e.Err.Error() }
func (e *UnpackError) Unwrap() error { return e.Err }

func isKnownCode(code string) bool {
	switch code {
	case CodeCont, CodeSend, CodePakg, CodeVrfy:
		return true
	}
	return false
}

// Pack encodes code and args into a payload frame. Supported arg types are
// uint32 ('I'), uint64 ('L'), float64 ('d'), bool ('?'), string ('$'), and
// []byte ('#'). Any other type yields a PackError wrapping ErrUnsupportedType.
func Pack(code string, args ...interface{}) ([]byte, error) {
	if len(args) > formatLen {
		return nil, &PackError{fmt.Errorf("%w: too many arguments (%d)", ErrUnsupportedType, len(args))}
	}

	format := make([]byte, 0, len(args))
	var fixed, variable bytes.Buffer
	fw := xdr.NewWriter(&fixed)
	vw := xdr.NewWriter(&variable)

	for _, a := range args {
		switch v := a.(type) {
		case uint32:
			format = append(format, 'I')
			fw.WriteUint32(v)
		case uint64:
			format = append(format, 'L')
			fw.WriteUint64(v)
		case float64:
			format = append(format, 'd')
			fw.WriteUint64(math.Float64bits(v))
		case bool:
			format = append(format, '?')
			fw.WriteBool(v)
		case string:
			format = append(format, '$')
			fw.WriteUint32(uint32(len(v)))
			vw.WriteRaw([]byte(v))
		case []byte:
			format = append(format, '#')
			fw.WriteUint32(uint32(len(v)))
			vw.WriteRaw(v)
		default:
			return nil, &PackError{fmt.Errorf("%w: %T", ErrUnsupportedType, a)}
		}
	}
	if err := fw.Error(); err != nil {
		return nil, &PackError{err}
	}
	if err := vw.Error(); err != nil {
		return nil, &PackError{err}
	}

	formatStr := make([]byte, formatLen)
	for i := range formatStr {
		formatStr[i] = ' '
	}
	copy(formatStr, format)

	var out bytes.Buffer
	ow := xdr.NewWriter(&out)
	ow.WriteRaw([]byte(code))
	ow.WriteRaw(formatStr)
	ow.WriteRaw(fixed.Bytes())
	ow.WriteRaw(variable.Bytes())
	if err := ow.Error(); err != nil {
		return nil, &PackError{err}
	}
	return out.Bytes(), nil
}

// Unpack decodes a payload frame produced by Pack, returning the code and
// its decoded arguments in format order (string/[]byte arguments decode to
// string/[]byte respectively).
func Unpack(payload []byte) (string, []interface{}, error) {
	if len(payload) < 4+formatLen {
		return "", nil, &UnpackError{fmt.Errorf("%w: payload shorter than header", ErrTruncated)}
	}

	r := xdr.NewReader(bytes.NewReader(payload))

	codeBuf := make([]byte, 4)
	if _, err := r.ReadRaw(codeBuf); err != nil {
		return "", nil, &UnpackError{fmt.Errorf("%w: %v", ErrTruncated, err)}
	}
	code := string(codeBuf)
	if !isKnownCode(code) {
		return "", nil, &UnpackError{fmt.Errorf("%w: %q", ErrUnknownCode, code)}
	}

	formatBuf := make([]byte, formatLen)
	if _, err := r.ReadRaw(formatBuf); err != nil {
		return "", nil, &UnpackError{fmt.Errorf("%w: %v", ErrTruncated, err)}
	}
	format := bytes.TrimRight(formatBuf, " ")

	args := make([]interface{}, len(format))
	varLengths := make([]uint32, len(format))
	for i, c := range format {
		switch c {
		case 'I':
			args[i] = r.ReadUint32()
		case 'L':
			args[i] = r.ReadUint64()
		case 'd':
			args[i] = math.Float64frombits(r.ReadUint64())
		case '?':
			args[i] = r.ReadBool()
		case '$', '#':
			varLengths[i] = r.ReadUint32()
		default:
			return "", nil, &UnpackError{fmt.Errorf("%w: unknown format byte %q", ErrTruncated, c)}
		}
	}
	if err := r.Error(); err != nil {
		return "", nil, &UnpackError{fmt.Errorf("%w: %v", ErrTruncated, err)}
	}

	for i, c := range format {
		if c != '$' && c != '#' {
			continue
		}
		buf := make([]byte, varLengths[i])
		if _, err := r.ReadRaw(buf); err != nil {
			return "", nil, &UnpackError{fmt.Errorf("%w: %v", ErrTruncated, err)}
		}
		if c == '$' {
			args[i] = string(buf)
		} else {
			args[i] = buf
		}
	}

	return code, args, nil
}

// WriteFrame writes the 4-byte guide frame followed by payload.
func WriteFrame(w io.Writer, payload []byte) error {
	xw := xdr.NewWriter(w)
	xw.WriteUint32(uint32(len(payload)))
	if err := xw.Error(); err != nil {
		return err
	}
	xw.WriteRaw(payload)
	return xw.Error()
}

// ReadFrame reads one guide frame and its payload. It returns io.EOF (not
// wrapped) when the peer closed the connection cleanly before any guide
// frame arrived — the "empty read" case of spec.md §4.4, which the caller
// should treat as an ordinary end of connection, not a protocol error. Any
// other short read is a genuine ProtocolViolation, wrapped in UnpackError.
func ReadFrame(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	n, err := io.ReadFull(r, lenBuf[:])
	if n == 0 && errors.Is(err, io.EOF) {
		return nil, io.EOF
	}
	if err != nil {
		return nil, &UnpackError{fmt.Errorf("%w: guide frame: %v", ErrTruncated, err)}
	}

	length := binary.BigEndian.Uint32(lenBuf[:])
	payload := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, &UnpackError{fmt.Errorf("%w: payload: %v", ErrTruncated, err)}
		}
	}
	return payload, nil
}
