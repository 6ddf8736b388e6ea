package wire

import "fmt"

// Cont is the startup handshake packet: "I negotiated SockNum worker
// connections; IsEcho tells you whether this is my reply to your CONT."
type Cont struct {
	SockNum uint32
	IsEcho  bool
}

func (c Cont) Encode() ([]byte, error) {
	return Pack(CodeCont, c.SockNum, c.IsEcho)
}

func decodeCont(args []interface{}) (Cont, error) {
	if len(args) != 2 {
		return Cont{}, fmt.Errorf("%w: CONT", ErrTruncated)
	}
	sockNum, ok1 := args[0].(uint32)
	isEcho, ok2 := args[1].(bool)
	if !ok1 || !ok2 {
		return Cont{}, fmt.Errorf("%w: CONT", ErrTruncated)
	}
	return Cont{SockNum: sockNum, IsEcho: isEcho}, nil
}

// Send opens one block's transfer: the sender's BlockIndex within the file
// (see DESIGN.md's Open Question #2 resolution), Path, the file's total
// BlockCount, and its FileSize.
type Send struct {
	BlockIndex uint32
	Path       string
	BlockCount uint32
	FileSize   uint64
}

func (s Send) Encode() ([]byte, error) {
	return Pack(CodeSend, s.BlockIndex, s.Path, s.BlockCount, s.FileSize)
}

func decodeSend(args []interface{}) (Send, error) {
	if len(args) != 4 {
		return Send{}, fmt.Errorf("%w: SEND", ErrTruncated)
	}
	blockIndex, ok1 := args[0].(uint32)
	path, ok2 := args[1].(string)
	blockCount, ok3 := args[2].(uint32)
	fileSize, ok4 := args[3].(uint64)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return Send{}, fmt.Errorf("%w: SEND", ErrTruncated)
	}
	return Send{BlockIndex: blockIndex, Path: path, BlockCount: blockCount, FileSize: fileSize}, nil
}

// Pakg carries one chunk of file data at an absolute byte Position.
type Pakg struct {
	Position uint64
	Data     []byte
}

func (p Pakg) Encode() ([]byte, error) {
	return Pack(CodePakg, p.Position, p.Data)
}

func decodePakg(args []interface{}) (Pakg, error) {
	if len(args) != 2 {
		return Pakg{}, fmt.Errorf("%w: PAKG", ErrTruncated)
	}
	position, ok1 := args[0].(uint64)
	data, ok2 := args[1].([]byte)
	if !ok1 || !ok2 {
		return Pakg{}, fmt.Errorf("%w: PAKG", ErrTruncated)
	}
	return Pakg{Position: position, Data: data}, nil
}

// Vrfy marks the end of the current connection's block, confirming every
// byte of it landed. It carries no arguments on the wire.
type Vrfy struct{}

func (Vrfy) Encode() ([]byte, error) {
	return Pack(CodeVrfy)
}

func decodeVrfy(args []interface{}) (Vrfy, error) {
	if len(args) != 0 {
		return Vrfy{}, fmt.Errorf("%w: VRFY", ErrTruncated)
	}
	return Vrfy{}, nil
}

// Message is the decoded form of any one packet.
type Message struct {
	Cont *Cont
	Send *Send
	Pakg *Pakg
	Vrfy *Vrfy
}

// DecodeMessage unpacks payload and returns the Message with exactly one of
// its fields set, selected by the wire code.
func DecodeMessage(payload []byte) (Message, error) {
	code, args, err := Unpack(payload)
	if err != nil {
		return Message{}, err
	}
	switch code {
	case CodeCont:
		c, err := decodeCont(args)
		if err != nil {
			return Message{}, &UnpackError{err}
		}
		return Message{Cont: &c}, nil
	case CodeSend:
		s, err := decodeSend(args)
		if err != nil {
			return Message{}, &UnpackError{err}
		}
		return Message{Send: &s}, nil
	case CodePakg:
		p, err := decodePakg(args)
		if err != nil {
			return Message{}, &UnpackError{err}
		}
		return Message{Pakg: &p}, nil
	case CodeVrfy:
		v, err := decodeVrfy(args)
		if err != nil {
			return Message{}, &UnpackError{err}
		}
		return Message{Vrfy: &v}, nil
	default:
		return Message{}, &UnpackError{fmt.Errorf("%w: %q", ErrUnknownCode, code)}
	}
}
