package wire

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

func TestPackUnpackRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		code string
		args []interface{}
	}{
		{"cont", CodeCont, []interface{}{uint32(4), false}},
		{"cont-echo", CodeCont, []interface{}{uint32(1), true}},
		{"send", CodeSend, []interface{}{uint32(2), "share/hello.txt", uint32(3), uint64(96 << 20)}},
		{"pakg", CodePakg, []interface{}{uint64(1 << 20), []byte("some bytes")}},
		{"pakg-empty", CodePakg, []interface{}{uint64(0), []byte{}}},
		{"vrfy", CodeVrfy, nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			packed, err := Pack(tc.code, tc.args...)
			if err != nil {
				t.Fatalf("Pack: %v", err)
			}

			packed2, err := Pack(tc.code, tc.args...)
			if err != nil {
				t.Fatalf("Pack (again): %v", err)
			}
			if !bytes.Equal(packed, packed2) {
				t.Fatalf("Pack is not deterministic for equal inputs")
			}

			code, args, err := Unpack(packed)
			if err != nil {
				t.Fatalf("Unpack: %v", err)
			}
			if code != tc.code {
				t.Errorf("code = %q, want %q", code, tc.code)
			}
			if len(args) != len(tc.args) {
				t.Fatalf("got %d args, want %d", len(args), len(tc.args))
			}
			for i, want := range tc.args {
				got := args[i]
				gb, gotIsBytes := got.([]byte)
				wb, wantIsBytes := want.([]byte)
				if gotIsBytes && wantIsBytes {
					if !bytes.Equal(gb, wb) {
						t.Errorf("arg %d = %v, want %v", i, gb, wb)
					}
					continue
				}
				if got != want {
					t.Errorf("arg %d = %v, want %v", i, got, want)
				}
			}
		})
	}
}

func TestPackUnsupportedType(t *testing.T) {
	_, err := Pack(CodeCont, 42) // bare int, not uint32
	if err == nil {
		t.Fatal("expected error for unsupported type")
	}
	var perr *PackError
	if !errors.As(err, &perr) {
		t.Fatalf("expected *PackError, got %T", err)
	}
	if !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("expected ErrUnsupportedType, got %v", err)
	}
}

func TestUnpackUnknownCode(t *testing.T) {
	payload, err := Pack(CodeCont, uint32(1), false)
	if err != nil {
		t.Fatal(err)
	}
	payload[0] = 'X' // corrupt the code
	_, _, err = Unpack(payload)
	if !errors.Is(err, ErrUnknownCode) {
		t.Fatalf("expected ErrUnknownCode, got %v", err)
	}
}

func TestUnpackTruncated(t *testing.T) {
	payload, err := Pack(CodeSend, uint32(0), "a/b.txt", uint32(1), uint64(10))
	if err != nil {
		t.Fatal(err)
	}
	_, _, err = Unpack(payload[:len(payload)-2])
	if !errors.Is(err, ErrTruncated) {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
}

func TestFrameRoundTrip(t *testing.T) {
	payload, err := Pack(CodeSend, uint32(0), "x", uint32(1), uint64(5))
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := WriteFrame(&buf, payload); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	got, err := ReadFrame(&buf)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("ReadFrame = %x, want %x", got, payload)
	}
}

func TestReadFrameEmptyIsEOF(t *testing.T) {
	_, err := ReadFrame(bytes.NewReader(nil))
	if !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF on empty stream, got %v", err)
	}
}

func TestReadFrameShortGuideIsProtocolError(t *testing.T) {
	_, err := ReadFrame(bytes.NewReader([]byte{0, 1}))
	if !errors.Is(err, ErrTruncated) {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
}

func TestDecodeMessage(t *testing.T) {
	payload, err := Pack(CodeSend, uint32(1), "a.bin", uint32(2), uint64(64<<20+1))
	if err != nil {
		t.Fatal(err)
	}
	msg, err := DecodeMessage(payload)
	if err != nil {
		t.Fatal(err)
	}
	if msg.Send == nil {
		t.Fatal("expected Send to be set")
	}
	if msg.Send.Path != "a.bin" || msg.Send.BlockCount != 2 || msg.Send.FileSize != 64<<20+1 || msg.Send.BlockIndex != 1 {
		t.Errorf("unexpected Send: %+v", msg.Send)
	}
}
