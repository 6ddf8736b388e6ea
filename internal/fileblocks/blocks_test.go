package fileblocks

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestCountZeroForEmptyFile(t *testing.T) {
	if got := Count(0); got != 0 {
		t.Fatalf("Count(0) = %d, want 0", got)
	}
}

func TestCountCeilDivision(t *testing.T) {
	cases := []struct {
		size int64
		want uint32
	}{
		{1, 1},
		{BlockBytes, 1},
		{BlockBytes + 1, 2},
		{2 * BlockBytes, 2},
	}
	for _, c := range cases {
		if got := Count(c.size); got != c.want {
			t.Errorf("Count(%d) = %d, want %d", c.size, got, c.want)
		}
	}
}

func TestBoundsClampsToFileSize(t *testing.T) {
	start, end := Bounds(0, 100)
	if start != 0 || end != 100 {
		t.Fatalf("Bounds(0, 100) = %d,%d", start, end)
	}
	start, end = Bounds(1, BlockBytes+100)
	if start != BlockBytes || end != BlockBytes+100 {
		t.Fatalf("Bounds(1, ...) = %d,%d", start, end)
	}
}

func TestReaderIteratesWholeBlockInPacketChunks(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.bin")
	content := bytes.Repeat([]byte{0x42}, PacketBytes*2+10)
	if err := os.WriteFile(path, content, 0o666); err != nil {
		t.Fatal(err)
	}

	r, err := OpenBlock(path, 0, int64(len(content)))
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	var got []byte
	var positions []int64
	for {
		pos, data, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		positions = append(positions, pos)
		got = append(got, data...)
	}

	if !bytes.Equal(got, content) {
		t.Fatalf("read %d bytes, want %d", len(got), len(content))
	}
	if positions[0] != 0 || positions[1] != PacketBytes {
		t.Fatalf("unexpected chunk positions: %v", positions)
	}
}

func TestReaderSecondBlockStartsAtOffset(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.bin")
	content := make([]byte, BlockBytes+5)
	for i := range content {
		content[i] = byte(i)
	}
	if err := os.WriteFile(path, content, 0o666); err != nil {
		t.Fatal(err)
	}

	r, err := OpenBlock(path, 1, int64(len(content)))
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	pos, data, err := r.Next()
	if err != nil {
		t.Fatal(err)
	}
	if pos != BlockBytes {
		t.Fatalf("pos = %d, want %d", pos, BlockBytes)
	}
	if len(data) != 5 {
		t.Fatalf("len(data) = %d, want 5", len(data))
	}

	if _, _, err := r.Next(); err != io.EOF {
		t.Fatalf("expected io.EOF after the block's only chunk, got %v", err)
	}
}
