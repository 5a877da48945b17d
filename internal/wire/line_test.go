package wire

import (
	"bytes"
	"io"
	"strings"
	"testing"

	bankerr "bankd/internal/errors"
)

func TestReadLine(t *testing.T) {
	lr := NewLineReader(strings.NewReader("open alice\r\ncredit 100\nbalance"), 64)

	want := []string{"open alice", "credit 100", "balance"}
	for i, w := range want {
		got, err := lr.ReadLine()
		if err != nil {
			t.Fatalf("line %d: %v", i, err)
		}
		if got != w {
			t.Errorf("line %d = %q, want %q", i, got, w)
		}
	}
	if _, err := lr.ReadLine(); err != io.EOF {
		t.Errorf("want io.EOF, got %v", err)
	}
}

func TestReadLine_TooLongRecovers(t *testing.T) {
	long := strings.Repeat("x", 100)
	lr := NewLineReader(strings.NewReader(long+"\nbalance\n"), 20)

	if _, err := lr.ReadLine(); !bankerr.Is(err, bankerr.ErrLineTooLong) {
		t.Fatalf("want ErrLineTooLong, got %v", err)
	}
	got, err := lr.ReadLine()
	if err != nil {
		t.Fatal(err)
	}
	if got != "balance" {
		t.Errorf("got %q after overlong line, want %q", got, "balance")
	}
}

func TestReadLine_ExactlyAtLimit(t *testing.T) {
	line := strings.Repeat("y", 20)
	lr := NewLineReader(strings.NewReader(line+"\n"), 20)
	got, err := lr.ReadLine()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != line {
		t.Errorf("got %q", got)
	}
}

func TestReadLine_OverlongAtEOF(t *testing.T) {
	lr := NewLineReader(strings.NewReader(strings.Repeat("z", 200)), 20)
	if _, err := lr.ReadLine(); err != io.EOF {
		t.Errorf("want io.EOF for unterminated overlong input, got %v", err)
	}
}

func TestWriteLine(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteLine(&buf, "Have a good day"); err != nil {
		t.Fatal(err)
	}
	if got := buf.String(); got != "Have a good day\n" {
		t.Errorf("got %q", got)
	}
}
