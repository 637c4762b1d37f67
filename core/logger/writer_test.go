package logger

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
)

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestAsyncWriterFlushCoversEarlierWrites(t *testing.T) {
	buf := &bytes.Buffer{}
	aw := newAsyncWriter([]io.Writer{buf}, 16)
	for i := 0; i < 100; i++ {
		if err := aw.Write([]byte(fmt.Sprintf("line-%d\n", i))); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}
	if err := aw.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if got := strings.Count(buf.String(), "\n"); got != 100 {
		t.Fatalf("lines after flush = %d, want 100", got)
	}
	if err := aw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestAsyncWriterRejectsWritesAfterClose(t *testing.T) {
	aw := newAsyncWriter([]io.Writer{&bytes.Buffer{}}, 0)
	if err := aw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := aw.Write([]byte("late\n")); !errors.Is(err, errWriterClosed) {
		t.Fatalf("write after close = %v", err)
	}
	if err := aw.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestAsyncWriterKeepsOtherSinksOnError(t *testing.T) {
	buf := &bytes.Buffer{}
	aw := newAsyncWriter([]io.Writer{failingWriter{}, buf}, 1)
	if err := aw.Write([]byte("hello\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := aw.Close(); err == nil {
		t.Fatal("expected sink error from close")
	}
	if buf.String() != "hello\n" {
		t.Fatalf("healthy sink = %q", buf.String())
	}
}
