package fifoio_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bitsarebits/sha256fifod/internal/fifoio"
)

func TestCreateMakesAFifo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rendezvous")

	if err := fifoio.Create(path); err != nil {
		t.Fatalf("Create: %v", err)
	}

	fi, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}

	if fi.Mode()&os.ModeNamedPipe == 0 {
		t.Fatalf("expected a named pipe, got mode %v", fi.Mode())
	}
}

func TestCreateFailsIfPathExists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rendezvous")

	if err := fifoio.Create(path); err != nil {
		t.Fatalf("first Create: %v", err)
	}

	if err := fifoio.Create(path); err == nil {
		t.Fatalf("expected second Create to fail")
	}
}

func TestCheckAtomicWriteSizeAcceptsSmallRecords(t *testing.T) {
	if err := fifoio.CheckAtomicWriteSize(128); err != nil {
		t.Fatalf("CheckAtomicWriteSize: %v", err)
	}
}

func TestCheckAtomicWriteSizeRejectsOversizeRecords(t *testing.T) {
	if err := fifoio.CheckAtomicWriteSize(1 << 30); err == nil {
		t.Fatalf("expected an error for an implausibly large record")
	}
}

func TestOpenWriteTimeoutFiresWhenNoReaderShowsUp(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client-fifo")
	if err := fifoio.Create(path); err != nil {
		t.Fatalf("Create: %v", err)
	}

	start := time.Now()
	_, err := fifoio.OpenWriteTimeout(path, 50*time.Millisecond)
	if err == nil {
		t.Fatalf("expected a timeout error")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("OpenWriteTimeout took too long: %v", elapsed)
	}
}

func TestRemoveIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rendezvous")
	if err := fifoio.Create(path); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := fifoio.Remove(path); err != nil {
		t.Fatalf("first Remove: %v", err)
	}
	if err := fifoio.Remove(path); err != nil {
		t.Fatalf("second Remove should be a no-op: %v", err)
	}
}
