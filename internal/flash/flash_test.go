package flash

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ufgtools/fwcard/internal/platform"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func writeTempFile(t *testing.T, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestPipeline(ops *platform.FakeOps) (*Pipeline, *bytes.Buffer, *bytes.Buffer) {
	p := New(ops)
	p.Log = quietLogger()
	out := &bytes.Buffer{}
	progress := &bytes.Buffer{}
	p.Out = out
	p.Progress = progress
	// Long enough that only the final progress report fires.
	p.ProgressInterval = time.Hour
	return p, out, progress
}

func TestRunSuccessWithVerification(t *testing.T) {
	image := []byte("image payload to flash onto the card")
	imagePath := writeTempFile(t, "prepared.img", image)
	// The device is larger than the image and full of junk, like a real
	// card that held something else before.
	device := writeTempFile(t, "device", bytes.Repeat([]byte{0xff}, len(image)+100))

	ops := &platform.FakeOps{Readback: true}
	p, out, progress := newTestPipeline(ops)

	if err := p.Run(context.Background(), device, imagePath); err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	wantOut := fmt.Sprintf("FLASH_IMAGE_SIZE_BYTES=%d\nOK\n", len(image))
	if out.String() != wantOut {
		t.Errorf("stdout = %q, want %q", out.String(), wantOut)
	}
	if want := fmt.Sprintf("%d bytes transferred\n", len(image)); progress.String() != want {
		t.Errorf("progress = %q, want %q", progress.String(), want)
	}

	// First image-length bytes overwritten, the tail untouched.
	got, err := os.ReadFile(device)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got[:len(image)], image) {
		t.Errorf("device content does not match image")
	}
	if !bytes.Equal(got[len(image):], bytes.Repeat([]byte{0xff}, 100)) {
		t.Errorf("bytes beyond the image were modified")
	}

	// Every partition is unmounted before the write, and the copy is
	// flushed before verification.
	if len(ops.Calls) != 2 || ops.Calls[0] != "unmount-device "+device || ops.Calls[1] != "sync" {
		t.Errorf("operations = %v, want unmount-device then sync", ops.Calls)
	}
}

func TestRunSkipsVerificationWithoutReadback(t *testing.T) {
	imagePath := writeTempFile(t, "prepared.img", []byte("payload"))
	device := writeTempFile(t, "device", make([]byte, 64))

	ops := &platform.FakeOps{Readback: false}
	p, out, _ := newTestPipeline(ops)

	if err := p.Run(context.Background(), device, imagePath); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if !strings.HasSuffix(out.String(), "OK\n") {
		t.Errorf("stdout = %q, want trailing OK", out.String())
	}
}

func TestRunEmptyImage(t *testing.T) {
	imagePath := writeTempFile(t, "empty.img", nil)
	device := writeTempFile(t, "device", []byte("untouched"))

	p, out, _ := newTestPipeline(&platform.FakeOps{Readback: true})
	err := p.Run(context.Background(), device, imagePath)
	if !errors.Is(err, ErrImageSize) {
		t.Fatalf("Run() = %v, want ErrImageSize", err)
	}
	if out.Len() != 0 {
		t.Errorf("stdout = %q, want nothing before the size check", out.String())
	}
	got, _ := os.ReadFile(device)
	if string(got) != "untouched" {
		t.Errorf("device was written despite empty image")
	}
}

func TestRunMissingImage(t *testing.T) {
	device := writeTempFile(t, "device", []byte("untouched"))

	p, _, _ := newTestPipeline(&platform.FakeOps{})
	err := p.Run(context.Background(), device, filepath.Join(t.TempDir(), "nope.img"))
	if !errors.Is(err, ErrImageSize) {
		t.Fatalf("Run() = %v, want ErrImageSize", err)
	}
}

func TestRunToleratesUnmountFailure(t *testing.T) {
	imagePath := writeTempFile(t, "prepared.img", []byte("payload"))
	device := writeTempFile(t, "device", make([]byte, 64))

	ops := &platform.FakeOps{Readback: true, UnmountDevErr: errors.New("not mounted")}
	p, _, _ := newTestPipeline(ops)
	if err := p.Run(context.Background(), device, imagePath); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
}

func TestRunReportsProgressCallback(t *testing.T) {
	imagePath := writeTempFile(t, "prepared.img", []byte("payload"))
	device := writeTempFile(t, "device", make([]byte, 64))

	p, _, _ := newTestPipeline(&platform.FakeOps{})
	var lastWritten, lastTotal int64
	p.OnProgress = func(written, total int64) {
		lastWritten, lastTotal = written, total
	}
	if err := p.Run(context.Background(), device, imagePath); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if lastWritten != int64(len("payload")) || lastTotal != int64(len("payload")) {
		t.Errorf("final progress = %d/%d, want %d/%d", lastWritten, lastTotal, len("payload"), len("payload"))
	}
}

func TestCompareFirstN(t *testing.T) {
	content := bytes.Repeat([]byte("abcdefgh"), 1024)
	a := writeTempFile(t, "a", content)

	tampered := append([]byte(nil), content...)
	tampered[4099] ^= 0x01
	b := writeTempFile(t, "b", tampered)

	if err := compareFirstN(a, a, int64(len(content))); err != nil {
		t.Errorf("identical files reported mismatch: %v", err)
	}

	err := compareFirstN(a, b, int64(len(content)))
	if !errors.Is(err, ErrVerifyMismatch) {
		t.Fatalf("compareFirstN() = %v, want ErrVerifyMismatch", err)
	}
	if !strings.Contains(err.Error(), "offset 4099") {
		t.Errorf("mismatch offset missing from error: %v", err)
	}
}
