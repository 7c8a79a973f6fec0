package fetch

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestDownload(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Disposition", `attachment; filename="ufg_config_package-n70201.tgz"`)
		w.Write([]byte("archive bytes"))
	}))
	defer srv.Close()

	c := New(quietLogger())
	c.Token = "secret"

	dir := t.TempDir()
	dest, err := c.Download(context.Background(), srv.URL+"/artifacts/123", dir)
	if err != nil {
		t.Fatalf("Download() error: %v", err)
	}

	if gotAuth != "Bearer secret" {
		t.Errorf("Authorization = %q, want Bearer secret", gotAuth)
	}
	if want := filepath.Join(dir, "ufg_config_package-n70201.tgz"); dest != want {
		t.Errorf("dest = %q, want %q", dest, want)
	}
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "archive bytes" {
		t.Errorf("downloaded content = %q", data)
	}
}

func TestDownloadNameFromURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("x"))
	}))
	defer srv.Close()

	c := New(quietLogger())
	dest, err := c.Download(context.Background(), srv.URL+"/files/pkg-n1.tgz", t.TempDir())
	if err != nil {
		t.Fatalf("Download() error: %v", err)
	}
	if filepath.Base(dest) != "pkg-n1.tgz" {
		t.Errorf("dest name = %q, want pkg-n1.tgz", filepath.Base(dest))
	}
}

func TestDownloadRejectsNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := New(quietLogger())
	if _, err := c.Download(context.Background(), srv.URL+"/missing.tgz", t.TempDir()); err == nil {
		t.Fatal("Download() succeeded on 404")
	}
}

func TestFileName(t *testing.T) {
	tests := []struct {
		disposition string
		url         string
		want        string
	}{
		{`attachment; filename="pkg-n1.tgz"`, "https://example.com/x", "pkg-n1.tgz"},
		{`attachment; filename="../../etc/passwd"`, "https://example.com/x", "passwd"},
		{"", "https://example.com/files/pkg-n1.tgz", "pkg-n1.tgz"},
		{"", "https://example.com/files/pkg-n1.tgz?token=abc", "pkg-n1.tgz"},
		{"", "https://example.com/", ""},
	}
	for _, tt := range tests {
		if got := fileName(tt.disposition, tt.url); got != tt.want {
			t.Errorf("fileName(%q, %q) = %q, want %q", tt.disposition, tt.url, got, tt.want)
		}
	}
}
