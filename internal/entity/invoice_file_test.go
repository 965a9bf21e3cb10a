package entity

import (
	"os"
	"path/filepath"
	"testing"
)

func TestStatInvoiceFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Scan_0042.JPG")
	if err := os.WriteFile(path, []byte("not really a jpeg"), 0o644); err != nil {
		t.Fatal(err)
	}

	f, err := StatInvoiceFile(path)
	if err != nil {
		t.Fatalf("StatInvoiceFile: %v", err)
	}
	if f.Filename != "Scan_0042.JPG" {
		t.Errorf("filename = %q", f.Filename)
	}
	if f.FileExt != "jpg" {
		t.Errorf("ext = %q, want lowercased jpg", f.FileExt)
	}
	if f.FileSize != int64(len("not really a jpeg")) {
		t.Errorf("size = %d", f.FileSize)
	}
	if f.Oversize(16) {
		t.Error("tiny file reported oversize")
	}

	if _, err := StatInvoiceFile(dir); err == nil {
		t.Error("directory accepted as invoice file")
	}
	if _, err := StatInvoiceFile(filepath.Join(dir, "missing.jpg")); err == nil {
		t.Error("missing file accepted")
	}
}
