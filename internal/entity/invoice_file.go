package entity

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// InvoiceFile describes one ingested invoice image on disk.
type InvoiceFile struct {
	ID         uuid.UUID `json:"id"`
	SourcePath string    `json:"source_path"`
	Filename   string    `json:"filename"`
	FileExt    string    `json:"file_ext"`
	FileSize   int64     `json:"file_size"`
	SeenAt     time.Time `json:"seen_at"`
}

// StatInvoiceFile builds an InvoiceFile record from a path on disk.
func StatInvoiceFile(path string) (*InvoiceFile, error) {
	st, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat invoice file: %w", err)
	}
	if st.IsDir() {
		return nil, fmt.Errorf("invoice path %s is a directory", path)
	}
	return &InvoiceFile{
		ID:         uuid.New(),
		SourcePath: path,
		Filename:   filepath.Base(path),
		FileExt:    strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")),
		FileSize:   st.Size(),
		SeenAt:     time.Now().UTC(),
	}, nil
}

// Oversize reports whether the file exceeds the given megabyte cap.
func (f *InvoiceFile) Oversize(maxMB int) bool {
	return f.FileSize > int64(maxMB)*1024*1024
}
