// Package export writes completed runs to an XLSX ledger, one workbook per
// invoice.
package export

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/pharmstack/invoice-ledger/internal/entity"
)

// Service turns FinalOutput records into XLSX workbooks on disk.
type Service struct {
	dir    string
	logger *slog.Logger
}

func NewService(dir string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{dir: dir, logger: logger}
}

// Write renders the run to XLSX and saves it under the export directory,
// named after the invoice number when known, else the run ID.
func (s *Service) Write(ctx context.Context, out *entity.FinalOutput) error {
	start := time.Now()

	b, err := BuildXLSX(out)
	if err != nil {
		return fmt.Errorf("build ledger workbook: %w", err)
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}
	name := safeName(out.Headers.InvoiceNumber)
	if name == "" {
		name = out.RunID.String()
	}
	path := filepath.Join(s.dir, name+".xlsx")
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write ledger workbook: %w", err)
	}

	s.logger.Info("export.ledger.ok",
		"run_id", out.RunID,
		"path", path,
		"line_items", len(out.LineItems),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// BuildXLSX returns the ledger workbook as bytes.
func BuildXLSX(out *entity.FinalOutput) ([]byte, error) {
	f := excelize.NewFile()
	const sheet = "Ledger"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)
	if idx, _ := f.GetSheetIndex("Sheet1"); idx != -1 {
		_ = f.DeleteSheet("Sheet1")
	}

	headers := []string{
		"Item",
		"Pack",
		"Qty",
		"Net Amount",
		"Landed Cost",
		"Sale Rate A",
		"Sale Rate B",
		"Sale Rate C",
		"Batch",
		"Expiry",
		"HSN",
		"Provenance",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	row := 2
	for _, it := range out.LineItems {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}
		write(1, it.ItemName)
		write(2, it.PackSize)
		write(3, it.Quantity)
		write(4, round2(it.NetAmount))
		write(5, round2(it.UnitCost))
		write(6, round2(it.SaleRateA))
		write(7, round2(it.SaleRateB))
		write(8, round2(it.SaleRateC))
		write(9, it.Batch)
		write(10, it.Expiry)
		write(11, it.HSNCode)
		write(12, it.Provenance)
		row++
	}

	// Invoice-level footer block.
	row++
	meta := [][2]any{
		{"Supplier", out.Headers.SupplierName},
		{"Invoice No", out.Headers.InvoiceNumber},
		{"Invoice Date", out.Headers.InvoiceDate},
		{"Stated Total", round2(out.Headers.GrandTotal)},
		{"Verdict", string(out.Verdict)},
	}
	if out.Unresolved {
		meta = append(meta, [2]any{"Review", "UNRESOLVED MISMATCH"})
	}
	for _, kv := range meta {
		cellK, _ := excelize.CoordinatesToCellName(1, row)
		cellV, _ := excelize.CoordinatesToCellName(2, row)
		_ = f.SetCellValue(sheet, cellK, kv[0])
		_ = f.SetCellValue(sheet, cellV, kv[1])
		row++
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}

func safeName(s string) string {
	s = strings.TrimSpace(s)
	repl := strings.NewReplacer("/", "-", "\\", "-", " ", "_", ":", "-")
	return repl.Replace(s)
}
