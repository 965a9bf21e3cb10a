package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pharmstack/invoice-ledger/internal/fewshot"
)

const surveyPrompt = `Survey this pharmacy purchase invoice and propose its layout zones.
Report a "header" zone (supplier, invoice number/date), a "footer" zone
(discount, freight, tax, grand total) and at most ONE "primary_table" zone.
The primary table is the zone whose rows have a product description column.
A tax or HSN summary table has no description column; it is NOT the primary
table and must not be reported as one.`

const tableZonePrompt = `Transcribe the table zone described as %q from this invoice.
Return the rows as a raw markdown table, one invoice row per line, keeping
column order exactly as printed. Do not invent, merge or total rows.`

const modifierZonePrompt = `From the %s zone described as %q, extract the invoice-level fields:
supplier name, invoice number, invoice date, discount amount, freight
amount, tax amount and the stated grand total. Omit fields that are not
printed.`

const wholePagePrompt = `Transcribe every billable line item on this invoice as one raw markdown
table with columns: product, pack, qty, free, batch, expiry, hsn, rate,
amount, mrp. Read the whole page; do not skip rows.`

// retryPromptWith appends the critic's last feedback so the next attempt is
// steered at the observed mismatch.
func retryPromptWith(feedback string) string {
	if feedback == "" {
		return wholePagePrompt
	}
	return wholePagePrompt + "\n\nA previous attempt was rejected for this reason, correct it:\n" + feedback
}

// mapPrompt asks the capability to bind raw rows to the canonical line-item
// shape, seeded with vendor column hints and at most one past example.
func mapPrompt(rawRows []string, hints map[string]string, example *fewshot.Example) string {
	var b strings.Builder
	b.WriteString("Parse these raw invoice table rows into line items with fields ")
	b.WriteString("product, pack, qty, free, batch, expiry, hsn, rate, amount, mrp.\n")
	b.WriteString("qty is the billed quantity; free is bonus quantity; amount is the row's net value.\n")

	if len(hints) > 0 {
		b.WriteString("\nThis vendor labels its columns unusually:\n")
		for canonical, alias := range hints {
			fmt.Fprintf(&b, "- the column printed as %q holds %s\n", alias, canonical)
		}
	}

	if example != nil {
		b.WriteString("\nA previously confirmed invoice in the same layout, for reference:\n")
		b.WriteString("RAW:\n")
		b.WriteString(example.RawText)
		b.WriteString("\nPARSED:\n")
		b.WriteString(example.FinalJSON)
		b.WriteString("\n")
	}

	b.WriteString("\nRows to parse:\n")
	for _, r := range rawRows {
		b.WriteString(r)
		b.WriteString("\n")
	}
	return b.String()
}

// batchPrompt asks only for the batch number of one named product.
func batchPrompt(product string) string {
	return fmt.Sprintf(`On this invoice, find the row for the product %q and return ONLY its
batch number as printed. If no batch is printed for that row, return an
empty string.`, product)
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}
