package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/pharmstack/invoice-ledger/constants"
	"github.com/pharmstack/invoice-ledger/internal/llm"
)

const testLayoutJSON = `{"zones":[
	{"id":"z1","type":"header","description":"supplier strip"},
	{"id":"z2","type":"primary_table","description":"product table"},
	{"id":"z3","type":"footer","description":"totals block"}
]}`

const testHeaderJSON = `{"supplier_name":"MEDIPLUS DISTRIBUTORS","invoice_number":"INV-4471","invoice_date":"2024-03-12"}`

const testTableText = `| DOLO 650 TAB | 1x15 | 10 | DL123 | 45 | 450 | 60 |
| AZEE 500 TAB | 1x5 | 5 | AZ001 | 111 | 555 | 150 |`

// scriptedExtractor answers each stage's request from canned payloads,
// dispatching on distinctive prompt fragments. Map outputs are consumed in
// order so retry passes can return improved extractions.
type scriptedExtractor struct {
	mu sync.Mutex

	layoutJSON    string
	headerJSON    string
	footerJSON    string
	tableText     string
	wholePageText string
	batchJSON     string
	mapOutputs    []string

	failPromptSubstr string

	mapCalls        int
	wholePageCalls  int
	lastWholePrompt string
}

func (s *scriptedExtractor) Extract(_ context.Context, req llm.ExtractRequest) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := req.Prompt
	if s.failPromptSubstr != "" && strings.Contains(p, s.failPromptSubstr) {
		return "", errors.New("vision request timed out")
	}

	switch {
	case strings.Contains(p, "Survey this pharmacy"):
		return s.layoutJSON, nil
	case strings.Contains(p, "Transcribe the table zone"):
		return s.tableText, nil
	case strings.Contains(p, "From the header zone"):
		return s.headerJSON, nil
	case strings.Contains(p, "From the footer zone"):
		return s.footerJSON, nil
	case strings.Contains(p, "Transcribe every billable line item"):
		s.wholePageCalls++
		s.lastWholePrompt = p
		return s.wholePageText, nil
	case strings.Contains(p, "Parse these raw invoice table rows"):
		i := s.mapCalls
		s.mapCalls++
		if i >= len(s.mapOutputs) {
			i = len(s.mapOutputs) - 1
		}
		return s.mapOutputs[i], nil
	case strings.Contains(p, "find the row for the product"):
		return s.batchJSON, nil
	}
	return "", fmt.Errorf("unscripted prompt: %.60s", p)
}

func pipelineWith(ex llm.Extractor) *Pipeline {
	p := testPipeline()
	p.Extractor = ex
	return p
}

func TestRun_ApprovePath(t *testing.T) {
	ex := &scriptedExtractor{
		layoutJSON: testLayoutJSON,
		headerJSON: testHeaderJSON,
		footerJSON: `{"grand_total":1000,"discount_amount":"25.50"}`,
		tableText:  testTableText,
		mapOutputs: []string{`{"items":[
			{"product":"DOLO 650 TAB","pack":"1x15","qty":"10","batch":"DL123","rate":"45","amount":"450","mrp":"60"},
			{"product":"AZEE 500 TAB","pack":"1x5","qty":"5","batch":"AZ001","rate":"111","amount":"555","mrp":"150"}
		]}`},
	}
	p := pipelineWith(ex)

	out, err := p.Run(context.Background(), "invoice.jpg")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Verdict != constants.VerdictApprove {
		t.Fatalf("verdict = %s, want approve at ratio 1000/1005", out.Verdict)
	}
	if out.Unresolved {
		t.Error("approved run flagged unresolved")
	}
	if len(out.LineItems) != 2 {
		t.Fatalf("line items = %d, want 2", len(out.LineItems))
	}
	if out.Headers.SupplierName != "MEDIPLUS DISTRIBUTORS" {
		t.Errorf("supplier = %q, header zone not merged", out.Headers.SupplierName)
	}
	if out.Headers.GrandTotal != 1000 {
		t.Errorf("grand total = %v, footer zone not merged", out.Headers.GrandTotal)
	}
	if out.Headers.DiscountAmount != 25.5 {
		t.Errorf("discount = %v, noisy string cell not parsed", out.Headers.DiscountAmount)
	}
	if ex.wholePageCalls != 0 {
		t.Errorf("whole-page retries = %d on a clean run", ex.wholePageCalls)
	}
}

func TestRun_RecoversMissingBatchMidRun(t *testing.T) {
	ex := &scriptedExtractor{
		layoutJSON: testLayoutJSON,
		headerJSON: testHeaderJSON,
		footerJSON: `{"grand_total":1000}`,
		tableText:  testTableText,
		batchJSON:  `{"batch":"B.No: AZ771"}`,
		mapOutputs: []string{`{"items":[
			{"product":"DOLO 650 TAB","pack":"1x15","qty":"10","batch":"DL123","rate":"45","amount":"450","mrp":"60"},
			{"product":"AZEE 500 TAB","pack":"1x5","qty":"5","batch":"","rate":"111","amount":"555","mrp":"150"}
		]}`},
	}
	p := pipelineWith(ex)

	out, err := p.Run(context.Background(), "invoice.jpg")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Verdict != constants.VerdictApprove {
		t.Fatalf("verdict = %s, want approve", out.Verdict)
	}
	var batch string
	for _, li := range out.LineItems {
		if strings.Contains(li.ItemName, "AZEE") {
			batch = li.Batch
		}
	}
	if batch != "AZ771" {
		t.Errorf("batch = %q, want AZ771 from the targeted second pass", batch)
	}
}

func TestRun_MarkupPathScalesToStated(t *testing.T) {
	ex := &scriptedExtractor{
		layoutJSON: testLayoutJSON,
		headerJSON: testHeaderJSON,
		footerJSON: `{"grand_total":920}`,
		tableText:  testTableText,
		mapOutputs: []string{`{"items":[
			{"product":"A TAB","qty":"10","batch":"AA111","rate":"50","amount":"500","mrp":"70"},
			{"product":"B TAB","qty":"5","batch":"BB222","rate":"75","amount":"375","mrp":"90"}
		]}`},
	}
	p := pipelineWith(ex)

	out, err := p.Run(context.Background(), "invoice.jpg")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Verdict != constants.VerdictApplyMarkup {
		t.Fatalf("verdict = %s, want markup at ratio 920/875", out.Verdict)
	}
	var sum float64
	for _, item := range out.LineItems {
		sum += item.NetAmount
	}
	if math.Abs(sum-920) > 0.01 {
		t.Errorf("scaled line sum = %v, want the stated 920", sum)
	}
}

func TestRun_RetryThenApprove(t *testing.T) {
	ex := &scriptedExtractor{
		layoutJSON:    testLayoutJSON,
		headerJSON:    testHeaderJSON,
		footerJSON:    `{"grand_total":500}`,
		tableText:     testTableText,
		wholePageText: "| A TAB | 10 | AA111 | 30 | 300 | 40 |\n| B TAB | 5 | BB222 | 40 | 200 | 55 |",
		mapOutputs: []string{
			`{"items":[{"product":"A TAB","qty":"2","batch":"AA111","rate":"50","amount":"100","mrp":"70"}]}`,
			`{"items":[
				{"product":"A TAB","qty":"10","batch":"AA111","rate":"30","amount":"300","mrp":"40"},
				{"product":"B TAB","qty":"5","batch":"BB222","rate":"40","amount":"200","mrp":"55"}
			]}`,
		},
	}
	p := pipelineWith(ex)

	out, err := p.Run(context.Background(), "invoice.jpg")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Verdict != constants.VerdictApprove {
		t.Fatalf("verdict = %s, want approve on second pass", out.Verdict)
	}
	if ex.wholePageCalls != 1 {
		t.Errorf("whole-page calls = %d, want 1", ex.wholePageCalls)
	}
	if ex.mapCalls != 2 {
		t.Errorf("map calls = %d, want 2", ex.mapCalls)
	}
	if !strings.Contains(ex.lastWholePrompt, "rejected for this reason") ||
		!strings.Contains(ex.lastWholePrompt, "missing") {
		t.Errorf("retry prompt does not carry the critic's feedback:\n%s", ex.lastWholePrompt)
	}
	if len(out.LineItems) != 2 {
		t.Errorf("line items = %d, want 2 from the corrected pass", len(out.LineItems))
	}
	if len(out.Feedback) != 1 {
		t.Errorf("feedback log = %d entries, want the single rejection", len(out.Feedback))
	}
}

func TestRun_RetryCeilingEmitsUnresolvedOutput(t *testing.T) {
	ex := &scriptedExtractor{
		layoutJSON:    testLayoutJSON,
		headerJSON:    testHeaderJSON,
		footerJSON:    `{"grand_total":1000}`,
		tableText:     testTableText,
		wholePageText: "| A TAB | 2 | AA111 | 50 | 100 | 70 |",
		mapOutputs: []string{
			`{"items":[{"product":"A TAB","qty":"2","batch":"AA111","rate":"50","amount":"100","mrp":"70"}]}`,
		},
	}
	p := pipelineWith(ex)

	out, err := p.Run(context.Background(), "invoice.jpg")
	if err != nil {
		t.Fatalf("Run: %v, want best-effort output at the ceiling", err)
	}
	if !out.Unresolved {
		t.Fatal("ceiling run not flagged unresolved")
	}
	if out.Verdict != constants.VerdictRetryOCR {
		t.Errorf("verdict = %s, want the final retry verdict preserved", out.Verdict)
	}
	if len(out.LineItems) != 1 {
		t.Fatalf("line items = %d, want the best-effort extraction kept", len(out.LineItems))
	}
	if out.LineItems[0].NetAmount != 100 {
		t.Errorf("net amount = %v, want unscaled 100 at the ceiling", out.LineItems[0].NetAmount)
	}
	if ex.wholePageCalls != 2 {
		t.Errorf("whole-page calls = %d, want exactly the 2 permitted retries", ex.wholePageCalls)
	}
	if len(out.Feedback) != 3 {
		t.Errorf("feedback log = %d entries, want one per judged pass", len(out.Feedback))
	}
}

func TestRun_ZoneFailureDegradesGracefully(t *testing.T) {
	ex := &scriptedExtractor{
		layoutJSON:       testLayoutJSON,
		headerJSON:       testHeaderJSON,
		footerJSON:       `{"grand_total":1000}`,
		tableText:        testTableText,
		failPromptSubstr: "totals block",
		mapOutputs: []string{`{"items":[
			{"product":"DOLO 650 TAB","qty":"10","batch":"DL123","rate":"45","amount":"450","mrp":"60"}
		]}`},
	}
	p := pipelineWith(ex)

	out, err := p.Run(context.Background(), "invoice.jpg")
	if err != nil {
		t.Fatalf("Run: %v, want degraded continuation past the failed zone", err)
	}
	// No footer means no stated total, which is an approve-with-feedback.
	if out.Verdict != constants.VerdictApprove {
		t.Fatalf("verdict = %s, want approve with nothing to reconcile", out.Verdict)
	}
	found := false
	for _, e := range out.Errors {
		if strings.Contains(e, "z3") {
			found = true
		}
	}
	if !found {
		t.Errorf("zone failure not recorded, errors: %v", out.Errors)
	}
}

func TestRun_SurveyWithNoZonesFails(t *testing.T) {
	ex := &scriptedExtractor{layoutJSON: `{"zones":[]}`}
	p := pipelineWith(ex)

	out, err := p.Run(context.Background(), "invoice.jpg")
	if err == nil {
		t.Fatalf("Run succeeded with an empty zone plan: %+v", out)
	}
	if !strings.Contains(err.Error(), "survey") {
		t.Errorf("error %q does not name the failed stage", err)
	}
}

func TestRun_SurveyDropsUnknownAndExtraTableZones(t *testing.T) {
	ex := &scriptedExtractor{
		layoutJSON: `{"zones":[
			{"id":"z1","type":"primary_table","description":"product table"},
			{"id":"z2","type":"primary_table","description":"tax summary misread"},
			{"id":"z3","type":"barcode","description":"model freelancing"}
		]}`,
		tableText: testTableText,
		mapOutputs: []string{`{"items":[
			{"product":"DOLO 650 TAB","qty":"10","batch":"DL123","rate":"45","amount":"450","mrp":"60"}
		]}`},
	}
	p := pipelineWith(ex)

	out, err := p.Run(context.Background(), "invoice.jpg")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	// Only the first table zone survives, so one extraction block exists and
	// a repeated-row pair would have been treated as single-source.
	if len(out.LineItems) != 1 {
		t.Errorf("line items = %d, want 1 from the single surviving table zone", len(out.LineItems))
	}
}
