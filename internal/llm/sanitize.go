package llm

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"strings"
)

// NormalizeLineItemJSON
// - Renames known column synonyms (description -> product, quantity -> qty, ...)
// - Drops null/empty optionals
// - Coerces numeric values to strings so the normalizer owns all parsing
// - Removes unknown keys
func NormalizeLineItemJSON(raw []byte, logger *slog.Logger) ([]byte, []string, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var doc struct {
		Items []map[string]any `json:"items"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, nil, fmt.Errorf("sanitize: decode: %w", err)
	}

	dropped := make([]string, 0, 8)
	for _, m := range doc.Items {
		renameKey(m, "description", "product")
		renameKey(m, "item", "product")
		renameKey(m, "item_name", "product")
		renameKey(m, "quantity", "qty")
		renameKey(m, "free_qty", "free")
		renameKey(m, "batch_no", "batch")
		renameKey(m, "exp", "expiry")
		renameKey(m, "hsn_code", "hsn")
		renameKey(m, "total", "amount")
		renameKey(m, "value", "amount")

		for k, v := range maps.Clone(m) {
			switch t := v.(type) {
			case nil:
				delete(m, k)
				dropped = append(dropped, k+"(null)")
			case float64:
				m[k] = fmt.Sprintf("%g", t)
			case string:
				s := strings.TrimSpace(t)
				if s == "" || strings.EqualFold(s, "null") {
					delete(m, k)
					dropped = append(dropped, k+"(empty)")
				} else {
					m[k] = s
				}
			default:
				delete(m, k)
				dropped = append(dropped, k+"(type)")
			}
		}

		allowed := map[string]struct{}{
			"product": {}, "pack": {}, "qty": {}, "free": {}, "batch": {},
			"expiry": {}, "hsn": {}, "rate": {}, "amount": {}, "mrp": {},
		}
		for k := range maps.Clone(m) {
			if _, ok := allowed[k]; !ok {
				delete(m, k)
				dropped = append(dropped, k+"(unknown)")
			}
		}
	}

	out, err := json.Marshal(doc)
	if err != nil {
		return nil, dropped, fmt.Errorf("sanitize: encode: %w", err)
	}
	if len(dropped) > 0 {
		logger.Warn("llm.lineitems.normalize_sanitize", "dropped", dropped)
	}
	return out, dropped, nil
}

func renameKey(m map[string]any, from, to string) {
	if v, ok := m[from]; ok {
		if _, exists := m[to]; !exists {
			m[to] = v
		}
		delete(m, from)
	}
}
