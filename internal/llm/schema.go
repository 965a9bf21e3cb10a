package llm

// Schema builders for the structured payloads we request from the
// capability. Passed to the provider as an output constraint and used
// locally to validate before decoding.

// BuildLayoutSchema constrains the surveyor's zone plan.
func BuildLayoutSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"zones": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":                 "object",
					"additionalProperties": false,
					"properties": map[string]any{
						"id":          map[string]any{"type": "string", "minLength": 1},
						"type":        map[string]any{"type": "string", "enum": []string{"header", "footer", "primary_table"}},
						"description": map[string]any{"type": "string"},
					},
					"required": []string{"id", "type"},
				},
			},
		},
		"required": []string{"zones"},
	}
}

// BuildModifiersSchema constrains header/footer key-value extraction.
func BuildModifiersSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"supplier_name":   map[string]any{"type": "string"},
			"invoice_number":  map[string]any{"type": "string"},
			"invoice_date":    map[string]any{"type": "string"},
			"discount_amount": numberProp(),
			"freight_amount":  numberProp(),
			"tax_amount":      numberProp(),
			"grand_total":     numberProp(),
		},
	}
}

// BuildLineItemsSchema constrains the mapper's canonical row shape.
func BuildLineItemsSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"items": map[string]any{
				"type": "array",
				// Keys are permissive on purpose: models drift into synonyms
				// (description, quantity, batch_no) and the sanitize pass
				// renames them after validation.
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"product": map[string]any{"type": "string"},
						"pack":    map[string]any{"type": "string"},
						"qty":     stringOrNumberProp(),
						"free":    stringOrNumberProp(),
						"batch":   map[string]any{"type": "string"},
						"expiry":  map[string]any{"type": "string"},
						"hsn":     map[string]any{"type": "string"},
						"rate":    stringOrNumberProp(),
						"amount":  stringOrNumberProp(),
						"mrp":     stringOrNumberProp(),
					},
				},
			},
		},
		"required": []string{"items"},
	}
}

// BuildBatchSchema constrains the detective's single-field answer.
func BuildBatchSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"batch": map[string]any{"type": "string"},
		},
		"required": []string{"batch"},
	}
}

func numberProp() map[string]any {
	return map[string]any{"type": []string{"number", "string"}}
}

func stringOrNumberProp() map[string]any {
	return map[string]any{"type": []string{"string", "number"}}
}
