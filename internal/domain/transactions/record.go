package transactions

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

var fieldAliases = map[string][]string{
	"id":       {"id", "transaction_id"},
	"date":     {"date", "transaction_date"},
	"amount":   {"amount"},
	"vendor":   {"vendor", "vendor_name"},
	"category": {"category"},
}

// DecodeRecords parses a JSON array of transaction records. Each record keeps
// its original JSON as RawPayload. Numbers keep their literal text, so
// 150.00 stays "150.00". Status and risk level are never taken from input.
func DecodeRecords(data []byte) ([]*Transaction, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("decode transaction records: %w", err)
	}
	out := make([]*Transaction, 0, len(raws))
	for i, raw := range raws {
		t, err := DecodeRecord(raw)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		out = append(out, t)
	}
	return out, nil
}

// DecodeRecord parses one JSON object into a Transaction.
func DecodeRecord(raw json.RawMessage) (*Transaction, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, err
	}
	if m == nil {
		return nil, fmt.Errorf("record is null")
	}
	field := func(name string) string {
		for _, key := range fieldAliases[name] {
			if v, ok := m[key]; ok {
				return text(v)
			}
		}
		return ""
	}
	return &Transaction{
		ID:         strings.TrimSpace(field("id")),
		Date:       field("date"),
		Amount:     field("amount"),
		Vendor:     field("vendor"),
		Category:   field("category"),
		RawPayload: append(json.RawMessage(nil), raw...),
	}, nil
}

func text(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}
