package models

import (
	"encoding/json"
	"fmt"
)

// ListPage is one page of records returned by an entity list endpoint.
type ListPage struct {
	Records []Record `json:"records"`
	Total   int      `json:"total"`
}

// DecodeListBody decodes the two response shapes entity list endpoints
// produce: a bare JSON array of records, or an envelope of the form
// {"<entityPlural>": [...], "total": N}. "items" is accepted as a generic
// envelope key when the entity-named key is absent.
func DecodeListBody(body []byte, entity string) (ListPage, error) {
	var records []Record
	if err := json.Unmarshal(body, &records); err == nil {
		return ListPage{Records: records, Total: len(records)}, nil
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return ListPage{}, fmt.Errorf("decode list response for %s: %w", entity, err)
	}

	var page ListPage
	for _, key := range []string{entity, "items"} {
		raw, ok := envelope[key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(raw, &page.Records); err != nil {
			return ListPage{}, fmt.Errorf("decode %q list for %s: %w", key, entity, err)
		}
		break
	}
	if page.Records == nil {
		return ListPage{}, fmt.Errorf("list response for %s has no recognisable records field", entity)
	}

	page.Total = len(page.Records)
	if raw, ok := envelope["total"]; ok {
		var total int
		if err := json.Unmarshal(raw, &total); err == nil {
			page.Total = total
		}
	}

	return page, nil
}
