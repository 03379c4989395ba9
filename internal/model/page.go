package model

import "encoding/json"

// Page is one page of a paginated collection, in the shape the API returns.
type Page[T any] struct {
	Content       []T `json:"content"`
	TotalElements int `json:"totalElements"`
	TotalPages    int `json:"totalPages"`
	Number        int `json:"number"`
	Size          int `json:"size"`

	// Skipped counts content entries that could not be decoded.
	Skipped int `json:"-"`
}

// UnmarshalJSON decodes content entry by entry so one malformed entity
// does not discard the rest of the page.
func (p *Page[T]) UnmarshalJSON(data []byte) error {
	var raw struct {
		Content       []json.RawMessage `json:"content"`
		TotalElements int               `json:"totalElements"`
		TotalPages    int               `json:"totalPages"`
		Number        int               `json:"number"`
		Size          int               `json:"size"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	p.Content, p.Skipped = DecodeEach[T](raw.Content)
	p.TotalElements = raw.TotalElements
	p.TotalPages = raw.TotalPages
	p.Number = raw.Number
	p.Size = raw.Size
	return nil
}

// DecodeEach decodes every element it can and returns how many it skipped.
func DecodeEach[T any](raw []json.RawMessage) ([]T, int) {
	out := make([]T, 0, len(raw))
	skipped := 0
	for _, r := range raw {
		var v T
		if err := json.Unmarshal(r, &v); err != nil {
			skipped++
			continue
		}
		out = append(out, v)
	}
	return out, skipped
}
