package models

import (
	"strings"
	"unicode/utf8"
)

// NotApplicable is the cell value for an item that lacks an attribute.
const NotApplicable = "-"

// ComparisonMatrix is the dense attribute table of one comparison set.
type ComparisonMatrix struct {
	Comparison Comparison   `json:"comparison"`
	Items      []MatrixItem `json:"items"`
	Table      []MatrixRow  `json:"table"`
}

type MatrixItem struct {
	ID             int64                 `json:"id"`
	Name           string                `json:"name"`
	Price          Money                 `json:"price"`
	ImageURL       string                `json:"image_url,omitempty"`
	Specifications map[string]MatrixCell `json:"specifications"`
}

type MatrixCell struct {
	Value string  `json:"value"`
	Unit  *string `json:"unit"`
}

// MatrixRow holds one attribute; Cells follows the order of Items.
type MatrixRow struct {
	Attribute string       `json:"attribute"`
	Cells     []MatrixCell `json:"cells"`
}

// ValidateComparisonName trims and checks a comparison name.
func ValidateComparisonName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if n := utf8.RuneCountInString(name); n < 1 || n > 100 {
		return "", &ValidationError{Field: "name", Reason: "must be between 1 and 100 characters"}
	}
	return name, nil
}
