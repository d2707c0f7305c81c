package geo

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/goccy/go-yaml"
)

//go:embed data/iso_codes.yaml
var isoCodesYAML []byte

// CodeTable maps external ISO 3166-1 alpha-3 identifiers to the internal
// two-letter region codes.
type CodeTable struct {
	byISO3 map[string]string
}

// ParseCodeTable decodes a YAML mapping of ISO3 -> code.
func ParseCodeTable(data []byte) (*CodeTable, error) {
	raw := map[string]string{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse code table: %w", err)
	}
	t := &CodeTable{byISO3: make(map[string]string, len(raw))}
	for iso3, code := range raw {
		iso3 = strings.ToUpper(strings.TrimSpace(iso3))
		code = strings.ToUpper(strings.TrimSpace(code))
		if len(iso3) != 3 || len(code) != 2 {
			return nil, fmt.Errorf("parse code table: bad entry %q: %q", iso3, code)
		}
		t.byISO3[iso3] = code
	}
	return t, nil
}

// DefaultCodeTable returns the embedded mapping.
func DefaultCodeTable() *CodeTable {
	t, err := ParseCodeTable(isoCodesYAML)
	if err != nil {
		panic(err)
	}
	return t
}

// Lookup returns the internal code for an ISO3 identifier.
func (t *CodeTable) Lookup(iso3 string) (string, bool) {
	code, ok := t.byISO3[strings.ToUpper(strings.TrimSpace(iso3))]
	return code, ok
}

// Len reports the number of mapped identifiers.
func (t *CodeTable) Len() int { return len(t.byISO3) }
