package session

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ajitpratap0/ees/internal/domain"
)

// universeFile is the on-disk shape of the tradable universe: a flat list
// of symbols with their bull/bear sentiment-mapping orientation, the same
// leaf-level fields domain.Symbol carries.
type universeFile struct {
	Symbols []domain.Symbol `yaml:"symbols"`
}

// LoadUniverse reads the tradable symbol universe from a YAML file of the
// form:
//
//	symbols:
//	  - ticker: SOXL
//	    exchange: NASDAQ
//	    tradable: true
//	    sentiment: bull
//	    lotsize: 1
//	    ticksize: 10000
//	    minposvalue: 500000000
//
// domain.Symbol carries no yaml tags, so field keys follow go-yaml's
// default lowercased-field-name convention. Micros fields (ticksize,
// minposvalue) are whole integers, matching domain.Micros's underlying
// int64 representation.
func LoadUniverse(path string) ([]domain.Symbol, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read universe file: %w", err)
	}
	var uf universeFile
	if err := yaml.Unmarshal(raw, &uf); err != nil {
		return nil, fmt.Errorf("failed to parse universe file: %w", err)
	}
	out := make([]domain.Symbol, 0, len(uf.Symbols))
	for _, s := range uf.Symbols {
		if !s.Tradable {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}
