// Package airports resolves 3-letter airport codes to display names.
//
// Names come from a region-grouped world airports dataset loaded once
// at startup, with a small embedded table as fallback and the code
// itself as last resort. Resolution never fails.
package airports

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// Airport is one entry of the region-grouped dataset. The dataset uses
// Korean field names: 공항코드 is the 3-letter code, 도시 the city name.
type Airport struct {
	Code string `json:"공항코드"`
	City string `json:"도시"`
}

// fallbackNames covers common codes when the dataset is missing or
// does not carry an entry.
var fallbackNames = map[string]string{
	"ICN": "인천",
	"CAN": "광저우",
	"PVG": "상하이",
	"PEK": "베이징",
	"NRT": "나리타",
	"HND": "하네다",
	"KIX": "간사이",
	"BKK": "방콕",
	"SIN": "싱가포르",
	"HKG": "홍콩",
	"TPE": "타이페이",
	"SEL": "서울",
	"GMP": "김포",
}

// terminalHints carries departure terminal hints for common airports.
var terminalHints = map[string]string{
	"ICN": "터미널 1",
	"CAN": "터미널 2",
	"PVG": "터미널 2",
	"PEK": "터미널 3",
	"NRT": "터미널 1",
	"KIX": "터미널 1",
	"BKK": "터미널 1",
}

// Directory maps airport codes to display names. It is built once and
// read-only afterward; Reload swaps the whole mapping atomically so
// concurrent readers never see a partial directory.
type Directory struct {
	mu    sync.RWMutex
	names map[string]string
}

// NewDirectory creates an empty directory; Resolve falls back to the
// embedded table until a dataset is loaded.
func NewDirectory() *Directory {
	return &Directory{names: make(map[string]string)}
}

// Load builds a directory from a region-grouped dataset file.
func Load(path string) (*Directory, error) {
	d := NewDirectory()
	if err := d.Reload(path); err != nil {
		return nil, err
	}
	return d, nil
}

// Reload reads the dataset and replaces the directory contents in a
// single swap. Duplicate codes across regions overwrite in iteration
// order: last write wins, since codes are expected unique anyway.
func (d *Directory) Reload(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read airport dataset: %w", err)
	}

	var regions map[string][]Airport
	if err := json.Unmarshal(data, &regions); err != nil {
		return fmt.Errorf("parse airport dataset: %w", err)
	}

	names := make(map[string]string)
	for _, airports := range regions {
		for _, a := range airports {
			if a.Code == "" {
				continue
			}
			names[a.Code] = a.City
		}
	}

	d.mu.Lock()
	d.names = names
	d.mu.Unlock()
	return nil
}

// Resolve returns a displayable name for a code: the loaded dataset
// first, then the embedded fallback table, then the code unchanged.
func (d *Directory) Resolve(code string) string {
	d.mu.RLock()
	name, ok := d.names[code]
	d.mu.RUnlock()
	if ok {
		return name
	}
	if name, ok := fallbackNames[code]; ok {
		return name
	}
	return code
}

// Terminal returns the departure terminal hint for a code, or "" when
// none is known.
func (d *Directory) Terminal(code string) string {
	return terminalHints[code]
}

// Len reports how many codes the loaded dataset covers.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.names)
}
