package compose

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// OffsetStep applies Shift to text fields taller than Above viewport pixels
type OffsetStep struct {
	Above float64 `json:"above"`
	Shift float64 `json:"shift"`
}

// OffsetTable maps a text field's viewport height to the distance, in PDF points,
// between the field's top edge and the text baseline. Steps are kept sorted by
// Above, descending; the last step also covers heights at or below its threshold.
type OffsetTable []OffsetStep

// DefaultTextOffsets positions single-line text for common field heights
var DefaultTextOffsets = OffsetTable{
	{Above: 50, Shift: 30},
	{Above: 40, Shift: 23},
	{Above: 0, Shift: 12},
}

// Shift returns the baseline offset for a field of viewport height h
func (t OffsetTable) Shift(h float64) float64 {
	if len(t) == 0 {
		return 0
	}
	for _, step := range t {
		if h > step.Above {
			return step.Shift
		}
	}
	return t[len(t)-1].Shift
}

func (t OffsetTable) String() string {
	parts := make([]string, len(t))
	for i, step := range t {
		parts[i] = strconv.FormatFloat(step.Above, 'f', -1, 64) + ":" + strconv.FormatFloat(step.Shift, 'f', -1, 64)
	}
	return strings.Join(parts, ",")
}

// ParseOffsetTable parses "above:shift" pairs separated by commas, e.g. "50:30,40:23,0:12"
func ParseOffsetTable(s string) (OffsetTable, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("offset table is empty")
	}

	var table OffsetTable
	seen := make(map[float64]bool)
	for _, pair := range strings.Split(s, ",") {
		above, shift, ok := strings.Cut(strings.TrimSpace(pair), ":")
		if !ok {
			return nil, fmt.Errorf("invalid offset step %q: expected above:shift", pair)
		}
		a, err := strconv.ParseFloat(strings.TrimSpace(above), 64)
		if err != nil || a < 0 {
			return nil, fmt.Errorf("invalid threshold in offset step %q", pair)
		}
		sh, err := strconv.ParseFloat(strings.TrimSpace(shift), 64)
		if err != nil || sh < 0 {
			return nil, fmt.Errorf("invalid shift in offset step %q", pair)
		}
		if seen[a] {
			return nil, fmt.Errorf("duplicate threshold %v in offset table", a)
		}
		seen[a] = true
		table = append(table, OffsetStep{Above: a, Shift: sh})
	}

	sort.Slice(table, func(i, j int) bool { return table[i].Above > table[j].Above })
	return table, nil
}
