package templates

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/aretw0/codeflow/pkg/domain"
)

const (
	MinElements = 1
	MaxElements = 50
	MinValue    = 1
	MaxValue    = 100
)

// ParseInput validates a comma separated list and formats it as the body of
// an array literal. Either every element is a number in [MinValue, MaxValue],
// or every element is taken as a non-empty string and quoted.
func ParseInput(input string) (string, error) {
	raw := strings.Split(input, ",")
	if strings.TrimSpace(input) == "" {
		raw = nil
	}
	if len(raw) < MinElements || len(raw) > MaxElements {
		return "", fmt.Errorf("%w: expected %d to %d elements, got %d", domain.ErrInvalidInput, MinElements, MaxElements, len(raw))
	}

	items := make([]string, len(raw))
	numeric := true
	for i, r := range raw {
		items[i] = strings.TrimSpace(r)
		if items[i] == "" {
			return "", fmt.Errorf("%w: element %d is empty", domain.ErrInvalidInput, i+1)
		}
		if _, err := strconv.ParseFloat(items[i], 64); err != nil {
			numeric = false
		}
	}

	out := make([]string, len(items))
	for i, item := range items {
		if !numeric {
			quoted, _ := json.Marshal(item)
			out[i] = string(quoted)
			continue
		}
		v, _ := strconv.ParseFloat(item, 64)
		if !(v >= MinValue && v <= MaxValue) {
			return "", fmt.Errorf("%w: %s is outside %d..%d", domain.ErrInvalidInput, item, MinValue, MaxValue)
		}
		out[i] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	return strings.Join(out, ", "), nil
}
