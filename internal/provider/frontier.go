package provider

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/Mars-Photo-Ingestion-Platform/pkg/errors"
)

// frontierNumber accepts a unit sent as a JSON number or a quoted string.
type frontierNumber struct {
	value int
	set   bool
}

func (f *frontierNumber) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if s == "null" || s == "" {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("unit %q is not an integer", s)
	}
	f.value, f.set = n, true
	return nil
}

// parseFrontier extracts the latest known unit from a frontier response.
// Providers disagree on the envelope, so several shapes are accepted:
//
//	{"latest_sol": 4102}
//	{"latest": {"sol": 4102}}
//	4102
func parseFrontier(body []byte) (int, error) {
	trimmed := bytes.TrimSpace(body)
	if n, err := strconv.Atoi(string(trimmed)); err == nil {
		if n < 0 {
			return 0, fmt.Errorf("%w: frontier unit %d is negative", apperrors.ErrParse, n)
		}
		return n, nil
	}

	var envelope struct {
		LatestSol frontierNumber `json:"latest_sol"`
		Latest    struct {
			Sol frontierNumber `json:"sol"`
		} `json:"latest"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return 0, fmt.Errorf("%w: frontier response: %v", apperrors.ErrParse, err)
	}

	var n int
	switch {
	case envelope.LatestSol.set:
		n = envelope.LatestSol.value
	case envelope.Latest.Sol.set:
		n = envelope.Latest.Sol.value
	default:
		return 0, fmt.Errorf("%w: frontier response has no latest unit field", apperrors.ErrParse)
	}
	if n < 0 {
		return 0, fmt.Errorf("%w: frontier unit %d is negative", apperrors.ErrParse, n)
	}
	return n, nil
}
