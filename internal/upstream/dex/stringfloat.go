package dex

import (
	"encoding/json"
	"strconv"
)

// stringOrFloat accepts the DEX indexer's priceUsd field, which the real
// API renders as a JSON string ("1.234") rather than a number.
type stringOrFloat float64

func (f *stringOrFloat) UnmarshalJSON(b []byte) error {
	var asFloat float64
	if err := json.Unmarshal(b, &asFloat); err == nil {
		*f = stringOrFloat(asFloat)
		return nil
	}

	var asString string
	if err := json.Unmarshal(b, &asString); err != nil {
		return err
	}
	if asString == "" {
		*f = 0
		return nil
	}
	parsed, err := strconv.ParseFloat(asString, 64)
	if err != nil {
		return err
	}
	*f = stringOrFloat(parsed)
	return nil
}
