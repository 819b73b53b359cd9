package odata

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

var errInvalidDuration = errors.New("invalid duration")

func unexpected(v any) error {
	return fmt.Errorf("unexpected %T", v)
}

// convertPrimitive maps a JSON value onto the Go type used for edmType:
// integers become int64, floating point float64, dates time.Time, Edm.Time
// time.Duration, Edm.Guid uuid.UUID and Edm.Binary []byte. Edm.Decimal stays a
// string so no precision is lost. Unknown primitives are returned unchanged.
func convertPrimitive(edmType string, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch edmType {
	case "Edm.String":
		return v, nil
	case "Edm.Boolean":
		switch t := v.(type) {
		case bool:
			return t, nil
		case string:
			return strconv.ParseBool(t)
		}
		return nil, unexpected(v)
	case "Edm.Byte", "Edm.SByte", "Edm.Int16", "Edm.Int32", "Edm.Int64":
		return parseInt(v)
	case "Edm.Double", "Edm.Single":
		return parseFloat(v)
	case "Edm.Decimal":
		switch t := v.(type) {
		case json.Number:
			return string(t), nil
		case string:
			if _, err := strconv.ParseFloat(t, 64); err != nil {
				return nil, err
			}
			return t, nil
		case float64:
			return strconv.FormatFloat(t, 'f', -1, 64), nil
		}
		return nil, unexpected(v)
	case "Edm.DateTime", "Edm.DateTimeOffset":
		s, ok := v.(string)
		if !ok {
			return nil, unexpected(v)
		}
		return parseDateTime(s)
	case "Edm.Time", "Edm.Duration":
		s, ok := v.(string)
		if !ok {
			return nil, unexpected(v)
		}
		return parseDuration(s)
	case "Edm.Guid":
		s, ok := v.(string)
		if !ok {
			return nil, unexpected(v)
		}
		return uuid.Parse(s)
	case "Edm.Binary":
		s, ok := v.(string)
		if !ok {
			return nil, unexpected(v)
		}
		return base64.StdEncoding.DecodeString(s)
	}
	return v, nil
}

func parseInt(v any) (int64, error) {
	switch t := v.(type) {
	case json.Number:
		return strconv.ParseInt(string(t), 10, 64)
	case string:
		return strconv.ParseInt(t, 10, 64)
	case float64:
		if t != math.Trunc(t) {
			return 0, fmt.Errorf("%v is not an integer", t)
		}
		return int64(t), nil
	}
	return 0, unexpected(v)
}

func parseFloat(v any) (float64, error) {
	var s string
	switch t := v.(type) {
	case float64:
		return t, nil
	case json.Number:
		s = string(t)
	case string:
		s = t
	default:
		return 0, unexpected(v)
	}
	switch s {
	case "INF":
		return math.Inf(1), nil
	case "-INF":
		return math.Inf(-1), nil
	case "NaN":
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}

var dateTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.9999999",
	"2006-01-02T15:04",
}

// parseDateTime reads both the verbose "/Date(ms)/" and "/Date(ms+mins)/"
// forms and ISO 8601 text. Values without an offset are UTC.
func parseDateTime(s string) (time.Time, error) {
	if rest, ok := strings.CutPrefix(s, "/Date("); ok {
		rest, ok = strings.CutSuffix(rest, ")/")
		if !ok {
			return time.Time{}, fmt.Errorf("malformed date %q", s)
		}
		offset := 0
		if i := strings.LastIndexAny(rest, "+-"); i > 0 {
			mins, err := strconv.Atoi(rest[i+1:])
			if err != nil {
				return time.Time{}, err
			}
			offset = mins
			if rest[i] == '-' {
				offset = -mins
			}
			rest = rest[:i]
		}
		ms, err := strconv.ParseInt(rest, 10, 64)
		if err != nil {
			return time.Time{}, err
		}
		t := time.UnixMilli(ms).UTC()
		if offset != 0 {
			t = t.In(time.FixedZone("", offset*60))
		}
		return t, nil
	}
	for _, layout := range dateTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("malformed date %q", s)
}

// parseDuration reads the day/time subset of ISO 8601 durations that Edm.Time
// uses, e.g. "PT13H20M" or "P1DT0.5S". A leading '-' negates the value.
func parseDuration(s string) (time.Duration, error) {
	input := s
	negative := false
	if rest, ok := strings.CutPrefix(input, "-"); ok {
		negative = true
		input = rest
	}
	input, ok := strings.CutPrefix(input, "P")
	if !ok || input == "" {
		return 0, fmt.Errorf("%w %q", errInvalidDuration, s)
	}
	datePart, timePart, hasTime := strings.Cut(input, "T")
	if hasTime && timePart == "" {
		return 0, fmt.Errorf("%w %q", errInvalidDuration, s)
	}
	var d time.Duration
	days, rest, err := durationComponent(datePart, 'D')
	if err != nil || rest != "" {
		return 0, fmt.Errorf("%w %q", errInvalidDuration, s)
	}
	d += time.Duration(days * float64(24*time.Hour))
	for _, unit := range []struct {
		designator byte
		scale      time.Duration
	}{{'H', time.Hour}, {'M', time.Minute}, {'S', time.Second}} {
		var n float64
		n, timePart, err = durationComponent(timePart, unit.designator)
		if err != nil {
			return 0, fmt.Errorf("%w %q", errInvalidDuration, s)
		}
		d += time.Duration(n * float64(unit.scale))
	}
	if timePart != "" {
		return 0, fmt.Errorf("%w %q", errInvalidDuration, s)
	}
	if negative {
		d = -d
	}
	return d, nil
}

// durationComponent consumes "<number><designator>" from the front of input.
// A missing component is zero.
func durationComponent(input string, designator byte) (float64, string, error) {
	index := strings.IndexByte(input, designator)
	if index == -1 {
		return 0, input, nil
	}
	n, err := strconv.ParseFloat(input[:index], 64)
	if err != nil {
		return 0, "", err
	}
	return n, input[index+1:], nil
}
