package validation

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"riskCore/internal/domain"
	"riskCore/internal/ports"
)

// Verdict is one backend's parsed answer.
type Verdict struct {
	Confidence float64
	Approved   bool
	SetupType  domain.SetupType
	Reasoning  string
}

var (
	confidenceKeys = []string{"confidence_score", "confidence", "score"}
	approvedKeys   = []string{"approved", "approve", "decision"}
	setupKeys      = []string{"setup_type", "setup"}
	reasoningKeys  = []string{"reasoning", "reason", "analysis", "explanation"}
)

// ParseVerdict coerces a backend completion into a Verdict. The JSON object
// may be wrapped in code fences or prose. A missing approved flag is derived
// from confidence >= threshold; an unknown setup becomes no_setup.
func ParseVerdict(raw string, threshold float64) (Verdict, error) {
	fields, err := extractObject(raw)
	if err != nil {
		return Verdict{}, err
	}
	lowered := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		lowered[strings.ToLower(strings.TrimSpace(k))] = v
	}

	rawConf, ok := lookup(lowered, confidenceKeys)
	if !ok {
		return Verdict{}, fmt.Errorf("%w: no confidence field", ports.ErrMalformedResponse)
	}
	conf, err := toConfidence(rawConf)
	if err != nil {
		return Verdict{}, err
	}

	v := Verdict{
		Confidence: conf,
		Approved:   conf >= threshold,
		SetupType:  domain.SetupNone,
	}
	if rawApproved, ok := lookup(lowered, approvedKeys); ok {
		if approved, ok := toBool(rawApproved); ok {
			v.Approved = approved
		}
	}
	if rawSetup, ok := lookup(lowered, setupKeys); ok {
		v.SetupType = normalizeSetup(fmt.Sprint(rawSetup))
	}
	if rawReason, ok := lookup(lowered, reasoningKeys); ok {
		v.Reasoning = strings.TrimSpace(fmt.Sprint(rawReason))
	}
	return v, nil
}

// extractObject prefers the body of a fenced block anywhere in the reply,
// then the first '{' from which a complete JSON object decodes.
func extractObject(raw string) (map[string]interface{}, error) {
	if body, ok := fencedBlock(raw); ok {
		if fields, err := decodeObjectAt(body); err == nil {
			return fields, nil
		}
	}

	var lastErr error
	for off := 0; off < len(raw); {
		i := strings.IndexByte(raw[off:], '{')
		if i < 0 {
			break
		}
		fields, err := decodeObjectAt(raw[off+i:])
		if err == nil {
			return fields, nil
		}
		lastErr = err
		off += i + 1
	}
	if lastErr != nil {
		return nil, fmt.Errorf("%w: %v", ports.ErrMalformedResponse, lastErr)
	}
	return nil, fmt.Errorf("%w: no JSON object in response", ports.ErrMalformedResponse)
}

// fencedBlock returns the contents of the first ``` fence, minus its language tag.
func fencedBlock(raw string) (string, bool) {
	start := strings.Index(raw, "```")
	if start < 0 {
		return "", false
	}
	rest := raw[start+3:]
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 && !strings.Contains(rest[:nl], "{") {
		rest = rest[nl+1:]
	}
	end := strings.Index(rest, "```")
	if end < 0 {
		return "", false
	}
	return strings.TrimSpace(rest[:end]), true
}

func decodeObjectAt(s string) (map[string]interface{}, error) {
	var fields map[string]interface{}
	if err := json.NewDecoder(strings.NewReader(s)).Decode(&fields); err != nil {
		return nil, err
	}
	if fields == nil {
		return nil, fmt.Errorf("not an object")
	}
	return fields, nil
}

func lookup(fields map[string]interface{}, keys []string) (interface{}, bool) {
	for _, k := range keys {
		if v, ok := fields[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func toConfidence(raw interface{}) (float64, error) {
	var f float64
	switch v := raw.(type) {
	case float64:
		f = v
	case string:
		s := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(v), "%"))
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: confidence %q is not a number", ports.ErrMalformedResponse, v)
		}
		f = parsed
	default:
		return 0, fmt.Errorf("%w: confidence has type %T", ports.ErrMalformedResponse, raw)
	}
	if math.IsNaN(f) {
		return 0, fmt.Errorf("%w: confidence is NaN", ports.ErrMalformedResponse)
	}
	return math.Max(0, math.Min(100, f)), nil
}

func toBool(raw interface{}) (bool, bool) {
	switch v := raw.(type) {
	case bool:
		return v, true
	case float64:
		return v != 0, true
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "yes", "approve", "approved":
			return true, true
		case "false", "no", "reject", "rejected":
			return false, true
		}
	}
	return false, false
}

func normalizeSetup(raw string) domain.SetupType {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.NewReplacer("-", "_", " ", "_").Replace(s)
	if s == "none" || s == "no_trade" {
		return domain.SetupNone
	}
	st := domain.SetupType(s)
	if st.IsKnown() {
		return st
	}
	return domain.SetupNone
}
