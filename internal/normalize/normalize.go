// Package normalize reduces the request shapes delivered by different invocation
// environments to one canonical ticket submission.
package normalize

import (
	"encoding/base64"
	"encoding/json"
	"maps"
	"strings"

	"supportapp/internal/models"
)

// Source names where a request body was found
type Source string

// Body sources in the order they are tried
const (
	SourceBodyRaw        Source = "bodyRaw"
	SourceBodyJSON       Source = "bodyJson"
	SourceBody           Source = "body"
	SourceNestedBodyJSON Source = "req.bodyJson"
	SourceTopLevel       Source = "top-level"
	SourceNone           Source = "none"
)

// RecognizedKeys are the fields that make a decoded body structurally valid.
// words, prompt and messages belong to the proxies sharing the same entry point.
var RecognizedKeys = []string{"payload", "screenshots", "screenRecording", "harFile", "words", "prompt", "messages"}

// Normalize turns raw into a NormalizedRequest. It never fails; when nothing usable
// is found the payload is empty and validation downstream rejects it.
func Normalize(raw map[string]interface{}, method string) models.NormalizedRequest {
	body, _ := Decode(raw)
	return Canonical(body, method)
}

// Decode finds the request body in raw and back-fills recognized fields that are
// only present at the top level. It returns the source that supplied the body.
func Decode(raw map[string]interface{}) (map[string]interface{}, Source) {
	if raw == nil {
		return map[string]interface{}{}, SourceNone
	}

	candidates := []struct {
		source Source
		value  func() (interface{}, bool)
	}{
		{SourceBodyRaw, func() (interface{}, bool) { v, ok := raw["bodyRaw"]; return v, ok }},
		{SourceBodyJSON, func() (interface{}, bool) { v, ok := raw["bodyJson"]; return v, ok }},
		{SourceBody, func() (interface{}, bool) { v, ok := raw["body"]; return v, ok }},
		{SourceNestedBodyJSON, func() (interface{}, bool) {
			req, ok := raw["req"].(map[string]interface{})
			if !ok {
				return nil, false
			}
			v, ok := req["bodyJson"]
			return v, ok
		}},
	}

	for _, c := range candidates {
		v, ok := c.value()
		if !ok {
			continue
		}
		if body, ok := decodeValue(v, c.source == SourceBodyRaw); ok {
			// A decoded source may be the caller's own map
			body = maps.Clone(body)
			backfill(body, raw)
			return body, c.source
		}
	}

	top := pickRecognized(raw)
	if valid(top) {
		return top, SourceTopLevel
	}
	return map[string]interface{}{}, SourceNone
}

// decodeValue parses a string or already decoded body, unwrapping one level of {body: ...}
func decodeValue(v interface{}, allowBase64 bool) (map[string]interface{}, bool) {
	m, ok := toMap(v, allowBase64)
	if !ok {
		return nil, false
	}
	if valid(m) {
		return m, true
	}
	if inner, present := m["body"]; present {
		if unwrapped, ok := toMap(inner, false); ok && valid(unwrapped) {
			return unwrapped, true
		}
	}
	return nil, false
}

func toMap(v interface{}, allowBase64 bool) (map[string]interface{}, bool) {
	switch t := v.(type) {
	case map[string]interface{}:
		return t, true
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return nil, false
		}
		if m, ok := parseObject([]byte(s)); ok {
			return m, true
		}
		if allowBase64 {
			if decoded, err := base64.StdEncoding.DecodeString(s); err == nil {
				return parseObject(decoded)
			}
		}
		// A JSON string holding a JSON object
		var inner string
		if err := json.Unmarshal([]byte(s), &inner); err == nil {
			return parseObject([]byte(inner))
		}
		return nil, false
	case []byte:
		return toMap(string(t), allowBase64)
	default:
		return nil, false
	}
}

func parseObject(data []byte) (map[string]interface{}, bool) {
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil || m == nil {
		return nil, false
	}
	return m, true
}

func valid(m map[string]interface{}) bool {
	for _, k := range RecognizedKeys {
		if _, ok := m[k]; ok {
			return true
		}
	}
	return false
}

func pickRecognized(raw map[string]interface{}) map[string]interface{} {
	out := map[string]interface{}{}
	for _, k := range RecognizedKeys {
		if v, ok := raw[k]; ok {
			out[k] = v
		}
	}
	return out
}

// backfill copies recognized fields missing from body out of raw, never overwriting
func backfill(body, raw map[string]interface{}) {
	for _, k := range RecognizedKeys {
		if isEmpty(body[k]) {
			if v, ok := raw[k]; ok && !isEmpty(v) {
				body[k] = v
			}
		}
	}
}

func isEmpty(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case []interface{}:
		return len(t) == 0
	case map[string]interface{}:
		return len(t) == 0
	default:
		return false
	}
}

// Canonical shapes a decoded body into a NormalizedRequest
func Canonical(body map[string]interface{}, method string) models.NormalizedRequest {
	out := models.NormalizedRequest{
		Method:      strings.ToUpper(method),
		Payload:     map[string]interface{}{},
		Screenshots: []interface{}{},
	}
	if p, ok := toMap(body["payload"], false); ok {
		out.Payload = p
	}
	if shots, ok := body["screenshots"].([]interface{}); ok {
		out.Screenshots = shots
	}
	out.ScreenRecording = nonNullObject(body["screenRecording"])
	out.HarFile = nonNullObject(body["harFile"])
	return out
}

func nonNullObject(v interface{}) interface{} {
	if m, ok := v.(map[string]interface{}); ok && len(m) > 0 {
		return m
	}
	return nil
}
