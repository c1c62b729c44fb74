package har

import (
	"bytes"
	"encoding/json"
	"strings"

	"supportapp/internal/models"
)

// SensitiveTokens are matched case-insensitively as substrings of header names
var SensitiveTokens = []string{"authorization", "cookie", "x-api-key", "bearer", "token", "set-cookie"}

// IsSensitiveHeader reports whether a header with this name may carry credentials
func IsSensitiveHeader(name string) bool {
	lower := strings.ToLower(name)
	for _, token := range SensitiveTokens {
		if strings.Contains(lower, token) {
			return true
		}
	}
	return false
}

// Sanitize drops credential headers from every entry and empties request cookie lists.
// All other fields, unknown ones included, pass through. Input that is not a HAR
// document is returned unchanged.
func Sanitize(raw []byte) []byte {
	out, _, ok := sanitize(raw)
	if !ok {
		return raw
	}
	return out
}

// SanitizeString is Sanitize for text input
func SanitizeString(raw string) string {
	return string(Sanitize([]byte(raw)))
}

// SanitizeReport sanitizes raw and reports how many headers and cookies were removed.
// ok is false when raw was returned unchanged because it could not be parsed.
func SanitizeReport(raw []byte) (out []byte, removed int, ok bool) {
	out, removed, ok = sanitize(raw)
	if !ok {
		return raw, 0, false
	}
	return out, removed, true
}

func sanitize(raw []byte) ([]byte, int, bool) {
	var doc map[string]interface{}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil || doc == nil {
		return nil, 0, false
	}
	log, ok := doc["log"].(map[string]interface{})
	if !ok {
		return nil, 0, false
	}
	entries, ok := log["entries"].([]interface{})
	if !ok {
		return nil, 0, false
	}

	removed := 0
	for _, e := range entries {
		entry, ok := e.(map[string]interface{})
		if !ok {
			continue
		}
		if req, ok := entry["request"].(map[string]interface{}); ok {
			removed += filterHeaders(req)
			if cookies, ok := req["cookies"].([]interface{}); ok {
				removed += len(cookies)
			}
			req["cookies"] = []interface{}{}
		}
		if resp, ok := entry["response"].(map[string]interface{}); ok {
			removed += filterHeaders(resp)
		}
	}

	out, err := json.Marshal(doc)
	if err != nil {
		return nil, 0, false
	}
	return out, removed, true
}

func filterHeaders(msg map[string]interface{}) int {
	headers, ok := msg["headers"].([]interface{})
	if !ok {
		return 0
	}
	kept := make([]interface{}, 0, len(headers))
	for _, h := range headers {
		if hdr, ok := h.(map[string]interface{}); ok {
			if name, _ := hdr["name"].(string); IsSensitiveHeader(name) {
				continue
			}
		}
		kept = append(kept, h)
	}
	msg["headers"] = kept
	return len(headers) - len(kept)
}

// SanitizeAttachment returns a copy of a network log attachment with its content sanitized.
// The data of a log that cannot be parsed is kept as is.
func SanitizeAttachment(a models.Attachment) models.Attachment {
	a.Data = Sanitize(a.Data)
	a.Size = int64(len(a.Data))
	return a
}
