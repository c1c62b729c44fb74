package har

import (
	"encoding/json"
	"net/url"
	"sort"
)

// Summary describes a network log without exposing its content
type Summary struct {
	Creator          string         `json:"creator,omitempty"`
	Entries          int            `json:"entries"`
	Hosts            []string       `json:"hosts"`
	Methods          map[string]int `json:"methods"`
	FailedResponses  int            `json:"failedResponses"`
	SensitiveHeaders int            `json:"sensitiveHeaders"`
	RequestCookies   int            `json:"requestCookies"`
}

// Parse decodes a HAR document into typed form
func Parse(raw []byte) (*Log, error) {
	var l Log
	if err := json.Unmarshal(raw, &l); err != nil {
		return nil, err
	}
	return &l, nil
}

// Summarize counts entries, hosts and anything Sanitize would remove
func Summarize(l *Log) Summary {
	s := Summary{
		Creator: l.Log.Creator.Name,
		Entries: len(l.Log.Entries),
		Hosts:   []string{},
		Methods: map[string]int{},
	}
	hosts := map[string]bool{}
	for _, e := range l.Log.Entries {
		s.Methods[e.Request.Method]++
		if u, err := url.Parse(e.Request.URL); err == nil && u.Host != "" {
			hosts[u.Host] = true
		}
		if e.Response.Status >= 400 || e.Response.Status == 0 {
			s.FailedResponses++
		}
		for _, h := range e.Request.Headers {
			if IsSensitiveHeader(h.Name) {
				s.SensitiveHeaders++
			}
		}
		for _, h := range e.Response.Headers {
			if IsSensitiveHeader(h.Name) {
				s.SensitiveHeaders++
			}
		}
		s.RequestCookies += len(e.Request.Cookies)
	}
	for h := range hosts {
		s.Hosts = append(s.Hosts, h)
	}
	sort.Strings(s.Hosts)
	return s
}
