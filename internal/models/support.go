// Package models defines data structures shared by the support ticket client and server.
package models

import (
	"fmt"
	"strings"
	"time"
)

// DeviceClass is the coarse device family the report was filed from
type DeviceClass string

// Device classes
const (
	DeviceDesktop DeviceClass = "desktop"
	DeviceMobile  DeviceClass = "mobile"
	DeviceTablet  DeviceClass = "tablet"
)

// ConnectionInfo is the optional network hint reported by the client
type ConnectionInfo struct {
	EffectiveType string  `json:"effectiveType,omitempty" yaml:"effective_type,omitempty"`
	DownlinkMbps  float64 `json:"downlink,omitempty" yaml:"downlink,omitempty"`
	RTTMillis     int     `json:"rtt,omitempty" yaml:"rtt,omitempty"`
}

// DiagnosticSnapshot captures the environment a report was filed from. It is not modified after capture.
type DiagnosticSnapshot struct {
	Browser        string          `json:"browser,omitempty" yaml:"browser,omitempty"`
	BrowserVersion string          `json:"browserVersion,omitempty" yaml:"browser_version,omitempty"`
	OS             string          `json:"os,omitempty" yaml:"os,omitempty"`
	Device         DeviceClass     `json:"device" yaml:"device"`
	ScreenWidth    int             `json:"screenWidth,omitempty" yaml:"screen_width,omitempty"`
	ScreenHeight   int             `json:"screenHeight,omitempty" yaml:"screen_height,omitempty"`
	ViewportWidth  int             `json:"viewportWidth,omitempty" yaml:"viewport_width,omitempty"`
	ViewportHeight int             `json:"viewportHeight,omitempty" yaml:"viewport_height,omitempty"`
	PixelRatio     float64         `json:"pixelRatio,omitempty" yaml:"pixel_ratio,omitempty"`
	Language       string          `json:"language,omitempty" yaml:"language,omitempty"`
	Timezone       string          `json:"timezone,omitempty" yaml:"timezone,omitempty"`
	UserAgent      string          `json:"userAgent,omitempty" yaml:"user_agent,omitempty"`
	PageURL        string          `json:"pageUrl,omitempty" yaml:"page_url,omitempty"`
	Connection     *ConnectionInfo `json:"connection,omitempty" yaml:"connection,omitempty"`
	CapturedAt     time.Time       `json:"capturedAt" yaml:"captured_at"`
}

// Lines renders the snapshot as "Label: value" lines, skipping absent facts
func (s DiagnosticSnapshot) Lines() []string {
	var lines []string
	add := func(label, value string) {
		if value != "" {
			lines = append(lines, label+": "+value)
		}
	}
	add("Browser", strings.TrimSpace(s.Browser+" "+s.BrowserVersion))
	add("OS", s.OS)
	add("Device", string(s.Device))
	if s.ScreenWidth > 0 && s.ScreenHeight > 0 {
		add("Screen", fmt.Sprintf("%dx%d", s.ScreenWidth, s.ScreenHeight))
	}
	if s.ViewportWidth > 0 && s.ViewportHeight > 0 {
		add("Viewport", fmt.Sprintf("%dx%d", s.ViewportWidth, s.ViewportHeight))
	}
	if s.PixelRatio > 0 {
		add("Pixel ratio", fmt.Sprintf("%g", s.PixelRatio))
	}
	add("Language", s.Language)
	add("Timezone", s.Timezone)
	add("Page", s.PageURL)
	if c := s.Connection; c != nil {
		parts := []string{}
		if c.EffectiveType != "" {
			parts = append(parts, c.EffectiveType)
		}
		if c.DownlinkMbps > 0 {
			parts = append(parts, fmt.Sprintf("%g Mbps", c.DownlinkMbps))
		}
		if c.RTTMillis > 0 {
			parts = append(parts, fmt.Sprintf("%d ms rtt", c.RTTMillis))
		}
		add("Connection", strings.Join(parts, ", "))
	}
	add("User agent", s.UserAgent)
	if !s.CapturedAt.IsZero() {
		add("Captured at", s.CapturedAt.UTC().Format(time.RFC3339))
	}
	return lines
}

// ErrorKind distinguishes runtime errors from unhandled rejections
type ErrorKind string

// Error kinds
const (
	ErrorKindRuntime            ErrorKind = "runtime-error"
	ErrorKindUnhandledRejection ErrorKind = "unhandled-rejection"
)

// CapturedErrorEvent is one runtime failure observed during the session
type CapturedErrorEvent struct {
	Kind       ErrorKind `json:"kind" yaml:"kind"`
	Message    string    `json:"message" yaml:"message"`
	Stack      string    `json:"stack,omitempty" yaml:"stack,omitempty"`
	Source     string    `json:"source,omitempty" yaml:"source,omitempty"`
	Line       int       `json:"line,omitempty" yaml:"line,omitempty"`
	Column     int       `json:"column,omitempty" yaml:"column,omitempty"`
	CapturedAt time.Time `json:"timestamp" yaml:"timestamp"`
}

// AttachmentRole names which slot an attachment occupies
type AttachmentRole string

// Attachment roles
const (
	RoleScreenshot AttachmentRole = "screenshot"
	RoleRecording  AttachmentRole = "screenRecording"
	RoleNetworkLog AttachmentRole = "harFile"
)

// Attachment is an in-memory blob. On the wire Data is base64 encoded.
type Attachment struct {
	Name      string `json:"name"`
	MediaType string `json:"type"`
	Data      []byte `json:"data"`
	Size      int64  `json:"size,omitempty"`
}

// Len returns the payload length in bytes
func (a Attachment) Len() int64 {
	return int64(len(a.Data))
}

// IssueCategory is one of the fixed report categories
type IssueCategory string

// Issue categories
const (
	CategoryBug     IssueCategory = "Bug / Error on page"
	CategoryContent IssueCategory = "Content problem"
	CategoryAccount IssueCategory = "Account or login"
	CategoryPayment IssueCategory = "Payment or billing"
	CategoryOther   IssueCategory = "Other"
)

// IssueCategories lists the categories in display order
var IssueCategories = []IssueCategory{
	CategoryBug,
	CategoryContent,
	CategoryAccount,
	CategoryPayment,
	CategoryOther,
}

// Valid reports whether c is one of IssueCategories
func (c IssueCategory) Valid() bool {
	for _, known := range IssueCategories {
		if c == known {
			return true
		}
	}
	return false
}

// SupportTicketPayload is everything the reporter provided, plus what was captured for them
type SupportTicketPayload struct {
	IssueType            IssueCategory        `json:"issueType"`
	PageURL              string               `json:"pageUrl"`
	WhatTryingToDo       string               `json:"whatTryingToDo"`
	WhatActuallyHappened string               `json:"whatActuallyHappened"`
	ErrorMessage         string               `json:"errorMessage,omitempty"`
	UserEmail            string               `json:"userEmail,omitempty"`
	Transcript           string               `json:"transcript,omitempty"`
	Environment          *DiagnosticSnapshot  `json:"environment,omitempty"`
	CapturedErrors       []CapturedErrorEvent `json:"capturedErrors,omitempty"`
	CapturedErrorsText   string               `json:"capturedErrorsText,omitempty"`
	ConsentGiven         bool                 `json:"consentGiven"`
	SubmittedAt          time.Time            `json:"submittedAt"`
}

// TicketSubmission is the request body sent to the ticket submission endpoint
type TicketSubmission struct {
	Payload         SupportTicketPayload `json:"payload"`
	Screenshots     []Attachment         `json:"screenshots"`
	ScreenRecording *Attachment          `json:"screenRecording"`
	HarFile         *Attachment          `json:"harFile"`
}

// NormalizedRequest is the canonical server side view of a submission.
// Attachment fields keep their wire form until the ticket service decodes them.
type NormalizedRequest struct {
	Method          string                 `json:"method"`
	Payload         map[string]interface{} `json:"payload"`
	Screenshots     []interface{}          `json:"screenshots"`
	ScreenRecording interface{}            `json:"screenRecording"`
	HarFile         interface{}            `json:"harFile"`
}

// CreatedTicket is the issue the tracker assigned to a submission
type CreatedTicket struct {
	Key       string `json:"key"`
	BrowseURL string `json:"browseUrl"`
}

// SubmissionResponse is returned by the ticket submission endpoint
type SubmissionResponse struct {
	Success  bool   `json:"success"`
	IssueKey string `json:"issueKey,omitempty"`
	Error    string `json:"error,omitempty"`
}

// TicketNotification is handed to the notifier once a ticket exists
type TicketNotification struct {
	TicketID    string
	BrowseURL   string
	Summary     string
	Description string
	UserEmail   string
	Environment *DiagnosticSnapshot
	Errors      []CapturedErrorEvent
}
