// Package attachments validates and holds the files a reporter attaches to a ticket.
package attachments

import (
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"supportapp/internal/config"
	"supportapp/internal/models"
	contextutils "supportapp/internal/utils"
)

// Limits are the per-role ceilings. The same values are enforced on acquisition,
// before submission and again on the server.
type Limits struct {
	MaxScreenshots     int
	MaxScreenshotBytes int64
	MaxRecordingBytes  int64
	MaxNetworkLogBytes int64
}

// DefaultLimits returns 5 screenshots of 5 MB, one 25 MB recording and one 10 MB network log
func DefaultLimits() Limits {
	return Limits{
		MaxScreenshots:     config.DefaultMaxScreenshots,
		MaxScreenshotBytes: config.DefaultMaxScreenshotBytes,
		MaxRecordingBytes:  config.DefaultMaxRecordingBytes,
		MaxNetworkLogBytes: config.DefaultMaxNetworkLogBytes,
	}
}

// LimitsFromConfig converts the limits section of the configuration
func LimitsFromConfig(cfg config.LimitsConfig) Limits {
	l := DefaultLimits()
	if cfg.MaxScreenshots > 0 {
		l.MaxScreenshots = cfg.MaxScreenshots
	}
	if cfg.MaxScreenshotBytes > 0 {
		l.MaxScreenshotBytes = cfg.MaxScreenshotBytes
	}
	if cfg.MaxRecordingBytes > 0 {
		l.MaxRecordingBytes = cfg.MaxRecordingBytes
	}
	if cfg.MaxNetworkLogBytes > 0 {
		l.MaxNetworkLogBytes = cfg.MaxNetworkLogBytes
	}
	return l
}

// CheckScreenshot validates one screenshot
func (l Limits) CheckScreenshot(a models.Attachment) error {
	if !strings.HasPrefix(MediaType(a), "image/") {
		return typeError(a, "Screenshots must be images")
	}
	return sizeCheck(a, l.MaxScreenshotBytes, "Screenshot")
}

// CheckRecording validates a screen recording
func (l Limits) CheckRecording(a models.Attachment) error {
	if !strings.HasPrefix(MediaType(a), "video/") {
		return typeError(a, "Screen recordings must be videos")
	}
	return sizeCheck(a, l.MaxRecordingBytes, "Screen recording")
}

// CheckNetworkLog validates a network log export. Any media type is accepted.
func (l Limits) CheckNetworkLog(a models.Attachment) error {
	return sizeCheck(a, l.MaxNetworkLogBytes, "Network log")
}

// CheckAll validates a complete attachment set
func (l Limits) CheckAll(screenshots []models.Attachment, recording, networkLog *models.Attachment) error {
	if len(screenshots) > l.MaxScreenshots {
		return contextutils.NewAppError(
			contextutils.ErrorCodeTooManyAttachments,
			contextutils.SeverityWarn,
			fmt.Sprintf("At most %d screenshots can be attached", l.MaxScreenshots),
			fmt.Sprintf("got %d", len(screenshots)),
		)
	}
	for _, s := range screenshots {
		if err := l.CheckScreenshot(s); err != nil {
			return err
		}
	}
	if recording != nil {
		if err := l.CheckRecording(*recording); err != nil {
			return err
		}
	}
	if networkLog != nil {
		if err := l.CheckNetworkLog(*networkLog); err != nil {
			return err
		}
	}
	return nil
}

func sizeCheck(a models.Attachment, limit int64, label string) error {
	if a.Len() > limit {
		return contextutils.NewAppError(
			contextutils.ErrorCodeAttachmentTooLarge,
			contextutils.SeverityWarn,
			fmt.Sprintf("%s %q is larger than %s", label, a.Name, FormatBytes(limit)),
			fmt.Sprintf("%d bytes > %d bytes", a.Len(), limit),
		)
	}
	return nil
}

func typeError(a models.Attachment, msg string) error {
	return contextutils.NewAppError(
		contextutils.ErrorCodeAttachmentInvalidType,
		contextutils.SeverityWarn,
		msg,
		fmt.Sprintf("%q has type %q", a.Name, MediaType(a)),
	)
}

// MediaType returns the declared type, or one derived from the name and content
func MediaType(a models.Attachment) string {
	if a.MediaType != "" {
		return strings.ToLower(a.MediaType)
	}
	ext := strings.ToLower(filepath.Ext(a.Name))
	if ext == ".har" {
		return "application/json"
	}
	if t := mime.TypeByExtension(ext); t != "" {
		if mt, _, err := mime.ParseMediaType(t); err == nil {
			return mt
		}
	}
	if len(a.Data) > 0 {
		if mt, _, err := mime.ParseMediaType(http.DetectContentType(a.Data)); err == nil {
			return mt
		}
	}
	return "application/octet-stream"
}

// FormatBytes renders a byte count the way limits are quoted to users
func FormatBytes(n int64) string {
	const mb = 1 << 20
	if n >= mb && n%mb == 0 {
		return fmt.Sprintf("%d MB", n/mb)
	}
	if n >= mb {
		return fmt.Sprintf("%.1f MB", float64(n)/mb)
	}
	if n >= 1<<10 {
		return fmt.Sprintf("%d KB", n/(1<<10))
	}
	return fmt.Sprintf("%d bytes", n)
}
