// Package diagnostics captures the environment and runtime errors that are attached to a support ticket.
package diagnostics

import (
	"regexp"
	"strings"
	"time"

	"supportapp/internal/models"
)

// TabletMinWidth is the viewport width from which a mobile-platform device counts as a tablet
const TabletMinWidth = 768

var mobilePattern = regexp.MustCompile(`(?i)android|webos|iphone|ipad|ipod|blackberry|iemobile|opera mini|mobile`)

// Environment exposes the facts a snapshot is built from. Zero values mean "unknown".
type Environment interface {
	UserAgent() string
	Platform() string
	ScreenSize() (width, height int)
	ViewportSize() (width, height int)
	PixelRatio() float64
	PageURL() string
	Connection() *models.ConnectionInfo
	Language() string
	Timezone() string
	Now() time.Time
}

// Capture reads env once and returns an immutable snapshot
func Capture(env Environment) models.DiagnosticSnapshot {
	ua := env.UserAgent()
	browser, version := ParseBrowser(ua)
	screenW, screenH := env.ScreenSize()
	viewW, viewH := env.ViewportSize()

	platform := env.Platform()
	if platform == "" {
		platform = ua
	}

	osName := ParseOS(ua)
	if osName == "" {
		osName = ParseOS(env.Platform())
	}

	snap := models.DiagnosticSnapshot{
		Browser:        browser,
		BrowserVersion: version,
		OS:             osName,
		Device:         ClassifyDevice(platform, viewW),
		ScreenWidth:    screenW,
		ScreenHeight:   screenH,
		ViewportWidth:  viewW,
		ViewportHeight: viewH,
		PixelRatio:     env.PixelRatio(),
		Language:       env.Language(),
		Timezone:       env.Timezone(),
		UserAgent:      ua,
		PageURL:        env.PageURL(),
		CapturedAt:     env.Now(),
	}
	if c := env.Connection(); c != nil {
		cp := *c
		snap.Connection = &cp
	}
	return snap
}

// ClassifyDevice maps a platform string and viewport width to a device class.
// An unknown width (0) never makes a desktop platform look mobile.
func ClassifyDevice(platform string, viewportWidth int) models.DeviceClass {
	mobile := mobilePattern.MatchString(platform)
	switch {
	case mobile && viewportWidth >= TabletMinWidth:
		return models.DeviceTablet
	case mobile || (viewportWidth > 0 && viewportWidth < TabletMinWidth):
		return models.DeviceMobile
	default:
		return models.DeviceDesktop
	}
}

var browserPatterns = []struct {
	name string
	re   *regexp.Regexp
}{
	// Order matters: Edge and Opera also carry "Chrome", Chrome carries "Safari".
	{"Edge", regexp.MustCompile(`Edg(?:e|A|iOS)?/([\d.]+)`)},
	{"Opera", regexp.MustCompile(`(?:OPR|Opera)/([\d.]+)`)},
	{"Firefox", regexp.MustCompile(`(?:Firefox|FxiOS)/([\d.]+)`)},
	{"Chrome", regexp.MustCompile(`(?:Chrome|CriOS)/([\d.]+)`)},
	{"Safari", regexp.MustCompile(`Version/([\d.]+).*Safari/`)},
}

// ParseBrowser extracts the browser family and version from a user agent
func ParseBrowser(ua string) (name, version string) {
	for _, p := range browserPatterns {
		if m := p.re.FindStringSubmatch(ua); m != nil {
			return p.name, m[1]
		}
	}
	return "", ""
}

// ParseOS extracts the operating system from a user agent or platform string
func ParseOS(s string) string {
	lower := strings.ToLower(s)
	switch {
	case lower == "":
		return ""
	case strings.Contains(lower, "windows"):
		return "Windows"
	case strings.Contains(lower, "iphone"), strings.Contains(lower, "ipad"), strings.Contains(lower, "ipod"), strings.Contains(lower, "ios"):
		return "iOS"
	case strings.Contains(lower, "mac os"), strings.Contains(lower, "macintosh"), strings.Contains(lower, "darwin"), strings.Contains(lower, "macos"):
		return "macOS"
	case strings.Contains(lower, "android"):
		return "Android"
	case strings.Contains(lower, "cros"):
		return "ChromeOS"
	case strings.Contains(lower, "linux"):
		return "Linux"
	default:
		return ""
	}
}

// StaticEnvironment is an Environment backed by fixed values
type StaticEnvironment struct {
	UA           string
	PlatformName string
	Screen       [2]int
	Viewport     [2]int
	Ratio        float64
	Page         string
	Conn         *models.ConnectionInfo
	Lang         string
	TZ           string
	Clock        func() time.Time
}

// UserAgent implements Environment
func (e StaticEnvironment) UserAgent() string { return e.UA }

// Platform implements Environment
func (e StaticEnvironment) Platform() string { return e.PlatformName }

// ScreenSize implements Environment
func (e StaticEnvironment) ScreenSize() (int, int) { return e.Screen[0], e.Screen[1] }

// ViewportSize implements Environment
func (e StaticEnvironment) ViewportSize() (int, int) { return e.Viewport[0], e.Viewport[1] }

// PixelRatio implements Environment
func (e StaticEnvironment) PixelRatio() float64 { return e.Ratio }

// PageURL implements Environment
func (e StaticEnvironment) PageURL() string { return e.Page }

// Connection implements Environment
func (e StaticEnvironment) Connection() *models.ConnectionInfo { return e.Conn }

// Language implements Environment
func (e StaticEnvironment) Language() string { return e.Lang }

// Timezone implements Environment
func (e StaticEnvironment) Timezone() string { return e.TZ }

// Now implements Environment
func (e StaticEnvironment) Now() time.Time {
	if e.Clock != nil {
		return e.Clock()
	}
	return time.Now()
}
