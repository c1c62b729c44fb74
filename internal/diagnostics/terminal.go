package diagnostics

import (
	"os"
	"runtime"
	"strings"
	"time"

	"supportapp/internal/models"

	"golang.org/x/term"
)

// TerminalEnvironment describes the terminal a report is filed from.
// The terminal size in cells is reported as the screen size. The viewport is
// unknown because cells are not pixels.
type TerminalEnvironment struct {
	fd   int
	page string
	ua   string
}

// NewTerminalEnvironment reads sizes from f (usually os.Stdout).
// page is the address the user reports the problem for.
func NewTerminalEnvironment(f *os.File, page, userAgent string) *TerminalEnvironment {
	return &TerminalEnvironment{fd: int(f.Fd()), page: page, ua: userAgent}
}

// UserAgent implements Environment
func (e *TerminalEnvironment) UserAgent() string { return e.ua }

// Platform implements Environment
func (e *TerminalEnvironment) Platform() string { return runtime.GOOS + "/" + runtime.GOARCH }

// ScreenSize implements Environment
func (e *TerminalEnvironment) ScreenSize() (int, int) { return e.size() }

// ViewportSize implements Environment
func (e *TerminalEnvironment) ViewportSize() (int, int) { return 0, 0 }

func (e *TerminalEnvironment) size() (int, int) {
	if !term.IsTerminal(e.fd) {
		return 0, 0
	}
	w, h, err := term.GetSize(e.fd)
	if err != nil {
		return 0, 0
	}
	return w, h
}

// PixelRatio implements Environment
func (e *TerminalEnvironment) PixelRatio() float64 { return 0 }

// PageURL implements Environment
func (e *TerminalEnvironment) PageURL() string { return e.page }

// Connection implements Environment
func (e *TerminalEnvironment) Connection() *models.ConnectionInfo { return nil }

// Language implements Environment
func (e *TerminalEnvironment) Language() string {
	lang := os.Getenv("LANG")
	if i := strings.IndexAny(lang, ".@"); i >= 0 {
		lang = lang[:i]
	}
	return strings.ReplaceAll(lang, "_", "-")
}

// Timezone implements Environment
func (e *TerminalEnvironment) Timezone() string { return time.Local.String() }

// Now implements Environment
func (e *TerminalEnvironment) Now() time.Time { return time.Now() }
