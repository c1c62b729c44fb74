package attachments

import (
	"fmt"
	"sync"

	"supportapp/internal/models"
	contextutils "supportapp/internal/utils"
)

// Set holds the attachments collected for one ticket. Rejected blobs never enter it.
type Set struct {
	mu          sync.Mutex
	limits      Limits
	screenshots []models.Attachment
	recording   *models.Attachment
	networkLog  *models.Attachment
}

// NewSet creates an empty set enforcing limits
func NewSet(limits Limits) *Set {
	return &Set{limits: limits}
}

// AddScreenshot validates and appends a screenshot
func (s *Set) AddScreenshot(a models.Attachment) error {
	a = withDerivedFields(a)
	if err := s.limits.CheckScreenshot(a); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.screenshots) >= s.limits.MaxScreenshots {
		return contextutils.NewAppError(
			contextutils.ErrorCodeTooManyAttachments,
			contextutils.SeverityWarn,
			fmt.Sprintf("At most %d screenshots can be attached", s.limits.MaxScreenshots),
			"",
		)
	}
	s.screenshots = append(s.screenshots, a)
	return nil
}

// RemoveScreenshot drops the screenshot at index i. Out of range indexes are ignored.
func (s *Set) RemoveScreenshot(i int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.screenshots) {
		return
	}
	s.screenshots = append(s.screenshots[:i], s.screenshots[i+1:]...)
}

// SetRecording validates and stores the screen recording, replacing any previous one
func (s *Set) SetRecording(a models.Attachment) error {
	a = withDerivedFields(a)
	if err := s.limits.CheckRecording(a); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recording = &a
	return nil
}

// ClearRecording drops the screen recording
func (s *Set) ClearRecording() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recording = nil
}

// SetNetworkLog validates and stores the network log export, replacing any previous one
func (s *Set) SetNetworkLog(a models.Attachment) error {
	a = withDerivedFields(a)
	if err := s.limits.CheckNetworkLog(a); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.networkLog = &a
	return nil
}

// ClearNetworkLog drops the network log export
func (s *Set) ClearNetworkLog() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.networkLog = nil
}

// Clear empties the set
func (s *Set) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.screenshots = nil
	s.recording = nil
	s.networkLog = nil
}

// Screenshots returns a copy of the screenshot list
func (s *Set) Screenshots() []models.Attachment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Attachment(nil), s.screenshots...)
}

// Recording returns the screen recording, or nil
func (s *Set) Recording() *models.Attachment {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.recording == nil {
		return nil
	}
	cp := *s.recording
	return &cp
}

// NetworkLog returns the network log export, or nil
func (s *Set) NetworkLog() *models.Attachment {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.networkLog == nil {
		return nil
	}
	cp := *s.networkLog
	return &cp
}

// Count returns the number of attachments in the set
func (s *Set) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.screenshots)
	if s.recording != nil {
		n++
	}
	if s.networkLog != nil {
		n++
	}
	return n
}

// Limits returns the limits the set enforces
func (s *Set) Limits() Limits {
	return s.limits
}

func withDerivedFields(a models.Attachment) models.Attachment {
	a.MediaType = MediaType(a)
	a.Size = a.Len()
	return a
}
