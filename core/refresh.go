package core

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"pkt.systems/pslog"
)

// PreviewTarget is the rendering surface the scheduler reloads. Concrete
// implementations live with the hosting environment.
type PreviewTarget interface {
	Reload(ctx context.Context, url string) error
}

// RefreshScheduler coalesces artifact change signals into preview reloads
// with a trailing debounce, so rapid edit bursts converge on one reload.
type RefreshScheduler struct {
	mu      sync.Mutex
	delay   time.Duration
	target  PreviewTarget
	logger  pslog.Logger
	timer   *time.Timer
	pending bool
	url     string
	token   atomic.Uint64
}

// NewRefreshScheduler constructs a scheduler reloading target after delay.
func NewRefreshScheduler(delay time.Duration, target PreviewTarget, logger pslog.Logger) *RefreshScheduler {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &RefreshScheduler{
		delay:  delay,
		target: target,
		logger: logger,
	}
}

// SetPreviewURL records the preview address to reload.
func (s *RefreshScheduler) SetPreviewURL(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.url = url
}

// NotifyChange records a change and arms (or re-arms) the trailing debounce
// timer.
func (s *RefreshScheduler) NotifyChange() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = true
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.delay, s.fire)
}

// RefreshNow bypasses the debounce: any armed timer is cancelled and the
// reload fires immediately.
func (s *RefreshScheduler) RefreshNow() {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.pending = true
	s.mu.Unlock()
	s.fire()
}

// PendingChanges reports whether changes await a reload.
func (s *RefreshScheduler) PendingChanges() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// Stop cancels any armed timer without reloading.
func (s *RefreshScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.pending = false
}

func (s *RefreshScheduler) fire() {
	s.mu.Lock()
	s.timer = nil
	s.pending = false
	target := s.target
	previewURL := s.url
	s.mu.Unlock()
	if target == nil || previewURL == "" {
		return
	}
	busted := cacheBust(previewURL, s.token.Add(1))
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := target.Reload(ctx, busted); err != nil {
		s.logger.Warn("preview reload failed", "url", previewURL, "err", err)
		return
	}
	s.logger.Debug("preview reloaded", "url", busted)
}

// cacheBust appends a fresh token so the preview surface cannot serve a
// stale cached document.
func cacheBust(raw string, token uint64) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		sep := "?"
		if strings.Contains(raw, "?") {
			sep = "&"
		}
		return fmt.Sprintf("%s%s_fv=%d", raw, sep, token)
	}
	query := parsed.Query()
	query.Set("_fv", fmt.Sprintf("%d", token))
	parsed.RawQuery = query.Encode()
	return parsed.String()
}
