// Package notify sends desktop notifications for integration milestones.
// It uses the beeep library, which covers macOS, Linux, and Windows.
package notify

import (
	"fmt"

	"github.com/gen2brain/beeep"

	"para/internal/config"
	"para/internal/logger"
)

// notifier is the notification backend, swappable for tests.
var notifier = defaultNotify

func defaultNotify(title, message string) error {
	// Empty icon keeps beeep's platform defaults
	return beeep.Notify(title, message, "")
}

// SetNotifier replaces the notification backend.
func SetNotifier(fn func(title, message string) error) {
	notifier = fn
}

// ResetNotifier restores the default backend.
func ResetNotifier() {
	notifier = defaultNotify
}

// Notifier sends milestone notifications according to the user's
// notification settings. Delivery is best effort: a broken notification
// daemon must never fail an integration that already landed, so errors
// are logged and swallowed.
type Notifier struct {
	cfg config.NotificationConfig
}

// New creates a Notifier honoring the given settings.
func New(cfg config.NotificationConfig) *Notifier {
	return &Notifier{cfg: cfg}
}

// Completed announces a finished integration.
func (n *Notifier) Completed(session, finalBranch string) {
	if !n.cfg.Enabled || !n.cfg.OnComplete {
		return
	}
	n.send(fmt.Sprintf("%s integrated into %s", session, finalBranch))
}

// Conflicts announces an integration pausing on conflicted files.
func (n *Notifier) Conflicts(session string, count int) {
	if !n.cfg.Enabled || !n.cfg.OnConflict {
		return
	}
	noun := "files"
	if count == 1 {
		noun = "file"
	}
	n.send(fmt.Sprintf("%s paused: %d conflicted %s, resolve and run 'para continue'", session, count, noun))
}

// Aborted announces a rolled-back integration.
func (n *Notifier) Aborted(session string) {
	if !n.cfg.Enabled {
		return
	}
	n.send(fmt.Sprintf("%s integration aborted, previous state restored", session))
}

// Failed announces an integration that could not finish.
func (n *Notifier) Failed(session, reason string) {
	if !n.cfg.Enabled {
		return
	}
	n.send(fmt.Sprintf("%s integration failed: %s", session, reason))
}

func (n *Notifier) send(message string) {
	if err := notifier("para", message); err != nil {
		logger.Warn("notification failed: %v", err)
	}
}
