// Package notifier provides desktop notifications for pipeline outcomes
package notifier

import (
	"fmt"
	"time"

	"github.com/gen2brain/beeep"

	"github.com/sqlite-burrito/burrito/pkg/logger"
)

// Notifier reports pipeline outcomes
type Notifier interface {
	NotifyStart(name string)
	NotifySuccess(name string, duration time.Duration)
	NotifyFailure(name string, err error)
}

// Config represents notification configuration
type Config struct {
	Enabled      bool
	SuccessSound string
	FailureSound string
}

// BuildNotifier sends notifications through the desktop notification
// service
type BuildNotifier struct {
	enabled      bool
	successSound string
	failureSound string
	logger       logger.Logger

	notify func(title, message, icon string) error
	beep   func(freq float64, duration int) error
}

// New creates a new build notifier
func New(config Config, log logger.Logger) *BuildNotifier {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &BuildNotifier{
		enabled:      config.Enabled,
		successSound: config.SuccessSound,
		failureSound: config.FailureSound,
		logger:       log,
		notify:       beeep.Notify,
		beep:         beeep.Beep,
	}
}

// Enabled reports whether notifications are sent
func (n *BuildNotifier) Enabled() bool {
	return n.enabled
}

// NotifyStart notifies that a pipeline has started
func (n *BuildNotifier) NotifyStart(name string) {
	if !n.enabled {
		return
	}
	n.send("burrito", fmt.Sprintf("Running %s...", name), "")
}

// NotifySuccess notifies that a pipeline succeeded
func (n *BuildNotifier) NotifySuccess(name string, duration time.Duration) {
	if !n.enabled {
		return
	}
	n.send("Build Succeeded", fmt.Sprintf("%s finished in %s", name, formatDuration(duration)), n.successSound)
}

// NotifyFailure notifies that a pipeline failed
func (n *BuildNotifier) NotifyFailure(name string, err error) {
	if !n.enabled {
		return
	}
	n.send("Build Failed", fmt.Sprintf("%s: %v", name, err), n.failureSound)
}

func (n *BuildNotifier) send(title, message, sound string) {
	if err := n.notify(title, message, ""); err != nil {
		n.logger.Debug("Failed to send notification", logger.WithField("error", err))
	}
	if sound != "" {
		if err := n.beep(beeep.DefaultFreq, beeep.DefaultDuration); err != nil {
			n.logger.Debug("Failed to play sound", logger.WithField("error", err))
		}
	}
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
}
