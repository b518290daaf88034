// Package notify carries user-facing messages (toasts) out of the payment flow.
package notify

import (
	"sync"
	"time"

	"github.com/quantumauth-io/quantum-go-utils/log"
)

type Level string

const (
	LevelSuccess Level = "success"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

type Notification struct {
	Level   Level     `json:"level"`
	Title   string    `json:"title"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

type Notifier interface {
	Notify(n Notification)
}

func newNotification(l Level, title, msg string) Notification {
	return Notification{Level: l, Title: title, Message: msg, At: time.Now().UTC()}
}

func Success(title, msg string) Notification { return newNotification(LevelSuccess, title, msg) }
func Info(title, msg string) Notification    { return newNotification(LevelInfo, title, msg) }
func Warning(title, msg string) Notification { return newNotification(LevelWarning, title, msg) }
func Error(title, msg string) Notification   { return newNotification(LevelError, title, msg) }

type discard struct{}

func (discard) Notify(Notification) {}

// Discard drops every notification.
var Discard Notifier = discard{}

// Log writes notifications to the application log.
type Log struct{}

func (Log) Notify(n Notification) {
	switch n.Level {
	case LevelError:
		log.Error(n.Title, "message", n.Message)
	case LevelWarning:
		log.Warn(n.Title, "message", n.Message)
	default:
		log.Info(n.Title, "level", string(n.Level), "message", n.Message)
	}
}

// Feed keeps the most recent notifications for the local UI to poll.
type Feed struct {
	mu    sync.Mutex
	items []Notification
	limit int
}

func NewFeed(limit int) *Feed {
	if limit <= 0 {
		limit = 50
	}
	return &Feed{limit: limit}
}

func (f *Feed) Notify(n Notification) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = append(f.items, n)
	if len(f.items) > f.limit {
		f.items = f.items[len(f.items)-f.limit:]
	}
}

// Recent returns up to n notifications, newest last.
func (f *Feed) Recent(n int) []Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n <= 0 || n > len(f.items) {
		n = len(f.items)
	}
	return append([]Notification(nil), f.items[len(f.items)-n:]...)
}

// Last returns the newest notification.
func (f *Feed) Last() (Notification, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.items) == 0 {
		return Notification{}, false
	}
	return f.items[len(f.items)-1], true
}

type multi []Notifier

func (m multi) Notify(n Notification) {
	for _, x := range m {
		x.Notify(n)
	}
}

// Multi fans a notification out to every non-nil notifier.
func Multi(ns ...Notifier) Notifier {
	out := make(multi, 0, len(ns))
	for _, n := range ns {
		if n != nil {
			out = append(out, n)
		}
	}
	return out
}
