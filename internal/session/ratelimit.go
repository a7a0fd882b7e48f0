package session

import (
	"strings"
	"time"
	"unicode/utf8"
)

const (
	// DefaultChatInterval is the minimum gap between two chat messages from
	// one connection.
	DefaultChatInterval = 500 * time.Millisecond

	// MaxChatLength is counted in characters, not bytes.
	MaxChatLength = 1000
)

// ChatLimiter throttles chat per connection. The record lives on the
// registry entry and is dropped when the connection leaves its room.
type ChatLimiter struct {
	registry *Registry
	interval time.Duration
}

func NewChatLimiter(registry *Registry, interval time.Duration) *ChatLimiter {
	if interval <= 0 {
		interval = DefaultChatInterval
	}
	return &ChatLimiter{registry: registry, interval: interval}
}

// AllowChat reports whether connID may send a chat message at now, and if so
// records now as its last allowed message.
func (l *ChatLimiter) AllowChat(connID string, now time.Time) bool {
	p := l.registry.Lookup(connID)
	if p == nil {
		return false
	}
	return p.allowChat(now, l.interval)
}

// ValidateChat trims text and checks its length.
func ValidateChat(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyMessage
	}
	if utf8.RuneCountInString(text) > MaxChatLength {
		return "", ErrMessageTooLong
	}
	return text, nil
}
