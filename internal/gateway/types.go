// Package gateway connects the agent to chat platforms. Adapters normalize
// inbound messages and deliver plain-text posts; rich platform features are
// not modeled.
package gateway

import (
	"context"
	"time"
)

// Adapter is one chat platform.
type Adapter interface {
	Platform() string
	Connect(ctx context.Context) error
	Send(ctx context.Context, msg *OutboundMessage) error
	OnMessage(handler MessageHandler)
	Broadcast(ctx context.Context, msg *BroadcastMessage) error
	Close() error
}

// MessageHandler processes inbound messages from any platform.
type MessageHandler func(msg *InboundMessage)

// InboundMessage is a normalized message from any platform.
type InboundMessage struct {
	Platform  string    `json:"platform"`
	ChannelID string    `json:"channel_id"`
	UserID    string    `json:"user_id"`
	UserName  string    `json:"user_name"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	ReplyTo   string    `json:"reply_to,omitempty"`
}

// OutboundMessage is a reply to a specific platform channel.
type OutboundMessage struct {
	Platform  string `json:"platform"`
	ChannelID string `json:"channel_id"`
	Content   string `json:"content"`
	ReplyTo   string `json:"reply_to,omitempty"`
}

// BroadcastType categorizes broadcast messages.
type BroadcastType string

const (
	BroadcastUpdate   BroadcastType = "update"
	BroadcastTrade    BroadcastType = "trade"
	BroadcastResearch BroadcastType = "research"
	BroadcastAlert    BroadcastType = "alert"
)

// BroadcastMessage is posted to every matching platform.
type BroadcastMessage struct {
	Type      BroadcastType `json:"type"`
	Title     string        `json:"title,omitempty"`
	Content   string        `json:"content"`
	Platforms []string      `json:"platforms,omitempty"`
}

// text renders a broadcast with the platform's bold markers.
func (m *BroadcastMessage) text(bold string) string {
	if m.Title == "" {
		return m.Content
	}
	return bold + m.Title + bold + "\n" + m.Content
}

// AdapterStatus reports an adapter's connection state.
type AdapterStatus struct {
	Platform    string     `json:"platform"`
	Connected   bool       `json:"connected"`
	ConnectedAt *time.Time `json:"connected_at,omitempty"`
	Error       string     `json:"error,omitempty"`
	Details     string     `json:"details,omitempty"`
}

// StatusReporter is implemented by adapters that track their connection.
type StatusReporter interface {
	Status() AdapterStatus
}
