// Package events publishes dispatch lifecycle events (after/error/rate-limit
// stages) to observers outside the process.
package events

import "time"

// Lifecycle stages.
const (
	StageAfterInteraction     = "afterInteraction"
	StageInteractionError     = "interactionError"
	StageInteractionRateLimit = "interactionRateLimit"
	StageAfterEvent           = "afterEvent"
	StageEventError           = "eventError"
)

// LifecycleEvent describes one dispatch stage of one handler.
type LifecycleEvent struct {
	Stage string `json:"stage"`
	// Kind is the handler kind, e.g. "chatInput", "button", "event".
	Kind string `json:"kind"`
	// Name is the handler name (command path, component name or event name).
	Name      string    `json:"name"`
	Client    string    `json:"client,omitempty"`
	GuildID   string    `json:"guildId,omitempty"`
	ChannelID string    `json:"channelId,omitempty"`
	UserID    string    `json:"userId,omitempty"`
	Error     string    `json:"error,omitempty"`
	RateLimit string    `json:"rateLimit,omitempty"`
	Duration  string    `json:"duration,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
