// Package ratelimit records and checks per-handler cool-downs in a Store.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/morezero/dbi/pkg/store"
)

const logPrefix = "ratelimit:ratelimit"

// Dimension is the scope a cool-down applies to.
type Dimension string

// Rate-limit dimensions.
const (
	User    Dimension = "User"
	Channel Dimension = "Channel"
	Guild   Dimension = "Guild"
	Member  Dimension = "Member"
	Message Dimension = "Message"
)

// Dimensions lists every dimension in check order.
var Dimensions = []Dimension{User, Channel, Guild, Member, Message}

// Limit is a static cool-down declared on a handler.
type Limit struct {
	Dimension Dimension
	Duration  time.Duration
}

// Target carries the identifiers a dispatch is scoped by.
type Target struct {
	UserID    string
	ChannelID string
	GuildID   string
	MessageID string
}

// TargetFromInteraction extracts the scope identifiers of i.
func TargetFromInteraction(i *discordgo.Interaction) Target {
	if i == nil {
		return Target{}
	}
	t := Target{ChannelID: i.ChannelID, GuildID: i.GuildID}
	switch {
	case i.Member != nil && i.Member.User != nil:
		t.UserID = i.Member.User.ID
	case i.User != nil:
		t.UserID = i.User.ID
	}
	if i.Message != nil {
		t.MessageID = i.Message.ID
	}
	return t
}

// ID returns the scope identifier for dim. Missing identifiers fall back to the
// dimension name, so every dispatch lacking that scope shares one bucket.
func (t Target) ID(dim Dimension) string {
	var id string
	switch dim {
	case User:
		id = t.UserID
	case Channel:
		id = t.ChannelID
	case Guild:
		id = t.GuildID
	case Member:
		if t.GuildID != "" && t.UserID != "" {
			id = t.GuildID + "_" + t.UserID
		}
	case Message:
		id = t.MessageID
	}
	if id == "" {
		return string(dim)
	}
	return id
}

// Key is the store key for handler in dim.
func Key(handler string, dim Dimension, t Target) string {
	return fmt.Sprintf("ratelimit:%s:%s:%s", handler, dim, t.ID(dim))
}

// Record is the stored form of an applied cool-down.
type Record struct {
	At       time.Time `json:"at"`
	Duration int64     `json:"duration"`
}

// Until returns when the cool-down ends.
func (r Record) Until() time.Time {
	return r.At.Add(time.Duration(r.Duration) * time.Millisecond)
}

// Hit describes an active cool-down found by Check.
type Hit struct {
	Dimension Dimension
	Remaining time.Duration
	Record    Record
}

// Limiter checks and applies cool-downs.
type Limiter struct {
	store store.Store
	now   func() time.Time
}

// New creates a Limiter over s.
func New(s store.Store) *Limiter {
	return &Limiter{store: s, now: time.Now}
}

// NewWithClock creates a Limiter with an injected clock.
func NewWithClock(s store.Store, now func() time.Time) *Limiter {
	return &Limiter{store: s, now: now}
}

// Check returns the first active cool-down of handler over all dimensions, or
// nil. Expired records found on the way are deleted.
func (l *Limiter) Check(ctx context.Context, handler string, t Target) (*Hit, error) {
	now := l.now()
	for _, dim := range Dimensions {
		key := Key(handler, dim, t)
		var rec Record
		ok, err := store.GetJSON(ctx, l.store, key, &rec)
		if err != nil {
			return nil, fmt.Errorf("%s - check %s: %w", logPrefix, key, err)
		}
		if !ok {
			continue
		}
		until := rec.Until()
		if now.Before(until) {
			return &Hit{Dimension: dim, Remaining: until.Sub(now), Record: rec}, nil
		}
		if err := l.store.Delete(ctx, key); err != nil {
			return nil, fmt.Errorf("%s - delete expired %s: %w", logPrefix, key, err)
		}
	}
	return nil, nil
}

// Set records a cool-down of d for handler in dim, starting now.
func (l *Limiter) Set(ctx context.Context, handler string, dim Dimension, t Target, d time.Duration) error {
	key := Key(handler, dim, t)
	rec := Record{At: l.now(), Duration: d.Milliseconds()}
	if err := store.SetJSON(ctx, l.store, key, rec); err != nil {
		return fmt.Errorf("%s - set %s: %w", logPrefix, key, err)
	}
	return nil
}

// Apply records every static limit of handler.
func (l *Limiter) Apply(ctx context.Context, handler string, limits []Limit, t Target) error {
	for _, lim := range limits {
		if err := l.Set(ctx, handler, lim.Dimension, t, lim.Duration); err != nil {
			return err
		}
	}
	return nil
}
