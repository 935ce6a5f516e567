package shared

import (
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types.
const (
	// Account events
	EventUserRegistered EventType = "account.registered"
	EventUserLoggedIn   EventType = "account.logged_in"

	// Progress events
	EventXPGained      EventType = "progress.xp_gained"
	EventLevelUp       EventType = "progress.level_up"
	EventStreakUpdated EventType = "progress.streak_updated"

	// Lesson events
	EventLessonCompleted EventType = "lesson.completed"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the username the event is about.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]any
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type        EventType `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	AggregateId string    `json:"aggregate_id"`
	Version     int       `json:"version"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Account Events
// ═══════════════════════════════════════════════════════════════════════════

// UserRegisteredEvent is emitted after a successful sign-up.
type UserRegisteredEvent struct {
	BaseEvent
}

// Payload implements Event interface.
func (e UserRegisteredEvent) Payload() map[string]any {
	return map[string]any{"username": e.AggregateId}
}

// NewUserRegisteredEvent creates a new UserRegisteredEvent.
func NewUserRegisteredEvent(username string) UserRegisteredEvent {
	return UserRegisteredEvent{BaseEvent: NewBaseEvent(EventUserRegistered, username)}
}

// UserLoggedInEvent is emitted after a successful login.
type UserLoggedInEvent struct {
	BaseEvent
	StreakCount int `json:"streak_count"`
}

// Payload implements Event interface.
func (e UserLoggedInEvent) Payload() map[string]any {
	return map[string]any{
		"username":     e.AggregateId,
		"streak_count": e.StreakCount,
	}
}

// NewUserLoggedInEvent creates a new UserLoggedInEvent.
func NewUserLoggedInEvent(username string, streakCount int) UserLoggedInEvent {
	return UserLoggedInEvent{
		BaseEvent:   NewBaseEvent(EventUserLoggedIn, username),
		StreakCount: streakCount,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Progress Events
// ═══════════════════════════════════════════════════════════════════════════

// XPGainedEvent is emitted when a user gains XP in a language.
type XPGainedEvent struct {
	BaseEvent
	Language string `json:"language"`
	Amount   int    `json:"amount"`
	NewTotal int    `json:"new_total"`
	Source   string `json:"source"` // e.g., "activity", "manual"
}

// Payload implements Event interface.
func (e XPGainedEvent) Payload() map[string]any {
	return map[string]any{
		"username":  e.AggregateId,
		"language":  e.Language,
		"amount":    e.Amount,
		"new_total": e.NewTotal,
		"source":    e.Source,
	}
}

// NewXPGainedEvent creates a new XPGainedEvent.
func NewXPGainedEvent(username, language string, amount, newTotal int, source string) XPGainedEvent {
	return XPGainedEvent{
		BaseEvent: NewBaseEvent(EventXPGained, username),
		Language:  language,
		Amount:    amount,
		NewTotal:  newTotal,
		Source:    source,
	}
}

// LevelUpEvent is emitted when a proficiency level is promoted.
type LevelUpEvent struct {
	BaseEvent
	Language string `json:"language"`
	OldLevel string `json:"old_level"`
	NewLevel string `json:"new_level"`
	XP       int    `json:"xp"`
}

// Payload implements Event interface.
func (e LevelUpEvent) Payload() map[string]any {
	return map[string]any{
		"username":  e.AggregateId,
		"language":  e.Language,
		"old_level": e.OldLevel,
		"new_level": e.NewLevel,
		"xp":        e.XP,
	}
}

// NewLevelUpEvent creates a new LevelUpEvent.
func NewLevelUpEvent(username, language, oldLevel, newLevel string, xp int) LevelUpEvent {
	return LevelUpEvent{
		BaseEvent: NewBaseEvent(EventLevelUp, username),
		Language:  language,
		OldLevel:  oldLevel,
		NewLevel:  newLevel,
		XP:        xp,
	}
}

// StreakUpdatedEvent is emitted when a login moves the streak forward or
// resets it.
type StreakUpdatedEvent struct {
	BaseEvent
	Count     int    `json:"count"`
	LastLogin string `json:"last_login"`
	Reset     bool   `json:"reset"`
}

// Payload implements Event interface.
func (e StreakUpdatedEvent) Payload() map[string]any {
	return map[string]any{
		"username":   e.AggregateId,
		"count":      e.Count,
		"last_login": e.LastLogin,
		"reset":      e.Reset,
	}
}

// NewStreakUpdatedEvent creates a new StreakUpdatedEvent.
func NewStreakUpdatedEvent(username string, count int, lastLogin string, reset bool) StreakUpdatedEvent {
	return StreakUpdatedEvent{
		BaseEvent: NewBaseEvent(EventStreakUpdated, username),
		Count:     count,
		LastLogin: lastLogin,
		Reset:     reset,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Lesson Events
// ═══════════════════════════════════════════════════════════════════════════

// LessonCompletedEvent is emitted when the last activity of a lesson gets
// its first score.
type LessonCompletedEvent struct {
	BaseEvent
	Language string `json:"language"`
	LessonID int    `json:"lesson_id"`
}

// Payload implements Event interface.
func (e LessonCompletedEvent) Payload() map[string]any {
	return map[string]any{
		"username":  e.AggregateId,
		"language":  e.Language,
		"lesson_id": e.LessonID,
	}
}

// NewLessonCompletedEvent creates a new LessonCompletedEvent.
func NewLessonCompletedEvent(username, language string, lessonID int) LessonCompletedEvent {
	return LessonCompletedEvent{
		BaseEvent: NewBaseEvent(EventLessonCompleted, username),
		Language:  language,
		LessonID:  lessonID,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Bus contracts
// ═══════════════════════════════════════════════════════════════════════════

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}

// NopPublisher drops every event.
type NopPublisher struct{}

// Publish implements EventPublisher.
func (NopPublisher) Publish(Event) error { return nil }
