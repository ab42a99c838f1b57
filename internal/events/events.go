// Package events publishes change notifications for abbreviation entries.
//
// Events follow the CloudEvents JSON layout and are published on NATS subject
// "<prefix>.entries.<op>". Publishing is best effort: callers log failures and
// carry on, since the store write has already committed.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"git.cscs.ch/openchami/chamicore-abbrev/internal/model"
	"git.cscs.ch/openchami/chamicore-abbrev/pkg/types"
)

const (
	specVersion         = "1.0"
	eventSource         = "chamicore-abbrev"
	eventTypePrefix     = "chamicore.abbrev.entries."
	jsonDataContentType = "application/json"
)

// Op names the mutation an event reports.
type Op string

const (
	OpCreated Op = "created"
	OpUpdated Op = "updated"
	OpDeleted Op = "deleted"
	OpSeeded  Op = "seeded"
)

// Event is a CloudEvents-shaped change notification.
type Event struct {
	SpecVersion     string          `json:"specversion"`
	ID              string          `json:"id"`
	Source          string          `json:"source"`
	Type            string          `json:"type"`
	Subject         string          `json:"subject,omitempty"`
	Time            time.Time       `json:"time"`
	DataContentType string          `json:"datacontenttype"`
	Data            json.RawMessage `json:"data"`

	op Op
}

// Op returns the mutation the event reports.
func (e Event) Op() Op {
	return e.op
}

// Publisher delivers events to subscribers.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
	Close() error
}

// DeletedData is the payload of an OpDeleted event.
type DeletedData struct {
	ID int64 `json:"id"`
}

// SeededData is the payload of an OpSeeded event.
type SeededData struct {
	Inserted int `json:"inserted"`
}

// NewEntryEvent builds a created or updated event carrying the entry snapshot.
func NewEntryEvent(op Op, e model.Entry) (Event, error) {
	if op != OpCreated && op != OpUpdated {
		return Event{}, fmt.Errorf("unsupported entry event op %q", op)
	}
	return newEvent(op, strconv.FormatInt(e.ID, 10), types.Entry{
		ID:           e.ID,
		Abbreviation: e.Abbreviation,
		FullForm:     e.FullForm,
		Description:  e.Description,
	})
}

// NewDeletedEvent builds the event for a removed entry.
func NewDeletedEvent(id int64) (Event, error) {
	return newEvent(OpDeleted, strconv.FormatInt(id, 10), DeletedData{ID: id})
}

// NewSeededEvent builds the event for a catalog seed run.
func NewSeededEvent(inserted int) (Event, error) {
	return newEvent(OpSeeded, "", SeededData{Inserted: inserted})
}

func newEvent(op Op, subject string, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshaling %s event payload: %w", op, err)
	}
	return Event{
		SpecVersion:     specVersion,
		ID:              uuid.NewString(),
		Source:          eventSource,
		Type:            eventTypePrefix + string(op),
		Subject:         subject,
		Time:            time.Now().UTC(),
		DataContentType: jsonDataContentType,
		Data:            data,
		op:              op,
	}, nil
}

// NopPublisher discards every event. Used when no NATS URL is configured.
type NopPublisher struct{}

// Publish implements Publisher.
func (NopPublisher) Publish(context.Context, Event) error { return nil }

// Close implements Publisher.
func (NopPublisher) Close() error { return nil }
