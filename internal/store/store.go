// Package store declares the persistence contract for field definitions,
// contacts, custom field values, interactions and reminders. Implementations live in memstore and
// pgstore.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/JonMunkholm/contacts/internal/contact"
	"github.com/JonMunkholm/contacts/internal/fields"
)

var (
	// ErrNotFound is returned when a contact or definition does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a write violates a uniqueness rule
	// (field key, contact email or contact phone).
	ErrConflict = errors.New("conflict")
	// ErrFieldInUse is returned when deleting a definition that still has
	// values stored under its key.
	ErrFieldInUse = errors.New("field is assigned to existing contacts")
)

// Definitions persists custom field definitions.
type Definitions interface {
	ListDefinitions(ctx context.Context) ([]fields.Definition, error)
	GetDefinition(ctx context.Context, key string) (fields.Definition, error)
	CreateDefinition(ctx context.Context, def fields.Definition) (fields.Definition, error)
	// UpdateDefinition replaces the definition stored under oldKey. When the
	// key changes, stored values are moved to the new key.
	UpdateDefinition(ctx context.Context, oldKey string, def fields.Definition) (fields.Definition, error)
	DeleteDefinition(ctx context.Context, key string) error
}

// ContactFilter narrows ListContacts. Zero values disable a filter.
type ContactFilter struct {
	Keyword string
	Tags    []string
	Before  *time.Time
	After   *time.Time
	Offset  int
	Limit   int
}

// Contacts persists base contact records.
type Contacts interface {
	GetContact(ctx context.Context, id int64) (contact.Contact, error)
	// ListContacts returns contacts ordered by name, then ID.
	ListContacts(ctx context.Context, filter ContactFilter) ([]contact.Contact, error)
	// FindByAlternateKeys returns every contact whose email is in emails or
	// whose phone is in phones.
	FindByAlternateKeys(ctx context.Context, emails, phones []string) ([]contact.Contact, error)
	CreateContact(ctx context.Context, in contact.Input) (contact.Contact, error)
	UpdateContact(ctx context.Context, id int64, in contact.Input) (contact.Contact, error)
	// DeleteContact also removes the contact's custom values, interactions
	// and reminders.
	DeleteContact(ctx context.Context, id int64) error
}

// CustomValues persists custom field values keyed by contact and field key.
type CustomValues interface {
	// LoadCustomValues returns the stored values for each requested contact.
	// Contacts without values are absent from the result.
	LoadCustomValues(ctx context.Context, contactIDs []int64) (map[int64]fields.Values, error)
	// ValuesForKey returns every stored value under key, nil entries included.
	ValuesForKey(ctx context.Context, key string) ([]*string, error)
	UpsertCustomValue(ctx context.Context, contactID int64, key string, value *string) error
}

// InteractionFilter narrows ListInteractions. Zero values disable a filter.
// From and To are inclusive bounds on HappenedAt.
type InteractionFilter struct {
	ContactID int64
	From      *time.Time
	To        *time.Time
}

// Interactions persists interaction records.
type Interactions interface {
	GetInteraction(ctx context.Context, id int64) (contact.Interaction, error)
	// ListInteractions returns interactions newest first, ties by ID
	// descending.
	ListInteractions(ctx context.Context, filter InteractionFilter) ([]contact.Interaction, error)
	// LatestInteractions returns the newest interaction of each requested
	// contact. Contacts without interactions are absent from the result.
	LatestInteractions(ctx context.Context, contactIDs []int64) (map[int64]contact.Interaction, error)
	// CreateInteraction returns ErrNotFound when the contact does not exist.
	CreateInteraction(ctx context.Context, in contact.InteractionInput) (contact.Interaction, error)
	UpdateInteraction(ctx context.Context, id int64, in contact.InteractionInput) (contact.Interaction, error)
	DeleteInteraction(ctx context.Context, id int64) error
	// SyncLastInteracted sets the contact's LastInteractedAt to the newest
	// HappenedAt among its interactions, or nil when it has none.
	SyncLastInteracted(ctx context.Context, contactID int64) error
}

// ReminderFilter narrows ListReminders. From and To are inclusive bounds on
// RemindAt.
type ReminderFilter struct {
	From *contact.Date
	To   *contact.Date
	Done *bool
}

// Reminders persists reminder records.
type Reminders interface {
	GetReminder(ctx context.Context, id int64) (contact.Reminder, error)
	// ListReminders returns reminders ordered by RemindAt, then ID.
	ListReminders(ctx context.Context, filter ReminderFilter) ([]contact.Reminder, error)
	// CreateReminder returns ErrNotFound when the contact does not exist.
	CreateReminder(ctx context.Context, in contact.ReminderInput) (contact.Reminder, error)
	UpdateReminder(ctx context.Context, id int64, in contact.ReminderInput) (contact.Reminder, error)
	DeleteReminder(ctx context.Context, id int64) error
}

// Store is the full persistence surface.
type Store interface {
	Definitions
	Contacts
	CustomValues
	Interactions
	Reminders

	// InTx runs fn against a transactional view of the store. Writes made
	// through that view commit together when fn returns nil and are
	// discarded otherwise. Calling InTx on a transactional view joins the
	// outer transaction.
	InTx(ctx context.Context, fn func(tx Store) error) error

	// Ping checks that the backing storage is reachable.
	Ping(ctx context.Context) error
}
