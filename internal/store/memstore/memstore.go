// Package memstore is an in-process implementation of store.Store. It backs
// the server when no database is configured and is used throughout the
// tests.
//
// Transactions work on a deep copy of the data set which replaces the live
// copy on commit. Transactions and writes are serialized; reads outside a
// transaction never observe uncommitted writes.
package memstore

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/JonMunkholm/contacts/internal/contact"
	"github.com/JonMunkholm/contacts/internal/fields"
	"github.com/JonMunkholm/contacts/internal/store"
)

// Store is safe for concurrent use.
type Store struct {
	writeMu sync.Mutex // serializes transactions and writes
	mu      sync.RWMutex
	data    *dataset
	now     func() time.Time
}

var _ store.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the clock used for created/updated timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New returns an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		data: newDataset(),
		now:  func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) read() *view {
	return &view{d: s.data, now: s.now}
}

// write runs fn on a private copy and publishes it when fn succeeds.
func (s *Store) write(fn func(v *view) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.RLock()
	draft := s.data.clone()
	s.mu.RUnlock()

	if err := fn(&view{d: draft, now: s.now}); err != nil {
		return err
	}

	s.mu.Lock()
	s.data = draft
	s.mu.Unlock()
	return nil
}

// InTx implements store.Store.
func (s *Store) InTx(ctx context.Context, fn func(tx store.Store) error) error {
	return s.write(func(v *view) error {
		return fn(v)
	})
}

// Ping implements store.Store.
func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *Store) ListDefinitions(ctx context.Context) ([]fields.Definition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().ListDefinitions(ctx)
}

func (s *Store) GetDefinition(ctx context.Context, key string) (fields.Definition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().GetDefinition(ctx, key)
}

func (s *Store) CreateDefinition(ctx context.Context, def fields.Definition) (out fields.Definition, err error) {
	err = s.write(func(v *view) error {
		out, err = v.CreateDefinition(ctx, def)
		return err
	})
	return out, err
}

func (s *Store) UpdateDefinition(ctx context.Context, oldKey string, def fields.Definition) (out fields.Definition, err error) {
	err = s.write(func(v *view) error {
		out, err = v.UpdateDefinition(ctx, oldKey, def)
		return err
	})
	return out, err
}

func (s *Store) DeleteDefinition(ctx context.Context, key string) error {
	return s.write(func(v *view) error {
		return v.DeleteDefinition(ctx, key)
	})
}

func (s *Store) GetContact(ctx context.Context, id int64) (contact.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().GetContact(ctx, id)
}

func (s *Store) ListContacts(ctx context.Context, filter store.ContactFilter) ([]contact.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().ListContacts(ctx, filter)
}

func (s *Store) FindByAlternateKeys(ctx context.Context, emails, phones []string) ([]contact.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().FindByAlternateKeys(ctx, emails, phones)
}

func (s *Store) CreateContact(ctx context.Context, in contact.Input) (out contact.Contact, err error) {
	err = s.write(func(v *view) error {
		out, err = v.CreateContact(ctx, in)
		return err
	})
	return out, err
}

func (s *Store) UpdateContact(ctx context.Context, id int64, in contact.Input) (out contact.Contact, err error) {
	err = s.write(func(v *view) error {
		out, err = v.UpdateContact(ctx, id, in)
		return err
	})
	return out, err
}

func (s *Store) DeleteContact(ctx context.Context, id int64) error {
	return s.write(func(v *view) error {
		return v.DeleteContact(ctx, id)
	})
}

func (s *Store) LoadCustomValues(ctx context.Context, contactIDs []int64) (map[int64]fields.Values, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().LoadCustomValues(ctx, contactIDs)
}

func (s *Store) ValuesForKey(ctx context.Context, key string) ([]*string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().ValuesForKey(ctx, key)
}

func (s *Store) UpsertCustomValue(ctx context.Context, contactID int64, key string, value *string) error {
	return s.write(func(v *view) error {
		return v.UpsertCustomValue(ctx, contactID, key, value)
	})
}

/* ----------------------------------------
	data set
---------------------------------------- */

type dataset struct {
	defs         map[string]fields.Definition
	contacts     map[int64]contact.Contact
	values       map[int64]fields.Values
	interactions map[int64]contact.Interaction
	reminders    map[int64]contact.Reminder

	nextID            int64
	nextInteractionID int64
	nextReminderID    int64
}

func newDataset() *dataset {
	return &dataset{
		defs:         make(map[string]fields.Definition),
		contacts:     make(map[int64]contact.Contact),
		values:       make(map[int64]fields.Values),
		interactions: make(map[int64]contact.Interaction),
		reminders:    make(map[int64]contact.Reminder),
	}
}

func (d *dataset) clone() *dataset {
	out := &dataset{
		defs:              make(map[string]fields.Definition, len(d.defs)),
		contacts:          make(map[int64]contact.Contact, len(d.contacts)),
		values:            make(map[int64]fields.Values, len(d.values)),
		interactions:      make(map[int64]contact.Interaction, len(d.interactions)),
		reminders:         make(map[int64]contact.Reminder, len(d.reminders)),
		nextID:            d.nextID,
		nextInteractionID: d.nextInteractionID,
		nextReminderID:    d.nextReminderID,
	}
	for id, i := range d.interactions {
		out.interactions[id] = copyInteraction(i)
	}
	for id, r := range d.reminders {
		out.reminders[id] = r
	}
	for k, def := range d.defs {
		out.defs[k] = copyDefinition(def)
	}
	for id, c := range d.contacts {
		out.contacts[id] = copyContact(c)
	}
	for id, vals := range d.values {
		out.values[id] = vals.Clone()
	}
	return out
}

func copyDefinition(def fields.Definition) fields.Definition {
	def.Options = slices.Clone(def.Options)
	return def
}

func copyContact(c contact.Contact) contact.Contact {
	c.Company = copyString(c.Company)
	c.Title = copyString(c.Title)
	c.Email = copyString(c.Email)
	c.Phone = copyString(c.Phone)
	c.Note = copyString(c.Note)
	c.Tags = slices.Clone(c.Tags)
	if c.LastInteractedAt != nil {
		t := *c.LastInteractedAt
		c.LastInteractedAt = &t
	}
	return c
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	cp := *s
	return &cp
}

/* ----------------------------------------
	view: unlocked operations on one data set
---------------------------------------- */

type view struct {
	d   *dataset
	now func() time.Time
}

func (v *view) InTx(ctx context.Context, fn func(tx store.Store) error) error {
	return fn(v)
}

func (v *view) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (v *view) ListDefinitions(_ context.Context) ([]fields.Definition, error) {
	out := make([]fields.Definition, 0, len(v.d.defs))
	for _, def := range v.d.defs {
		out = append(out, copyDefinition(def))
	}
	slices.SortFunc(out, func(a, b fields.Definition) int {
		return strings.Compare(a.Key, b.Key)
	})
	return out, nil
}

func (v *view) GetDefinition(_ context.Context, key string) (fields.Definition, error) {
	def, ok := v.d.defs[key]
	if !ok {
		return fields.Definition{}, fmt.Errorf("field %q: %w", key, store.ErrNotFound)
	}
	return copyDefinition(def), nil
}

func (v *view) CreateDefinition(_ context.Context, def fields.Definition) (fields.Definition, error) {
	if _, exists := v.d.defs[def.Key]; exists {
		return fields.Definition{}, fmt.Errorf("field %q: %w", def.Key, store.ErrConflict)
	}
	if def.CreatedAt.IsZero() {
		def.CreatedAt = v.now()
	}
	def = copyDefinition(def)
	v.d.defs[def.Key] = def
	return copyDefinition(def), nil
}

func (v *view) UpdateDefinition(_ context.Context, oldKey string, def fields.Definition) (fields.Definition, error) {
	current, ok := v.d.defs[oldKey]
	if !ok {
		return fields.Definition{}, fmt.Errorf("field %q: %w", oldKey, store.ErrNotFound)
	}
	if def.Key != oldKey {
		if _, exists := v.d.defs[def.Key]; exists {
			return fields.Definition{}, fmt.Errorf("field %q: %w", def.Key, store.ErrConflict)
		}
		delete(v.d.defs, oldKey)
		for _, vals := range v.d.values {
			if val, has := vals[oldKey]; has {
				delete(vals, oldKey)
				vals[def.Key] = val
			}
		}
	}
	def.CreatedAt = current.CreatedAt
	def = copyDefinition(def)
	v.d.defs[def.Key] = def
	return copyDefinition(def), nil
}

func (v *view) DeleteDefinition(_ context.Context, key string) error {
	if _, ok := v.d.defs[key]; !ok {
		return fmt.Errorf("field %q: %w", key, store.ErrNotFound)
	}
	for _, vals := range v.d.values {
		if _, used := vals[key]; used {
			return fmt.Errorf("field %q: %w", key, store.ErrFieldInUse)
		}
	}
	delete(v.d.defs, key)
	return nil
}

func (v *view) GetContact(_ context.Context, id int64) (contact.Contact, error) {
	c, ok := v.d.contacts[id]
	if !ok {
		return contact.Contact{}, fmt.Errorf("contact %d: %w", id, store.ErrNotFound)
	}
	return copyContact(c), nil
}

func (v *view) ListContacts(_ context.Context, filter store.ContactFilter) ([]contact.Contact, error) {
	keyword := strings.ToLower(filter.Keyword)

	var out []contact.Contact
	for _, c := range v.d.contacts {
		if keyword != "" && !matchesKeyword(c, keyword) {
			continue
		}
		if filter.Before != nil && (c.LastInteractedAt == nil || !c.LastInteractedAt.Before(*filter.Before)) {
			continue
		}
		if filter.After != nil && (c.LastInteractedAt == nil || !c.LastInteractedAt.After(*filter.After)) {
			continue
		}
		if !hasAllTags(c, filter.Tags) {
			continue
		}
		out = append(out, copyContact(c))
	}

	slices.SortFunc(out, func(a, b contact.Contact) int {
		if n := strings.Compare(a.Name, b.Name); n != 0 {
			return n
		}
		return cmp.Compare(a.ID, b.ID)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func matchesKeyword(c contact.Contact, keyword string) bool {
	if strings.Contains(strings.ToLower(c.Name), keyword) {
		return true
	}
	for _, s := range []*string{c.Company, c.Title, c.Email, c.Phone, c.Note} {
		if s != nil && strings.Contains(strings.ToLower(*s), keyword) {
			return true
		}
	}
	return false
}

func hasAllTags(c contact.Contact, tags []string) bool {
	for _, tag := range tags {
		if !c.HasTag(tag) {
			return false
		}
	}
	return true
}

func (v *view) FindByAlternateKeys(_ context.Context, emails, phones []string) ([]contact.Contact, error) {
	var out []contact.Contact
	for _, c := range v.d.contacts {
		if (c.Email != nil && slices.Contains(emails, *c.Email)) ||
			(c.Phone != nil && slices.Contains(phones, *c.Phone)) {
			out = append(out, copyContact(c))
		}
	}
	slices.SortFunc(out, func(a, b contact.Contact) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (v *view) CreateContact(_ context.Context, in contact.Input) (contact.Contact, error) {
	if err := v.checkUnique(0, in); err != nil {
		return contact.Contact{}, err
	}
	v.d.nextID++
	now := v.now()
	c := fromInput(v.d.nextID, in)
	c.CreatedAt = now
	c.UpdatedAt = now
	v.d.contacts[c.ID] = c
	return copyContact(c), nil
}

func (v *view) UpdateContact(_ context.Context, id int64, in contact.Input) (contact.Contact, error) {
	current, ok := v.d.contacts[id]
	if !ok {
		return contact.Contact{}, fmt.Errorf("contact %d: %w", id, store.ErrNotFound)
	}
	if err := v.checkUnique(id, in); err != nil {
		return contact.Contact{}, err
	}
	c := fromInput(id, in)
	c.CreatedAt = current.CreatedAt
	c.UpdatedAt = v.now()
	v.d.contacts[id] = c
	return copyContact(c), nil
}

func (v *view) DeleteContact(_ context.Context, id int64) error {
	if _, ok := v.d.contacts[id]; !ok {
		return fmt.Errorf("contact %d: %w", id, store.ErrNotFound)
	}
	delete(v.d.contacts, id)
	delete(v.d.values, id)
	for iid, i := range v.d.interactions {
		if i.ContactID == id {
			delete(v.d.interactions, iid)
		}
	}
	for rid, r := range v.d.reminders {
		if r.ContactID == id {
			delete(v.d.reminders, rid)
		}
	}
	return nil
}

func (v *view) checkUnique(self int64, in contact.Input) error {
	for id, c := range v.d.contacts {
		if id == self {
			continue
		}
		if in.Email != nil && c.Email != nil && *in.Email == *c.Email {
			return fmt.Errorf("email %q: %w", *in.Email, store.ErrConflict)
		}
		if in.Phone != nil && c.Phone != nil && *in.Phone == *c.Phone {
			return fmt.Errorf("phone %q: %w", *in.Phone, store.ErrConflict)
		}
	}
	return nil
}

func fromInput(id int64, in contact.Input) contact.Contact {
	return copyContact(contact.Contact{
		ID:               id,
		Name:             in.Name,
		Company:          in.Company,
		Title:            in.Title,
		Email:            in.Email,
		Phone:            in.Phone,
		Tags:             in.Tags,
		Note:             in.Note,
		LastInteractedAt: in.LastInteractedAt,
	})
}

func (v *view) LoadCustomValues(_ context.Context, contactIDs []int64) (map[int64]fields.Values, error) {
	out := make(map[int64]fields.Values, len(contactIDs))
	for _, id := range contactIDs {
		if vals, ok := v.d.values[id]; ok && len(vals) > 0 {
			out[id] = vals.Clone()
		}
	}
	return out, nil
}

func (v *view) ValuesForKey(_ context.Context, key string) ([]*string, error) {
	var out []*string
	for _, vals := range v.d.values {
		if val, ok := vals[key]; ok {
			out = append(out, copyString(val))
		}
	}
	return out, nil
}

func (v *view) UpsertCustomValue(_ context.Context, contactID int64, key string, value *string) error {
	if _, ok := v.d.contacts[contactID]; !ok {
		return fmt.Errorf("contact %d: %w", contactID, store.ErrNotFound)
	}
	vals, ok := v.d.values[contactID]
	if !ok {
		vals = make(fields.Values)
		v.d.values[contactID] = vals
	}
	vals[key] = copyString(value)
	return nil
}
