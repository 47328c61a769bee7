package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JonMunkholm/contacts/internal/contact"
	"github.com/JonMunkholm/contacts/internal/fields"
	"github.com/JonMunkholm/contacts/internal/store"
)

// Paging limits for ListContacts.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// ContactView is a contact with its custom values decoded.
type ContactView struct {
	contact.Contact
	Custom map[string]any `json:"custom"`
}

// ContactInput creates a contact. Custom maps field keys to raw values.
type ContactInput struct {
	contact.Input
	Custom map[string]any `json:"custom"`
}

// ContactPatch partially updates a contact. Custom keys that are absent keep
// their stored value; a null value clears it.
type ContactPatch struct {
	contact.Patch
	Custom map[string]any `json:"custom"`
}

// ContactQuery filters and pages ListContacts. Before and After are strict
// bounds on last_interacted_at and exclude contacts without one.
type ContactQuery struct {
	Keyword string
	Tag     string
	Before  *time.Time
	After   *time.Time
	Page    int
	Size    int
}

// CreateContact validates in, stores the contact and its custom values in
// one transaction and returns the stored view.
func (s *Service) CreateContact(ctx context.Context, in ContactInput) (ContactView, error) {
	base, err := contact.Validate(in.Input)
	if err != nil {
		return ContactView{}, err
	}

	var view ContactView
	err = s.store.InTx(ctx, func(tx store.Store) error {
		catalog, err := loadCatalog(ctx, tx)
		if err != nil {
			return err
		}
		delta, err := fields.Resolve(catalog, in.Custom, nil)
		if err != nil {
			return err
		}

		c, err := tx.CreateContact(ctx, base)
		if err != nil {
			return translate(err, nil, ErrContactExists)
		}
		if err := storeValues(ctx, tx, c.ID, delta); err != nil {
			return err
		}
		view = newContactView(catalog, c, delta)
		return nil
	})
	return view, err
}

// GetContact returns one contact.
func (s *Service) GetContact(ctx context.Context, id int64) (ContactView, error) {
	c, err := s.store.GetContact(ctx, id)
	if err != nil {
		return ContactView{}, translate(err, ErrContactNotFound, nil)
	}
	views, err := s.views(ctx, s.store, []contact.Contact{c})
	if err != nil {
		return ContactView{}, err
	}
	return views[0], nil
}

// ListContacts returns one page of contacts ordered by name.
func (s *Service) ListContacts(ctx context.Context, q ContactQuery) ([]ContactView, error) {
	if q.Page == 0 {
		q.Page = 1
	}
	if q.Size == 0 {
		q.Size = DefaultPageSize
	}
	if q.Page < 1 {
		return nil, &QueryError{Message: "page must be greater than or equal to 1"}
	}
	if q.Size < 1 || q.Size > MaxPageSize {
		return nil, &QueryError{Message: fmt.Sprintf("size must be between 1 and %d", MaxPageSize)}
	}

	filter := store.ContactFilter{
		Keyword: q.Keyword,
		Before:  q.Before,
		After:   q.After,
		Offset:  (q.Page - 1) * q.Size,
		Limit:   q.Size,
	}
	if q.Tag != "" {
		filter.Tags = []string{q.Tag}
	}

	contacts, err := s.store.ListContacts(ctx, filter)
	if err != nil {
		return nil, err
	}
	return s.views(ctx, s.store, contacts)
}

// UpdateContact applies p to the stored contact. Custom values are merged
// over the stored ones before required fields are checked.
func (s *Service) UpdateContact(ctx context.Context, id int64, p ContactPatch) (ContactView, error) {
	var view ContactView
	err := s.store.InTx(ctx, func(tx store.Store) error {
		current, err := tx.GetContact(ctx, id)
		if err != nil {
			return translate(err, ErrContactNotFound, nil)
		}

		base, err := contact.Validate(p.Patch.Apply(current.Input()))
		if err != nil {
			return err
		}

		catalog, err := loadCatalog(ctx, tx)
		if err != nil {
			return err
		}
		stored, err := tx.LoadCustomValues(ctx, []int64{id})
		if err != nil {
			return err
		}
		existing := stored[id]
		delta, err := fields.Resolve(catalog, p.Custom, existing)
		if err != nil {
			return err
		}

		updated, err := tx.UpdateContact(ctx, id, base)
		if err != nil {
			return translate(err, ErrContactNotFound, ErrContactExists)
		}
		if err := storeValues(ctx, tx, id, delta); err != nil {
			return err
		}
		view = newContactView(catalog, updated, existing.Merge(delta))
		return nil
	})
	return view, err
}

// DeleteContact removes a contact and its custom values.
func (s *Service) DeleteContact(ctx context.Context, id int64) error {
	return translate(s.store.DeleteContact(ctx, id), ErrContactNotFound, nil)
}

func (s *Service) views(ctx context.Context, st store.Store, contacts []contact.Contact) ([]ContactView, error) {
	catalog, err := loadCatalog(ctx, st)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, len(contacts))
	for i, c := range contacts {
		ids[i] = c.ID
	}
	values, err := st.LoadCustomValues(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]ContactView, len(contacts))
	for i, c := range contacts {
		out[i] = newContactView(catalog, c, values[c.ID])
	}
	return out, nil
}

// newContactView decodes stored values. Values without a definition or
// that no longer decode are left out.
func newContactView(catalog fields.Catalog, c contact.Contact, values fields.Values) ContactView {
	custom := make(map[string]any, len(values))
	for key, stored := range values {
		def, ok := catalog[key]
		if !ok {
			continue
		}
		decoded, err := fields.Decode(def, stored)
		if err != nil {
			continue
		}
		custom[key] = decoded
	}
	return ContactView{Contact: c, Custom: custom}
}

func loadCatalog(ctx context.Context, st store.Definitions) (fields.Catalog, error) {
	defs, err := st.ListDefinitions(ctx)
	if err != nil {
		return nil, fmt.Errorf("load field definitions: %w", err)
	}
	return fields.NewCatalog(defs), nil
}

func storeValues(ctx context.Context, st store.CustomValues, contactID int64, delta fields.Values) error {
	for _, key := range delta.Keys() {
		if err := st.UpsertCustomValue(ctx, contactID, key, delta[key]); err != nil {
			return fmt.Errorf("store field %q: %w", key, err)
		}
	}
	return nil
}

// ErrInvalidQuery is the kind of every QueryError.
var ErrInvalidQuery = errors.New("invalid query")

// QueryError reports an out-of-range list parameter.
type QueryError struct {
	Message string
}

func (e *QueryError) Error() string {
	return e.Message
}

func (e *QueryError) Unwrap() error {
	return ErrInvalidQuery
}
