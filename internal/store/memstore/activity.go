package memstore

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/JonMunkholm/contacts/internal/contact"
	"github.com/JonMunkholm/contacts/internal/store"
)

func (s *Store) GetInteraction(ctx context.Context, id int64) (contact.Interaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().GetInteraction(ctx, id)
}

func (s *Store) ListInteractions(ctx context.Context, filter store.InteractionFilter) ([]contact.Interaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().ListInteractions(ctx, filter)
}

func (s *Store) LatestInteractions(ctx context.Context, contactIDs []int64) (map[int64]contact.Interaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().LatestInteractions(ctx, contactIDs)
}

func (s *Store) CreateInteraction(ctx context.Context, in contact.InteractionInput) (out contact.Interaction, err error) {
	err = s.write(func(v *view) error {
		out, err = v.CreateInteraction(ctx, in)
		return err
	})
	return out, err
}

func (s *Store) UpdateInteraction(ctx context.Context, id int64, in contact.InteractionInput) (out contact.Interaction, err error) {
	err = s.write(func(v *view) error {
		out, err = v.UpdateInteraction(ctx, id, in)
		return err
	})
	return out, err
}

func (s *Store) DeleteInteraction(ctx context.Context, id int64) error {
	return s.write(func(v *view) error {
		return v.DeleteInteraction(ctx, id)
	})
}

func (s *Store) SyncLastInteracted(ctx context.Context, contactID int64) error {
	return s.write(func(v *view) error {
		return v.SyncLastInteracted(ctx, contactID)
	})
}

func (s *Store) GetReminder(ctx context.Context, id int64) (contact.Reminder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().GetReminder(ctx, id)
}

func (s *Store) ListReminders(ctx context.Context, filter store.ReminderFilter) ([]contact.Reminder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().ListReminders(ctx, filter)
}

func (s *Store) CreateReminder(ctx context.Context, in contact.ReminderInput) (out contact.Reminder, err error) {
	err = s.write(func(v *view) error {
		out, err = v.CreateReminder(ctx, in)
		return err
	})
	return out, err
}

func (s *Store) UpdateReminder(ctx context.Context, id int64, in contact.ReminderInput) (out contact.Reminder, err error) {
	err = s.write(func(v *view) error {
		out, err = v.UpdateReminder(ctx, id, in)
		return err
	})
	return out, err
}

func (s *Store) DeleteReminder(ctx context.Context, id int64) error {
	return s.write(func(v *view) error {
		return v.DeleteReminder(ctx, id)
	})
}

func copyInteraction(i contact.Interaction) contact.Interaction {
	i.Summary = copyString(i.Summary)
	i.Content = copyString(i.Content)
	return i
}

// newestFirst orders interactions by HappenedAt descending, then ID
// descending.
func newestFirst(a, b contact.Interaction) int {
	if n := b.HappenedAt.Compare(a.HappenedAt); n != 0 {
		return n
	}
	return cmp.Compare(b.ID, a.ID)
}

/* ----------------------------------------
	interactions
---------------------------------------- */

func (v *view) GetInteraction(_ context.Context, id int64) (contact.Interaction, error) {
	i, ok := v.d.interactions[id]
	if !ok {
		return contact.Interaction{}, fmt.Errorf("interaction %d: %w", id, store.ErrNotFound)
	}
	return copyInteraction(i), nil
}

func (v *view) ListInteractions(_ context.Context, filter store.InteractionFilter) ([]contact.Interaction, error) {
	var out []contact.Interaction
	for _, i := range v.d.interactions {
		if filter.ContactID != 0 && i.ContactID != filter.ContactID {
			continue
		}
		if filter.From != nil && i.HappenedAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && i.HappenedAt.After(*filter.To) {
			continue
		}
		out = append(out, copyInteraction(i))
	}
	slices.SortFunc(out, newestFirst)
	return out, nil
}

func (v *view) LatestInteractions(_ context.Context, contactIDs []int64) (map[int64]contact.Interaction, error) {
	wanted := make(map[int64]struct{}, len(contactIDs))
	for _, id := range contactIDs {
		wanted[id] = struct{}{}
	}
	out := make(map[int64]contact.Interaction)
	for _, i := range v.d.interactions {
		if _, ok := wanted[i.ContactID]; !ok {
			continue
		}
		if cur, ok := out[i.ContactID]; !ok || newestFirst(i, cur) < 0 {
			out[i.ContactID] = copyInteraction(i)
		}
	}
	return out, nil
}

func (v *view) CreateInteraction(_ context.Context, in contact.InteractionInput) (contact.Interaction, error) {
	if _, ok := v.d.contacts[in.ContactID]; !ok {
		return contact.Interaction{}, fmt.Errorf("contact %d: %w", in.ContactID, store.ErrNotFound)
	}
	v.d.nextInteractionID++
	i := interactionFromInput(v.d.nextInteractionID, in)
	i.CreatedAt = v.now()
	v.d.interactions[i.ID] = i
	return copyInteraction(i), nil
}

func (v *view) UpdateInteraction(_ context.Context, id int64, in contact.InteractionInput) (contact.Interaction, error) {
	current, ok := v.d.interactions[id]
	if !ok {
		return contact.Interaction{}, fmt.Errorf("interaction %d: %w", id, store.ErrNotFound)
	}
	i := interactionFromInput(id, in)
	i.ContactID = current.ContactID
	i.CreatedAt = current.CreatedAt
	v.d.interactions[id] = i
	return copyInteraction(i), nil
}

func (v *view) DeleteInteraction(_ context.Context, id int64) error {
	if _, ok := v.d.interactions[id]; !ok {
		return fmt.Errorf("interaction %d: %w", id, store.ErrNotFound)
	}
	delete(v.d.interactions, id)
	return nil
}

func (v *view) SyncLastInteracted(_ context.Context, contactID int64) error {
	c, ok := v.d.contacts[contactID]
	if !ok {
		return fmt.Errorf("contact %d: %w", contactID, store.ErrNotFound)
	}
	var latest *time.Time
	for _, i := range v.d.interactions {
		if i.ContactID == contactID && (latest == nil || i.HappenedAt.After(*latest)) {
			t := i.HappenedAt
			latest = &t
		}
	}
	c.LastInteractedAt = latest
	c.UpdatedAt = v.now()
	v.d.contacts[contactID] = c
	return nil
}

func interactionFromInput(id int64, in contact.InteractionInput) contact.Interaction {
	return copyInteraction(contact.Interaction{
		ID:         id,
		ContactID:  in.ContactID,
		Type:       in.Type,
		Summary:    in.Summary,
		Content:    in.Content,
		HappenedAt: in.HappenedAt,
	})
}

/* ----------------------------------------
	reminders
---------------------------------------- */

func (v *view) GetReminder(_ context.Context, id int64) (contact.Reminder, error) {
	r, ok := v.d.reminders[id]
	if !ok {
		return contact.Reminder{}, fmt.Errorf("reminder %d: %w", id, store.ErrNotFound)
	}
	return r, nil
}

func (v *view) ListReminders(_ context.Context, filter store.ReminderFilter) ([]contact.Reminder, error) {
	var out []contact.Reminder
	for _, r := range v.d.reminders {
		if filter.From != nil && r.RemindAt.Before(filter.From.Time) {
			continue
		}
		if filter.To != nil && r.RemindAt.After(filter.To.Time) {
			continue
		}
		if filter.Done != nil && r.Done != *filter.Done {
			continue
		}
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b contact.Reminder) int {
		if n := a.RemindAt.Compare(b.RemindAt.Time); n != 0 {
			return n
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (v *view) CreateReminder(_ context.Context, in contact.ReminderInput) (contact.Reminder, error) {
	if _, ok := v.d.contacts[in.ContactID]; !ok {
		return contact.Reminder{}, fmt.Errorf("contact %d: %w", in.ContactID, store.ErrNotFound)
	}
	v.d.nextReminderID++
	r := contact.Reminder{
		ID:        v.d.nextReminderID,
		ContactID: in.ContactID,
		RemindAt:  in.RemindAt,
		Content:   in.Content,
		Done:      in.Done,
		CreatedAt: v.now(),
	}
	v.d.reminders[r.ID] = r
	return r, nil
}

func (v *view) UpdateReminder(_ context.Context, id int64, in contact.ReminderInput) (contact.Reminder, error) {
	r, ok := v.d.reminders[id]
	if !ok {
		return contact.Reminder{}, fmt.Errorf("reminder %d: %w", id, store.ErrNotFound)
	}
	r.RemindAt = in.RemindAt
	r.Content = in.Content
	r.Done = in.Done
	v.d.reminders[id] = r
	return r, nil
}

func (v *view) DeleteReminder(_ context.Context, id int64) error {
	if _, ok := v.d.reminders[id]; !ok {
		return fmt.Errorf("reminder %d: %w", id, store.ErrNotFound)
	}
	delete(v.d.reminders, id)
	return nil
}
