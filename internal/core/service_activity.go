package core

import (
	"context"
	"time"

	"github.com/JonMunkholm/contacts/internal/contact"
	"github.com/JonMunkholm/contacts/internal/store"
)

// InteractionQuery filters ListInteractions. From and To are inclusive
// bounds on happened_at.
type InteractionQuery struct {
	ContactID int64
	From      *time.Time
	To        *time.Time
}

// ReminderQuery filters ListReminders.
type ReminderQuery struct {
	From *contact.Date
	To   *contact.Date
	Done *bool
}

/* ----------------------------------------
	Interactions
---------------------------------------- */

// CreateInteraction records an interaction and moves the contact's
// last_interacted_at forward when it is the newest one.
func (s *Service) CreateInteraction(ctx context.Context, in contact.InteractionInput) (contact.Interaction, error) {
	in, err := contact.ValidateInteraction(in)
	if err != nil {
		return contact.Interaction{}, err
	}

	var out contact.Interaction
	err = s.store.InTx(ctx, func(tx store.Store) error {
		out, err = tx.CreateInteraction(ctx, in)
		if err != nil {
			return translate(err, ErrContactNotFound, nil)
		}
		return tx.SyncLastInteracted(ctx, out.ContactID)
	})
	return out, err
}

// ListInteractions returns interactions newest first.
func (s *Service) ListInteractions(ctx context.Context, q InteractionQuery) ([]contact.Interaction, error) {
	if q.From != nil && q.To != nil && q.From.After(*q.To) {
		return nil, &QueryError{Message: "from must not be after to"}
	}
	return s.store.ListInteractions(ctx, store.InteractionFilter{
		ContactID: q.ContactID,
		From:      q.From,
		To:        q.To,
	})
}

// UpdateInteraction applies p and recomputes the contact's
// last_interacted_at.
func (s *Service) UpdateInteraction(ctx context.Context, id int64, p contact.InteractionPatch) (contact.Interaction, error) {
	var out contact.Interaction
	err := s.store.InTx(ctx, func(tx store.Store) error {
		current, err := tx.GetInteraction(ctx, id)
		if err != nil {
			return translate(err, ErrInteractionNotFound, nil)
		}
		in, err := contact.ValidateInteraction(p.Apply(current.Input()))
		if err != nil {
			return err
		}
		out, err = tx.UpdateInteraction(ctx, id, in)
		if err != nil {
			return translate(err, ErrInteractionNotFound, nil)
		}
		return tx.SyncLastInteracted(ctx, current.ContactID)
	})
	return out, err
}

// DeleteInteraction removes an interaction. The contact's
// last_interacted_at falls back to its next newest interaction, or null.
func (s *Service) DeleteInteraction(ctx context.Context, id int64) error {
	return s.store.InTx(ctx, func(tx store.Store) error {
		current, err := tx.GetInteraction(ctx, id)
		if err != nil {
			return translate(err, ErrInteractionNotFound, nil)
		}
		if err := tx.DeleteInteraction(ctx, id); err != nil {
			return translate(err, ErrInteractionNotFound, nil)
		}
		return tx.SyncLastInteracted(ctx, current.ContactID)
	})
}

/* ----------------------------------------
	Reminders
---------------------------------------- */

// CreateReminder stores a reminder for an existing contact.
func (s *Service) CreateReminder(ctx context.Context, in contact.ReminderInput) (contact.Reminder, error) {
	in, err := contact.ValidateReminder(in)
	if err != nil {
		return contact.Reminder{}, err
	}
	r, err := s.store.CreateReminder(ctx, in)
	if err != nil {
		return contact.Reminder{}, translate(err, ErrContactNotFound, nil)
	}
	return r, nil
}

// ListReminders returns reminders ordered by date.
func (s *Service) ListReminders(ctx context.Context, q ReminderQuery) ([]contact.Reminder, error) {
	if q.From != nil && q.To != nil && q.From.After(q.To.Time) {
		return nil, &QueryError{Message: "from must not be after to"}
	}
	return s.store.ListReminders(ctx, store.ReminderFilter{From: q.From, To: q.To, Done: q.Done})
}

// UpdateReminder applies p to the stored reminder.
func (s *Service) UpdateReminder(ctx context.Context, id int64, p contact.ReminderPatch) (contact.Reminder, error) {
	var out contact.Reminder
	err := s.store.InTx(ctx, func(tx store.Store) error {
		current, err := tx.GetReminder(ctx, id)
		if err != nil {
			return translate(err, ErrReminderNotFound, nil)
		}
		in, err := contact.ValidateReminder(p.Apply(current.Input()))
		if err != nil {
			return err
		}
		out, err = tx.UpdateReminder(ctx, id, in)
		return translate(err, ErrReminderNotFound, nil)
	})
	return out, err
}

// DeleteReminder removes a reminder.
func (s *Service) DeleteReminder(ctx context.Context, id int64) error {
	return translate(s.store.DeleteReminder(ctx, id), ErrReminderNotFound, nil)
}
