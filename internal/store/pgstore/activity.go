package pgstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/contacts/internal/contact"
	"github.com/JonMunkholm/contacts/internal/store"
)

/* ----------------------------------------
	interactions
---------------------------------------- */

const interactionColumns = `id, contact_id, type, summary, content, happened_at, created_at`

func scanInteraction(row pgx.Row) (contact.Interaction, error) {
	var (
		i                contact.Interaction
		typ              string
		summary, content pgtype.Text
	)
	if err := row.Scan(&i.ID, &i.ContactID, &typ, &summary, &content, &i.HappenedAt, &i.CreatedAt); err != nil {
		return contact.Interaction{}, err
	}
	i.Type = contact.InteractionType(typ)
	i.Summary = fromPgText(summary)
	i.Content = fromPgText(content)
	return i, nil
}

func (s *Store) queryInteractions(ctx context.Context, what, query string, args ...any) ([]contact.Interaction, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, what)
	}
	defer rows.Close()

	var out []contact.Interaction
	for rows.Next() {
		i, err := scanInteraction(rows)
		if err != nil {
			return nil, mapError(err, what)
		}
		out = append(out, i)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err, what)
	}
	return out, nil
}

func (s *Store) GetInteraction(ctx context.Context, id int64) (contact.Interaction, error) {
	row := s.db.QueryRow(ctx, `SELECT `+interactionColumns+` FROM interactions WHERE id = $1`, id)
	i, err := scanInteraction(row)
	if err != nil {
		return contact.Interaction{}, mapError(err, fmt.Sprintf("get interaction %d", id))
	}
	return i, nil
}

func listInteractionsQuery(filter store.InteractionFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	next := func(v any) int {
		args = append(args, v)
		return len(args)
	}
	if filter.ContactID != 0 {
		conds = append(conds, fmt.Sprintf("contact_id = $%d", next(filter.ContactID)))
	}
	if filter.From != nil {
		conds = append(conds, fmt.Sprintf("happened_at >= $%d", next(*filter.From)))
	}
	if filter.To != nil {
		conds = append(conds, fmt.Sprintf("happened_at <= $%d", next(*filter.To)))
	}

	query := `SELECT ` + interactionColumns + ` FROM interactions`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	return query + " ORDER BY happened_at DESC, id DESC", args
}

func (s *Store) ListInteractions(ctx context.Context, filter store.InteractionFilter) ([]contact.Interaction, error) {
	query, args := listInteractionsQuery(filter)
	return s.queryInteractions(ctx, "list interactions", query, args...)
}

func (s *Store) LatestInteractions(ctx context.Context, contactIDs []int64) (map[int64]contact.Interaction, error) {
	out := make(map[int64]contact.Interaction)
	if len(contactIDs) == 0 {
		return out, nil
	}
	latest, err := s.queryInteractions(ctx, "load latest interactions",
		`SELECT DISTINCT ON (contact_id) `+interactionColumns+` FROM interactions
		WHERE contact_id = ANY($1)
		ORDER BY contact_id, happened_at DESC, id DESC`,
		contactIDs,
	)
	if err != nil {
		return nil, err
	}
	for _, i := range latest {
		out[i.ContactID] = i
	}
	return out, nil
}

func (s *Store) CreateInteraction(ctx context.Context, in contact.InteractionInput) (contact.Interaction, error) {
	row := s.db.QueryRow(ctx, `
		INSERT INTO interactions (contact_id, type, summary, content, happened_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+interactionColumns,
		in.ContactID, string(in.Type), toPgText(in.Summary), toPgText(in.Content), in.HappenedAt,
	)
	i, err := scanInteraction(row)
	if err != nil {
		return contact.Interaction{}, mapError(err, fmt.Sprintf("create interaction for contact %d", in.ContactID))
	}
	return i, nil
}

func (s *Store) UpdateInteraction(ctx context.Context, id int64, in contact.InteractionInput) (contact.Interaction, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE interactions
		SET type = $2, summary = $3, content = $4, happened_at = $5
		WHERE id = $1
		RETURNING `+interactionColumns,
		id, string(in.Type), toPgText(in.Summary), toPgText(in.Content), in.HappenedAt,
	)
	i, err := scanInteraction(row)
	if err != nil {
		return contact.Interaction{}, mapError(err, fmt.Sprintf("update interaction %d", id))
	}
	return i, nil
}

func (s *Store) DeleteInteraction(ctx context.Context, id int64) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM interactions WHERE id = $1`, id)
	if err != nil {
		return mapError(err, fmt.Sprintf("delete interaction %d", id))
	}
	if tag.RowsAffected() == 0 {
		return errors.Wrapf(store.ErrNotFound, "interaction %d", id)
	}
	return nil
}

func (s *Store) SyncLastInteracted(ctx context.Context, contactID int64) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE contacts
		SET last_interacted_at = (SELECT max(happened_at) FROM interactions WHERE contact_id = $1),
		    updated_at = now()
		WHERE id = $1`,
		contactID,
	)
	if err != nil {
		return mapError(err, fmt.Sprintf("sync last interaction of contact %d", contactID))
	}
	if tag.RowsAffected() == 0 {
		return errors.Wrapf(store.ErrNotFound, "contact %d", contactID)
	}
	return nil
}

/* ----------------------------------------
	reminders
---------------------------------------- */

const reminderColumns = `id, contact_id, remind_at, content, done, created_at`

func scanReminder(row pgx.Row) (contact.Reminder, error) {
	var (
		r        contact.Reminder
		remindAt pgtype.Date
	)
	if err := row.Scan(&r.ID, &r.ContactID, &remindAt, &r.Content, &r.Done, &r.CreatedAt); err != nil {
		return contact.Reminder{}, err
	}
	r.RemindAt = contact.NewDate(remindAt.Time)
	return r, nil
}

func toPgDate(d contact.Date) pgtype.Date {
	return pgtype.Date{Time: d.Time, Valid: true}
}

func listRemindersQuery(filter store.ReminderFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	next := func(v any) int {
		args = append(args, v)
		return len(args)
	}
	if filter.From != nil {
		conds = append(conds, fmt.Sprintf("remind_at >= $%d", next(toPgDate(*filter.From))))
	}
	if filter.To != nil {
		conds = append(conds, fmt.Sprintf("remind_at <= $%d", next(toPgDate(*filter.To))))
	}
	if filter.Done != nil {
		conds = append(conds, fmt.Sprintf("done = $%d", next(*filter.Done)))
	}

	query := `SELECT ` + reminderColumns + ` FROM reminders`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	return query + " ORDER BY remind_at, id", args
}

func (s *Store) GetReminder(ctx context.Context, id int64) (contact.Reminder, error) {
	row := s.db.QueryRow(ctx, `SELECT `+reminderColumns+` FROM reminders WHERE id = $1`, id)
	r, err := scanReminder(row)
	if err != nil {
		return contact.Reminder{}, mapError(err, fmt.Sprintf("get reminder %d", id))
	}
	return r, nil
}

func (s *Store) ListReminders(ctx context.Context, filter store.ReminderFilter) ([]contact.Reminder, error) {
	query, args := listRemindersQuery(filter)
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, "list reminders")
	}
	defer rows.Close()

	var out []contact.Reminder
	for rows.Next() {
		r, err := scanReminder(rows)
		if err != nil {
			return nil, mapError(err, "scan reminder")
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err, "list reminders")
	}
	return out, nil
}

func (s *Store) CreateReminder(ctx context.Context, in contact.ReminderInput) (contact.Reminder, error) {
	row := s.db.QueryRow(ctx, `
		INSERT INTO reminders (contact_id, remind_at, content, done)
		VALUES ($1, $2, $3, $4)
		RETURNING `+reminderColumns,
		in.ContactID, toPgDate(in.RemindAt), in.Content, in.Done,
	)
	r, err := scanReminder(row)
	if err != nil {
		return contact.Reminder{}, mapError(err, fmt.Sprintf("create reminder for contact %d", in.ContactID))
	}
	return r, nil
}

func (s *Store) UpdateReminder(ctx context.Context, id int64, in contact.ReminderInput) (contact.Reminder, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE reminders
		SET remind_at = $2, content = $3, done = $4
		WHERE id = $1
		RETURNING `+reminderColumns,
		id, toPgDate(in.RemindAt), in.Content, in.Done,
	)
	r, err := scanReminder(row)
	if err != nil {
		return contact.Reminder{}, mapError(err, fmt.Sprintf("update reminder %d", id))
	}
	return r, nil
}

func (s *Store) DeleteReminder(ctx context.Context, id int64) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM reminders WHERE id = $1`, id)
	if err != nil {
		return mapError(err, fmt.Sprintf("delete reminder %d", id))
	}
	if tag.RowsAffected() == 0 {
		return errors.Wrapf(store.ErrNotFound, "reminder %d", id)
	}
	return nil
}
