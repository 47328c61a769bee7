// Package pgstore implements store.Store on PostgreSQL using pgx.
package pgstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/contacts/internal/contact"
	"github.com/JonMunkholm/contacts/internal/fields"
	"github.com/JonMunkholm/contacts/internal/store"
)

// DBTX is the subset of pgx shared by pools and transactions.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Postgres error codes mapped to store errors.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

// Store is a store.Store backed by a pgx pool.
type Store struct {
	pool *pgxpool.Pool
	db   DBTX
	inTx bool
}

var _ store.Store = (*Store)(nil)

// New returns a Store using pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, db: pool}
}

// InTx implements store.Store.
func (s *Store) InTx(ctx context.Context, fn func(tx store.Store) error) error {
	if s.inTx {
		return fn(s)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	defer tx.Rollback(ctx) // No-op if already committed

	if err := fn(&Store{pool: s.pool, db: tx, inTx: true}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit transaction")
	}
	return nil
}

// Ping implements store.Store.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func mapError(err error, what string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return errors.Wrap(store.ErrNotFound, what)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation:
			return errors.Wrapf(store.ErrConflict, "%s (%s)", what, pgErr.ConstraintName)
		case codeForeignKeyViolation:
			return errors.Wrap(store.ErrNotFound, what)
		}
	}
	return errors.Wrap(err, what)
}

/* ----------------------------------------
	field definitions
---------------------------------------- */

const definitionColumns = `key, label, type, options, required, created_at`

func scanDefinition(row pgx.Row) (fields.Definition, error) {
	var (
		def     fields.Definition
		typ     string
		options []byte
	)
	if err := row.Scan(&def.Key, &def.Label, &typ, &options, &def.Required, &def.CreatedAt); err != nil {
		return fields.Definition{}, err
	}
	def.Type = fields.Type(typ)
	if len(options) > 0 {
		if err := json.Unmarshal(options, &def.Options); err != nil {
			return fields.Definition{}, errors.Wrap(err, "decode options")
		}
	}
	return def, nil
}

func jsonParam(v []string) (any, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (s *Store) ListDefinitions(ctx context.Context) ([]fields.Definition, error) {
	rows, err := s.db.Query(ctx, `SELECT `+definitionColumns+` FROM field_definitions ORDER BY key`)
	if err != nil {
		return nil, mapError(err, "list field definitions")
	}
	defer rows.Close()

	var out []fields.Definition
	for rows.Next() {
		def, err := scanDefinition(rows)
		if err != nil {
			return nil, mapError(err, "scan field definition")
		}
		out = append(out, def)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err, "list field definitions")
	}
	return out, nil
}

func (s *Store) GetDefinition(ctx context.Context, key string) (fields.Definition, error) {
	row := s.db.QueryRow(ctx, `SELECT `+definitionColumns+` FROM field_definitions WHERE key = $1`, key)
	def, err := scanDefinition(row)
	if err != nil {
		return fields.Definition{}, mapError(err, fmt.Sprintf("get field %q", key))
	}
	return def, nil
}

func (s *Store) CreateDefinition(ctx context.Context, def fields.Definition) (fields.Definition, error) {
	options, err := jsonParam(def.Options)
	if err != nil {
		return fields.Definition{}, errors.Wrap(err, "encode options")
	}
	row := s.db.QueryRow(ctx, `
		INSERT INTO field_definitions (key, label, type, options, required)
		VALUES ($1, $2, $3, $4::jsonb, $5)
		RETURNING `+definitionColumns,
		def.Key, def.Label, string(def.Type), options, def.Required,
	)
	created, err := scanDefinition(row)
	if err != nil {
		return fields.Definition{}, mapError(err, fmt.Sprintf("create field %q", def.Key))
	}
	return created, nil
}

func (s *Store) UpdateDefinition(ctx context.Context, oldKey string, def fields.Definition) (fields.Definition, error) {
	options, err := jsonParam(def.Options)
	if err != nil {
		return fields.Definition{}, errors.Wrap(err, "encode options")
	}
	row := s.db.QueryRow(ctx, `
		UPDATE field_definitions
		SET key = $2, label = $3, type = $4, options = $5::jsonb, required = $6
		WHERE key = $1
		RETURNING `+definitionColumns,
		oldKey, def.Key, def.Label, string(def.Type), options, def.Required,
	)
	updated, err := scanDefinition(row)
	if err != nil {
		return fields.Definition{}, mapError(err, fmt.Sprintf("update field %q", oldKey))
	}

	if def.Key != oldKey {
		_, err := s.db.Exec(ctx,
			`UPDATE contact_field_values SET field_key = $2 WHERE field_key = $1`,
			oldKey, def.Key,
		)
		if err != nil {
			return fields.Definition{}, mapError(err, fmt.Sprintf("rename values of field %q", oldKey))
		}
	}
	return updated, nil
}

func (s *Store) DeleteDefinition(ctx context.Context, key string) error {
	var inUse bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM contact_field_values WHERE field_key = $1)`, key,
	).Scan(&inUse)
	if err != nil {
		return mapError(err, fmt.Sprintf("check usage of field %q", key))
	}
	if inUse {
		return errors.Wrapf(store.ErrFieldInUse, "field %q", key)
	}

	tag, err := s.db.Exec(ctx, `DELETE FROM field_definitions WHERE key = $1`, key)
	if err != nil {
		return mapError(err, fmt.Sprintf("delete field %q", key))
	}
	if tag.RowsAffected() == 0 {
		return errors.Wrapf(store.ErrNotFound, "field %q", key)
	}
	return nil
}

/* ----------------------------------------
	contacts
---------------------------------------- */

const contactColumns = `id, name, company, title, email, phone, tags, note, last_interacted_at, created_at, updated_at`

func scanContact(row pgx.Row) (contact.Contact, error) {
	var (
		c                                  contact.Contact
		company, title, email, phone, note pgtype.Text
		tags                               []byte
		lastInteracted                     pgtype.Timestamptz
	)
	err := row.Scan(
		&c.ID, &c.Name, &company, &title, &email, &phone,
		&tags, &note, &lastInteracted, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return contact.Contact{}, err
	}

	c.Company = fromPgText(company)
	c.Title = fromPgText(title)
	c.Email = fromPgText(email)
	c.Phone = fromPgText(phone)
	c.Note = fromPgText(note)
	if lastInteracted.Valid {
		t := lastInteracted.Time
		c.LastInteractedAt = &t
	}
	if len(tags) > 0 {
		if err := json.Unmarshal(tags, &c.Tags); err != nil {
			return contact.Contact{}, errors.Wrap(err, "decode tags")
		}
	}
	return c, nil
}

func fromPgText(t pgtype.Text) *string {
	if !t.Valid {
		return nil
	}
	s := t.String
	return &s
}

func toPgText(s *string) pgtype.Text {
	if s == nil {
		return pgtype.Text{}
	}
	return pgtype.Text{String: *s, Valid: true}
}

func toPgTimestamptz(t *time.Time) pgtype.Timestamptz {
	if t == nil {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: *t, Valid: true}
}

func (s *Store) queryContacts(ctx context.Context, what, query string, args ...any) ([]contact.Contact, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, what)
	}
	defer rows.Close()

	var out []contact.Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, mapError(err, what)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err, what)
	}
	return out, nil
}

func (s *Store) GetContact(ctx context.Context, id int64) (contact.Contact, error) {
	row := s.db.QueryRow(ctx, `SELECT `+contactColumns+` FROM contacts WHERE id = $1`, id)
	c, err := scanContact(row)
	if err != nil {
		return contact.Contact{}, mapError(err, fmt.Sprintf("get contact %d", id))
	}
	return c, nil
}

// listContactsQuery builds the filtered, paginated contact query.
func listContactsQuery(filter store.ContactFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	next := func(v any) int {
		args = append(args, v)
		return len(args)
	}

	if filter.Keyword != "" {
		n := next("%" + strings.ToLower(filter.Keyword) + "%")
		var ors []string
		for _, col := range []string{"name", "company", "title", "email", "phone", "note"} {
			ors = append(ors, fmt.Sprintf("lower(%s) LIKE $%d", col, n))
		}
		conds = append(conds, "("+strings.Join(ors, " OR ")+")")
	}
	for _, tag := range filter.Tags {
		conds = append(conds, fmt.Sprintf("tags ? $%d", next(tag)))
	}
	if filter.Before != nil {
		conds = append(conds, fmt.Sprintf("last_interacted_at < $%d", next(*filter.Before)))
	}
	if filter.After != nil {
		conds = append(conds, fmt.Sprintf("last_interacted_at > $%d", next(*filter.After)))
	}

	var b strings.Builder
	b.WriteString(`SELECT ` + contactColumns + ` FROM contacts`)
	if len(conds) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(conds, " AND "))
	}
	b.WriteString(" ORDER BY name, id")
	if filter.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT $%d", next(filter.Limit))
	}
	if filter.Offset > 0 {
		fmt.Fprintf(&b, " OFFSET $%d", next(filter.Offset))
	}
	return b.String(), args
}

func (s *Store) ListContacts(ctx context.Context, filter store.ContactFilter) ([]contact.Contact, error) {
	query, args := listContactsQuery(filter)
	return s.queryContacts(ctx, "list contacts", query, args...)
}

func (s *Store) FindByAlternateKeys(ctx context.Context, emails, phones []string) ([]contact.Contact, error) {
	if len(emails) == 0 && len(phones) == 0 {
		return nil, nil
	}
	if emails == nil {
		emails = []string{}
	}
	if phones == nil {
		phones = []string{}
	}
	return s.queryContacts(ctx, "find contacts by email or phone",
		`SELECT `+contactColumns+` FROM contacts
		WHERE email = ANY($1) OR phone = ANY($2)
		ORDER BY id`,
		emails, phones,
	)
}

func (s *Store) CreateContact(ctx context.Context, in contact.Input) (contact.Contact, error) {
	tags, err := jsonParam(in.Tags)
	if err != nil {
		return contact.Contact{}, errors.Wrap(err, "encode tags")
	}
	row := s.db.QueryRow(ctx, `
		INSERT INTO contacts (name, company, title, email, phone, tags, note, last_interacted_at)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7, $8)
		RETURNING `+contactColumns,
		in.Name, toPgText(in.Company), toPgText(in.Title), toPgText(in.Email), toPgText(in.Phone),
		tags, toPgText(in.Note), toPgTimestamptz(in.LastInteractedAt),
	)
	c, err := scanContact(row)
	if err != nil {
		return contact.Contact{}, mapError(err, "create contact")
	}
	return c, nil
}

func (s *Store) UpdateContact(ctx context.Context, id int64, in contact.Input) (contact.Contact, error) {
	tags, err := jsonParam(in.Tags)
	if err != nil {
		return contact.Contact{}, errors.Wrap(err, "encode tags")
	}
	row := s.db.QueryRow(ctx, `
		UPDATE contacts
		SET name = $2, company = $3, title = $4, email = $5, phone = $6,
		    tags = $7::jsonb, note = $8, last_interacted_at = $9, updated_at = now()
		WHERE id = $1
		RETURNING `+contactColumns,
		id, in.Name, toPgText(in.Company), toPgText(in.Title), toPgText(in.Email), toPgText(in.Phone),
		tags, toPgText(in.Note), toPgTimestamptz(in.LastInteractedAt),
	)
	c, err := scanContact(row)
	if err != nil {
		return contact.Contact{}, mapError(err, fmt.Sprintf("update contact %d", id))
	}
	return c, nil
}

func (s *Store) DeleteContact(ctx context.Context, id int64) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM contacts WHERE id = $1`, id)
	if err != nil {
		return mapError(err, fmt.Sprintf("delete contact %d", id))
	}
	if tag.RowsAffected() == 0 {
		return errors.Wrapf(store.ErrNotFound, "contact %d", id)
	}
	return nil
}

/* ----------------------------------------
	custom values
---------------------------------------- */

func (s *Store) LoadCustomValues(ctx context.Context, contactIDs []int64) (map[int64]fields.Values, error) {
	out := make(map[int64]fields.Values)
	if len(contactIDs) == 0 {
		return out, nil
	}

	rows, err := s.db.Query(ctx,
		`SELECT contact_id, field_key, value FROM contact_field_values WHERE contact_id = ANY($1)`,
		contactIDs,
	)
	if err != nil {
		return nil, mapError(err, "load custom values")
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id    int64
			key   string
			value pgtype.Text
		)
		if err := rows.Scan(&id, &key, &value); err != nil {
			return nil, mapError(err, "scan custom value")
		}
		vals, ok := out[id]
		if !ok {
			vals = make(fields.Values)
			out[id] = vals
		}
		vals[key] = fromPgText(value)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err, "load custom values")
	}
	return out, nil
}

func (s *Store) ValuesForKey(ctx context.Context, key string) ([]*string, error) {
	rows, err := s.db.Query(ctx, `SELECT value FROM contact_field_values WHERE field_key = $1`, key)
	if err != nil {
		return nil, mapError(err, fmt.Sprintf("load values of field %q", key))
	}
	defer rows.Close()

	var out []*string
	for rows.Next() {
		var value pgtype.Text
		if err := rows.Scan(&value); err != nil {
			return nil, mapError(err, "scan custom value")
		}
		out = append(out, fromPgText(value))
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err, fmt.Sprintf("load values of field %q", key))
	}
	return out, nil
}

func (s *Store) UpsertCustomValue(ctx context.Context, contactID int64, key string, value *string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO contact_field_values (contact_id, field_key, value)
		VALUES ($1, $2, $3)
		ON CONFLICT (contact_id, field_key) DO UPDATE SET value = EXCLUDED.value`,
		contactID, key, toPgText(value),
	)
	if err != nil {
		return mapError(err, fmt.Sprintf("store field %q for contact %d", key, contactID))
	}
	return nil
}
