package contact

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire format of a Date.
const DateLayout = "2006-01-02"

// Date is a calendar day. The time of day is always midnight UTC.
type Date struct {
	time.Time
}

// NewDate truncates t to its calendar day.
func NewDate(t time.Time) Date {
	y, m, d := t.Date()
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q", s)
	}
	return Date{t}, nil
}

func (d Date) String() string {
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Reminder is a dated to-do attached to a contact.
type Reminder struct {
	ID        int64     `json:"id"`
	ContactID int64     `json:"contact_id"`
	RemindAt  Date      `json:"remind_at"`
	Content   string    `json:"content"`
	Done      bool      `json:"done"`
	CreatedAt time.Time `json:"created_at"`
}

// Input returns the writable part of r.
func (r Reminder) Input() ReminderInput {
	return ReminderInput{
		ContactID: r.ContactID,
		RemindAt:  r.RemindAt,
		Content:   r.Content,
		Done:      r.Done,
	}
}

// ReminderInput holds the fields written on create or update.
type ReminderInput struct {
	ContactID int64  `json:"contact_id" validate:"gt=0"`
	RemindAt  Date   `json:"remind_at" validate:"required"`
	Content   string `json:"content" validate:"required"`
	Done      bool   `json:"done"`
}

// ReminderPatch is a partial reminder update.
type ReminderPatch struct {
	RemindAt Optional[Date]   `json:"remind_at"`
	Content  Optional[string] `json:"content"`
	Done     Optional[bool]   `json:"done"`
}

// Apply overlays the set fields of p on base. Null values clear the field.
func (p ReminderPatch) Apply(base ReminderInput) ReminderInput {
	if p.RemindAt.Set {
		base.RemindAt = Date{}
		if p.RemindAt.Value != nil {
			base.RemindAt = *p.RemindAt.Value
		}
	}
	if p.Content.Set {
		base.Content = ""
		if p.Content.Value != nil {
			base.Content = *p.Content.Value
		}
	}
	if p.Done.Set {
		base.Done = p.Done.Value != nil && *p.Done.Value
	}
	return base
}

// ValidateReminder checks in.
func ValidateReminder(in ReminderInput) (ReminderInput, error) {
	if err := validate.Struct(in); err != nil {
		return in, translate(err)
	}
	return in, nil
}
