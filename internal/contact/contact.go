// Package contact defines the base contact record and the rules applied to
// contact input before it reaches storage.
package contact

import (
	"encoding/json"
	"time"
)

// Contact is a stored contact. Custom field values live beside it, keyed by
// contact ID.
type Contact struct {
	ID               int64      `json:"id"`
	Name             string     `json:"name"`
	Company          *string    `json:"company"`
	Title            *string    `json:"title"`
	Email            *string    `json:"email"`
	Phone            *string    `json:"phone"`
	Tags             []string   `json:"tags"`
	Note             *string    `json:"note"`
	LastInteractedAt *time.Time `json:"last_interacted_at"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// Input returns the writable part of c.
func (c Contact) Input() Input {
	return Input{
		Name:             c.Name,
		Company:          c.Company,
		Title:            c.Title,
		Email:            c.Email,
		Phone:            c.Phone,
		Tags:             c.Tags,
		Note:             c.Note,
		LastInteractedAt: c.LastInteractedAt,
	}
}

// HasTag reports whether the contact carries tag.
func (c Contact) HasTag(tag string) bool {
	for _, t := range c.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Input holds the base fields written on create or update.
type Input struct {
	Name             string     `json:"name" validate:"required,max=60"`
	Company          *string    `json:"company" validate:"omitempty,max=120"`
	Title            *string    `json:"title" validate:"omitempty,max=120"`
	Email            *string    `json:"email" validate:"omitempty,max=255,contact_email"`
	Phone            *string    `json:"phone" validate:"omitempty,min=7,max=32,contact_phone"`
	Tags             []string   `json:"tags" validate:"omitempty,max=20,dive,min=1,max=30"`
	Note             *string    `json:"note"`
	LastInteractedAt *time.Time `json:"last_interacted_at"`
}

// Optional tracks whether a JSON field was present at all, so a patch can
// tell "set to null" apart from "not sent".
type Optional[T any] struct {
	Set   bool
	Value *T
}

// UnmarshalJSON marks the field as set. A JSON null leaves Value nil.
func (o *Optional[T]) UnmarshalJSON(b []byte) error {
	o.Set = true
	if string(b) == "null" {
		o.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	o.Value = &v
	return nil
}

// Patch is a partial update. Only fields that were present in the request
// are applied.
type Patch struct {
	Name             Optional[string]    `json:"name"`
	Company          Optional[string]    `json:"company"`
	Title            Optional[string]    `json:"title"`
	Email            Optional[string]    `json:"email"`
	Phone            Optional[string]    `json:"phone"`
	Tags             Optional[[]string]  `json:"tags"`
	Note             Optional[string]    `json:"note"`
	LastInteractedAt Optional[time.Time] `json:"last_interacted_at"`
}

// Apply overlays the set fields of p on base.
func (p Patch) Apply(base Input) Input {
	if p.Name.Set {
		base.Name = ""
		if p.Name.Value != nil {
			base.Name = *p.Name.Value
		}
	}
	applyString(&base.Company, p.Company)
	applyString(&base.Title, p.Title)
	applyString(&base.Email, p.Email)
	applyString(&base.Phone, p.Phone)
	applyString(&base.Note, p.Note)
	if p.Tags.Set {
		base.Tags = nil
		if p.Tags.Value != nil {
			base.Tags = *p.Tags.Value
		}
	}
	if p.LastInteractedAt.Set {
		base.LastInteractedAt = p.LastInteractedAt.Value
	}
	return base
}

func applyString(dst **string, o Optional[string]) {
	if o.Set {
		*dst = o.Value
	}
}
