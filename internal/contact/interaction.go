package contact

import (
	"time"
)

// InteractionType categorizes an interaction.
type InteractionType string

const (
	InteractionMeeting InteractionType = "meeting"
	InteractionCall    InteractionType = "call"
	InteractionEmail   InteractionType = "email"
	InteractionOther   InteractionType = "other"
)

// Interaction is a recorded touch point with a contact. The newest
// HappenedAt of a contact's interactions is mirrored into the contact's
// LastInteractedAt.
type Interaction struct {
	ID         int64           `json:"id"`
	ContactID  int64           `json:"contact_id"`
	Type       InteractionType `json:"type"`
	Summary    *string         `json:"summary"`
	Content    *string         `json:"content"`
	HappenedAt time.Time       `json:"happened_at"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Input returns the writable part of i.
func (i Interaction) Input() InteractionInput {
	return InteractionInput{
		ContactID:  i.ContactID,
		Type:       i.Type,
		Summary:    i.Summary,
		Content:    i.Content,
		HappenedAt: i.HappenedAt,
	}
}

// InteractionInput holds the fields written on create or update.
type InteractionInput struct {
	ContactID  int64           `json:"contact_id" validate:"gt=0"`
	Type       InteractionType `json:"type" validate:"required,oneof=meeting call email other"`
	Summary    *string         `json:"summary"`
	Content    *string         `json:"content"`
	HappenedAt time.Time       `json:"happened_at" validate:"required"`
}

// InteractionPatch is a partial interaction update. The contact cannot be
// changed.
type InteractionPatch struct {
	Type       Optional[InteractionType] `json:"type"`
	Summary    Optional[string]          `json:"summary"`
	Content    Optional[string]          `json:"content"`
	HappenedAt Optional[time.Time]       `json:"happened_at"`
}

// Apply overlays the set fields of p on base. A null type or happened_at
// clears the field, which ValidateInteraction then rejects.
func (p InteractionPatch) Apply(base InteractionInput) InteractionInput {
	if p.Type.Set {
		base.Type = ""
		if p.Type.Value != nil {
			base.Type = *p.Type.Value
		}
	}
	applyString(&base.Summary, p.Summary)
	applyString(&base.Content, p.Content)
	if p.HappenedAt.Set {
		base.HappenedAt = time.Time{}
		if p.HappenedAt.Value != nil {
			base.HappenedAt = *p.HappenedAt.Value
		}
	}
	return base
}

// ValidateInteraction checks in. Blank summary and content become nil.
func ValidateInteraction(in InteractionInput) (InteractionInput, error) {
	in.Summary = blankToNil(in.Summary)
	in.Content = blankToNil(in.Content)
	if err := validate.Struct(in); err != nil {
		return in, translate(err)
	}
	return in, nil
}

// LatestSummary renders the export summary of i: the timestamp, the type
// and the summary when present, separated by spaces.
func (i Interaction) LatestSummary(format func(time.Time) string) string {
	s := format(i.HappenedAt) + " " + string(i.Type)
	if i.Summary != nil && *i.Summary != "" {
		s += " " + *i.Summary
	}
	return s
}
