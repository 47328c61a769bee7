// Package core provides the business logic for the contacts service.
//
// # Error Codes Reference
//
// This file defines user-friendly error messages with codes for support
// reference. Errors are first matched by kind (errors.Is against the
// sentinel errors of the fields, contact, importer and store packages),
// then by pattern against the error text.
//
// # Validation Errors (VAL001-VAL099)
//
// The message is the validation message itself, since it already names the
// offending field:
//
//	VAL001 - Invalid number        fields.ErrInvalidNumber
//	VAL002 - Invalid date          fields.ErrInvalidDate
//	VAL003 - Required field        fields.ErrRequiredFieldMissing
//	VAL004 - Invalid email         fields.ErrInvalidEmail
//	VAL005 - Invalid phone         fields.ErrInvalidPhone
//	VAL006 - Invalid option        fields.ErrInvalidOption
//	VAL007 - Invalid option list   fields.ErrInvalidOptionList
//	VAL008 - Invalid boolean       fields.ErrInvalidBool
//	VAL009 - Unknown custom field  fields.ErrUnknownField
//	VAL010 - Invalid contact       contact.ErrInvalid
//	VAL011 - Corrupt stored value  fields.ErrCorruptStoredValue
//	VAL012 - Invalid list query    ErrInvalidQuery
//
// # Field Administration Errors (FLD001-FLD099)
//
//	FLD001 - Field definition not found
//	FLD002 - Field key already exists
//	FLD003 - Field is assigned to existing contacts
//	FLD004 - Existing values incompatible with the edited definition
//	FLD005 - Invalid field definition
//
// # Import Errors (IMP001-IMP099)
//
//	IMP001 - Report expired or not found
//	IMP002 - Invalid import mode
//	IMP003 - Missing required columns
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large
//	FILE002 - File is not UTF-8
//	FILE003 - No header row
//	FILE004 - Unreadable or unsupported file
//	FILE005 - No file provided
//
// # Database Errors (DB001-DB099)
//
//	DB001 - Contact with the same email or phone already exists
//	DB002 - Contact not found
//	DB003 - Connection refused        pattern "connection refused"
//	DB004 - Connection reset          pattern "connection reset"
//	DB005 - Timeout                   pattern "timeout", "deadline exceeded"
//	DB006 - Deadlock                  pattern "deadlock"
//	DB007 - Interaction not found
//	DB008 - Reminder not found
//
// # Rate Limiting (RATE001-RATE099)
//
//	RATE001 - Too many imports in progress
//
// # Default Error (ERR000)
//
// Fallback when nothing matches. Check the application logs for the
// original error.
package core

import (
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/contacts/internal/contact"
	"github.com/JonMunkholm/contacts/internal/fields"
	"github.com/JonMunkholm/contacts/internal/importer"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

// errorKind maps a sentinel error to its user message. When detail is set
// the error's own message replaces msg.Message.
type errorKind struct {
	target error
	detail bool
	msg    UserMessage
}

// errorKinds is matched in order with errors.Is.
var errorKinds = []errorKind{
	/* ----------------------------------------
		Validation
	---------------------------------------- */
	{fields.ErrInvalidNumber, true, UserMessage{Action: "Use a plain decimal number", Code: "VAL001"}},
	{fields.ErrInvalidDate, true, UserMessage{Action: "Use the YYYY-MM-DD format", Code: "VAL002"}},
	{fields.ErrRequiredFieldMissing, true, UserMessage{Action: "Provide a value for every required field", Code: "VAL003"}},
	{fields.ErrInvalidEmail, true, UserMessage{Action: "Check the email address", Code: "VAL004"}},
	{fields.ErrInvalidPhone, true, UserMessage{Action: "Use digits, spaces and + ( ) . - only", Code: "VAL005"}},
	{fields.ErrInvalidOption, true, UserMessage{Action: "Pick one of the field's options", Code: "VAL006"}},
	{fields.ErrInvalidOptionList, true, UserMessage{Action: "Pick values from the field's options", Code: "VAL007"}},
	{fields.ErrInvalidBool, true, UserMessage{Action: "Use true or false", Code: "VAL008"}},
	{fields.ErrUnknownField, true, UserMessage{Action: "Create the field first or remove it from the request", Code: "VAL009"}},
	{contact.ErrInvalid, true, UserMessage{Action: "Correct the contact details and try again", Code: "VAL010"}},
	{fields.ErrCorruptStoredValue, true, UserMessage{Action: "Contact support", Code: "VAL011"}},
	{ErrInvalidQuery, true, UserMessage{Action: "Adjust the paging parameters", Code: "VAL012"}},

	/* ----------------------------------------
		Field administration
	---------------------------------------- */
	{ErrFieldNotFound, false, UserMessage{Message: ErrFieldNotFound.Error(), Action: "Check the field key", Code: "FLD001"}},
	{ErrFieldExists, false, UserMessage{Message: ErrFieldExists.Error(), Action: "Choose a different key", Code: "FLD002"}},
	{ErrFieldInUse, false, UserMessage{Message: ErrFieldInUse.Error(), Action: "Clear the field on every contact before deleting it", Code: "FLD003"}},
	{fields.ErrIncompatibleDefinition, true, UserMessage{Action: "Fix the stored values or keep the current definition", Code: "FLD004"}},
	{fields.ErrInvalidDefinition, true, UserMessage{Action: "Correct the field definition", Code: "FLD005"}},

	/* ----------------------------------------
		Import
	---------------------------------------- */
	{ErrReportNotFound, false, UserMessage{Message: ErrReportNotFound.Error(), Action: "Run the import again to get a new report", Code: "IMP001"}},
	{importer.ErrInvalidMode, true, UserMessage{Action: "Use create_only or upsert", Code: "IMP002"}},
	{importer.ErrMissingColumns, true, UserMessage{Action: "Check that all required columns are present in your file", Code: "IMP003"}},
	{importer.ErrFileTooLarge, true, UserMessage{Action: "Split the file into smaller chunks", Code: "FILE001"}},
	{importer.ErrNotUTF8, true, UserMessage{Action: "Save the file as UTF-8", Code: "FILE002"}},
	{importer.ErrNoHeader, true, UserMessage{Action: "Add a header row to the file", Code: "FILE003"}},
	{importer.ErrUnsupportedFile, true, UserMessage{Action: "Upload a CSV or XLSX file", Code: "FILE004"}},
	{importer.ErrNoFile, true, UserMessage{Action: "Please select a file to upload", Code: "FILE005"}},

	/* ----------------------------------------
		Storage and limits
	---------------------------------------- */
	{ErrContactExists, false, UserMessage{Message: ErrContactExists.Error(), Action: "Update the existing contact instead", Code: "DB001"}},
	{ErrContactNotFound, false, UserMessage{Message: ErrContactNotFound.Error(), Action: "Check the contact ID", Code: "DB002"}},
	{ErrInteractionNotFound, false, UserMessage{Message: ErrInteractionNotFound.Error(), Action: "Check the interaction ID", Code: "DB007"}},
	{ErrReminderNotFound, false, UserMessage{Message: ErrReminderNotFound.Error(), Action: "Check the reminder ID", Code: "DB008"}},
	{ErrTooManyImports, false, UserMessage{Message: "Too many imports in progress", Action: "Please wait a moment and try again", Code: "RATE001"}},
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns catches infrastructure failures that have no sentinel.
// Patterns are matched case-insensitively with strings.Contains and the
// first match wins.
var errorPatterns = []errorPattern{
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Please try again in a few moments",
			Code:    "DB003",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Database connection was interrupted",
			Action:  "Please try again",
			Code:    "DB004",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Try a smaller file or try again later",
			Code:    "DB005",
		},
	},
	{
		pattern: "deadline exceeded",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Try a smaller file or try again later",
			Code:    "DB005",
		},
	},
	{
		pattern: "deadlock",
		msg: UserMessage{
			Message: "Database was busy with conflicting operations",
			Action:  "Please try again",
			Code:    "DB006",
		},
	},
}

// defaultMessage is returned when no pattern matches.
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts an error to a user-friendly message. Known error kinds
// are matched first, then the pattern table. If nothing matches, a generic
// fallback message with code ERR000 is returned.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, k := range errorKinds {
		if errors.Is(err, k.target) {
			msg := k.msg
			if k.detail {
				msg.Message = detail(err)
			}
			return msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}
	return defaultMessage
}

// detail extracts the user-facing message from a typed error, skipping any
// wrapping context added on the way up.
func detail(err error) string {
	var (
		fieldErr   *fields.ValidationError
		contactErr *contact.Error
		fileErr    *importer.FileError
		queryErr   *QueryError
	)
	switch {
	case errors.As(err, &fieldErr):
		return fieldErr.Message
	case errors.As(err, &contactErr):
		return contactErr.Message
	case errors.As(err, &fileErr):
		return fileErr.Message
	case errors.As(err, &queryErr):
		return queryErr.Message
	}
	return err.Error()
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than
// the ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
