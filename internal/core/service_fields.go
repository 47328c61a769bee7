package core

import (
	"context"
	"errors"

	"github.com/JonMunkholm/contacts/internal/fields"
	"github.com/JonMunkholm/contacts/internal/logging"
	"github.com/JonMunkholm/contacts/internal/store"
)

// ListFields returns every field definition ordered by key.
func (s *Service) ListFields(ctx context.Context) ([]fields.Definition, error) {
	return s.store.ListDefinitions(ctx)
}

// CreateField validates in and stores the new definition.
func (s *Service) CreateField(ctx context.Context, in fields.DefinitionInput) (fields.Definition, error) {
	def, err := in.Definition()
	if err != nil {
		return fields.Definition{}, err
	}

	created, err := s.store.CreateDefinition(ctx, def)
	if err != nil {
		return fields.Definition{}, translate(err, nil, ErrFieldExists)
	}

	logging.FromContext(ctx).Info("custom field created", "key", created.Key, "type", created.Type)
	return created, nil
}

// UpdateField replaces the definition stored under key. An empty in.Key
// keeps the current key; a new key moves every stored value with it.
//
// The edit is checked against all values already stored under key. If any
// of them would no longer decode, or a required field would be left empty,
// nothing is changed.
func (s *Service) UpdateField(ctx context.Context, key string, in fields.DefinitionInput) (fields.Definition, error) {
	if in.Key == "" {
		in.Key = key
	}

	var updated fields.Definition
	err := s.store.InTx(ctx, func(tx store.Store) error {
		if _, err := tx.GetDefinition(ctx, key); err != nil {
			return translate(err, ErrFieldNotFound, nil)
		}

		def, err := in.Definition()
		if err != nil {
			return err
		}

		existing, err := tx.ValuesForKey(ctx, key)
		if err != nil {
			return err
		}
		if err := fields.CheckCompatible(def, existing); err != nil {
			return err
		}

		updated, err = tx.UpdateDefinition(ctx, key, def)
		return translate(err, ErrFieldNotFound, ErrFieldExists)
	})
	if err != nil {
		return fields.Definition{}, err
	}

	logging.FromContext(ctx).Info("custom field updated", "key", key, "new_key", updated.Key, "type", updated.Type)
	return updated, nil
}

// DeleteField removes the definition stored under key. It fails with
// ErrFieldInUse while any contact still has a value under key.
func (s *Service) DeleteField(ctx context.Context, key string) error {
	err := s.store.DeleteDefinition(ctx, key)
	if errors.Is(err, store.ErrFieldInUse) {
		return ErrFieldInUse
	}
	if err != nil {
		return translate(err, ErrFieldNotFound, nil)
	}

	logging.FromContext(ctx).Info("custom field deleted", "key", key)
	return nil
}
