package main

import (
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/contacts/internal/fields"
)

func newFieldsCmd(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "fields",
		Short: "List custom field definitions as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			service, closeStore, err := openService(cmd.Context(), global)
			if err != nil {
				return err
			}
			defer closeStore()

			defs, err := service.ListFields(cmd.Context())
			if err != nil {
				return err
			}
			if defs == nil {
				defs = []fields.Definition{}
			}
			return printJSON(cmd.OutOrStdout(), defs)
		},
	}
}
