package app

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pboyd04/goodata/pkg/csdl"
)

func NewValidate(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file.xml>...",
		Short: "Check the cross references of metadata documents",
		Long: `Decode the given CSDL documents and resolve every qualified name they use
against all of them together: base types, property types, associations,
navigation roles, keys and entity container members.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			docs := make([]*csdl.Edmx, 0, len(args))
			for _, name := range args {
				doc, err := opts.readDocument(cmd, name)
				if err != nil {
					return err
				}
				docs = append(docs, doc)
			}
			err := csdl.NewModel(docs...).Validate()
			var verrs csdl.ValidationErrors
			if errors.As(err, &verrs) {
				for _, e := range verrs {
					errorColor.Fprintf(cmd.OutOrStdout(), "✗ %s\n", e)
				}
				return fmt.Errorf("%d unresolved references", len(verrs))
			}
			if err != nil {
				return err
			}
			successColor.Fprintf(cmd.OutOrStdout(), "✓ %d documents valid\n", len(docs))
			return nil
		},
	}
}
