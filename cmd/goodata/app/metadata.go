package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pboyd04/goodata/pkg/csdl"
)

type Metadata struct {
	cmd *cobra.Command

	mainopts *Options
	refresh  bool
}

func NewMetadata(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "metadata",
		Short: "Fetch and summarize the service's $metadata",
		Long: `Fetch the $metadata document of the configured service through the
metadata cache and list its schemas, types and entity sets.`,
		Args: cobra.NoArgs,
	}
	c := &Metadata{
		cmd:      cmd,
		mainopts: opts,
	}
	c.cmd.RunE = func(cmd *cobra.Command, args []string) error { return c.Run() }
	cmd.Flags().BoolVar(&c.refresh, "refresh", false, "drop the cached document first")
	return cmd
}

func (c *Metadata) Run() error {
	ctx := c.cmd.Context()
	root, err := c.mainopts.serviceRoot()
	if err != nil {
		return err
	}
	loader, done, err := c.mainopts.loader(ctx)
	if err != nil {
		return err
	}
	//nolint:errcheck // cache close errors are not actionable here
	defer done()
	if c.refresh {
		if err := loader.Invalidate(ctx, root); err != nil {
			return err
		}
	}
	doc, err := loader.Load(ctx, root)
	if err != nil {
		return err
	}
	c.summarize(root, doc)
	return nil
}

func (c *Metadata) summarize(root string, doc *csdl.Edmx) {
	w := c.cmd.OutOrStdout()
	infoColor.Fprintf(w, "%s (edmx %s)\n", root, doc.Version)
	for _, s := range doc.Schemas() {
		fmt.Fprintf(w, "  %s: %d entity types, %d complex types, %d enum types, %d associations\n",
			s.Namespace, len(s.EntityType), len(s.ComplexType), len(s.EnumType), len(s.Association))
		for _, ec := range s.EntityContainer {
			for _, es := range ec.EntitySet {
				fmt.Fprintf(w, "    %s.%s -> %s\n", ec.Name, es.Name, es.EntityType)
			}
		}
	}
}
