package app

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"

	"github.com/pboyd04/goodata/pkg/csdl"
)

type Dump struct {
	cmd *cobra.Command

	mainopts *Options
	output   string
}

func NewDump(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dump [file.xml|-]",
		Short: "Print a metadata document",
		Long: `Print a CSDL document as XML, JSON or YAML. Without a file the
$metadata of the configured service is dumped.`,
		Args: cobra.MaximumNArgs(1),
	}
	c := &Dump{
		cmd:      cmd,
		mainopts: opts,
	}
	c.cmd.RunE = func(cmd *cobra.Command, args []string) error { return c.Run(args) }
	cmd.Flags().StringVarP(&c.output, "output", "o", "xml", "output format: xml, json or yaml")
	return cmd
}

func (c *Dump) Run(args []string) error {
	var doc *csdl.Edmx
	var err error
	if len(args) == 1 {
		doc, err = c.mainopts.readDocument(c.cmd, args[0])
	} else {
		doc, err = c.fetch()
	}
	if err != nil {
		return err
	}
	data, err := formatDocument(doc, c.output)
	if err != nil {
		return err
	}
	_, err = c.cmd.OutOrStdout().Write(data)
	return err
}

func (c *Dump) fetch() (*csdl.Edmx, error) {
	root, err := c.mainopts.serviceRoot()
	if err != nil {
		return nil, err
	}
	loader, done, err := c.mainopts.loader(c.cmd.Context())
	if err != nil {
		return nil, err
	}
	//nolint:errcheck // cache close errors are not actionable here
	defer done()
	return loader.Load(c.cmd.Context(), root)
}

func formatDocument(doc *csdl.Edmx, output string) ([]byte, error) {
	switch output {
	case "xml":
		return csdl.Marshal(doc)
	case "json":
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	case "yaml":
		return yaml.Marshal(doc)
	}
	return nil, fmt.Errorf("unknown output format %q", output)
}
