package app

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"sigs.k8s.io/yaml"

	"github.com/pboyd04/goodata/pkg/odata"
)

type Read struct {
	cmd *cobra.Command

	mainopts *Options
	typed    bool
	output   string
}

func NewRead(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "read <path|url>",
		Short: "Read data from an OData service",
		Long: `Read a resource of the configured service, e.g. "Products" or
"Products(1)/Category". Values are typed with the service's $metadata
unless --typed=false is given.`,
		Args: cobra.ExactArgs(1),
	}
	c := &Read{
		cmd:      cmd,
		mainopts: opts,
	}
	c.cmd.RunE = func(cmd *cobra.Command, args []string) error { return c.Run(args) }
	flags := cmd.Flags()
	flags.BoolVar(&c.typed, "typed", true, "type values with the service metadata")
	flags.StringVarP(&c.output, "output", "o", "json", "output format: json or yaml")
	return cmd
}

func (c *Read) Run(args []string) error {
	ctx := c.cmd.Context()
	target, err := c.mainopts.serviceURL(args[0])
	if err != nil {
		return err
	}
	opts := []odata.Option{odata.WithHTTPClient(c.mainopts.httpClient())}
	if c.typed {
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
		doc, err := loader.Load(ctx, root)
		if err != nil {
			return fmt.Errorf("loading metadata: %w", err)
		}
		opts = append(opts, odata.WithMetadata(doc))
	}

	start := time.Now()
	data, resp, err := odata.ReadContext(ctx, &odata.Request{
		RequestURI: target,
		User:       c.mainopts.config.Service.User,
		Password:   c.mainopts.config.Service.Password,
	}, opts...)
	if err != nil {
		return err
	}
	c.mainopts.logger.Debug("read", zap.String("uri", target), zap.Int("status", resp.StatusCode), zap.Duration("took", time.Since(start)))
	return c.print(data)
}

// printable gives a Feed stable lower case keys.
func printable(data any) any {
	feed, ok := data.(*odata.Feed)
	if !ok {
		return data
	}
	out := map[string]any{"results": feed.Results}
	if feed.Count != nil {
		out["count"] = *feed.Count
	}
	if feed.Next != "" {
		out["next"] = feed.Next
	}
	return out
}

func (c *Read) print(data any) error {
	var out []byte
	var err error
	switch c.output {
	case "json":
		out, err = json.MarshalIndent(printable(data), "", "  ")
		out = append(out, '\n')
	case "yaml":
		out, err = yaml.Marshal(printable(data))
	default:
		return fmt.Errorf("unknown output format %q", c.output)
	}
	if err != nil {
		return err
	}
	_, err = c.cmd.OutOrStdout().Write(out)
	return err
}
