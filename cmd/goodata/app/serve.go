package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/mandelsoft/vfs/pkg/vfs"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"sigs.k8s.io/yaml"

	"github.com/pboyd04/goodata/pkg/odatatest"
)

type Serve struct {
	cmd *cobra.Command

	mainopts     *Options
	addr         string
	metadataFile string
	dataFile     string
	basicAuth    string
}

func NewServe(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve an in-memory OData service",
		Long: `Serve a read-only OData service speaking verbose JSON. Without --metadata
a small products and categories demo is served. --data loads entities from
a YAML file mapping entity set names to lists of entities.`,
		Args: cobra.NoArgs,
	}
	c := &Serve{
		cmd:      cmd,
		mainopts: opts,
	}
	c.cmd.RunE = func(cmd *cobra.Command, args []string) error { return c.Run() }
	flags := cmd.Flags()
	flags.StringVar(&c.addr, "addr", "localhost:8080", "listen address")
	flags.StringVar(&c.metadataFile, "metadata", "", "CSDL document to serve")
	flags.StringVar(&c.dataFile, "data", "", "YAML file with entities per entity set")
	flags.StringVar(&c.basicAuth, "basic-auth", "", "require user:password")
	return cmd
}

func (c *Serve) service() (*odatatest.Service, error) {
	var svc *odatatest.Service
	if c.metadataFile == "" {
		svc = odatatest.NewDemoService()
	} else {
		data, err := vfs.ReadFile(c.mainopts.fs, c.metadataFile)
		if err != nil {
			return nil, fmt.Errorf("cannot read file %q: %w", c.metadataFile, err)
		}
		svc, err = odatatest.NewService(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", c.metadataFile, err)
		}
	}
	if c.dataFile != "" {
		data, err := vfs.ReadFile(c.mainopts.fs, c.dataFile)
		if err != nil {
			return nil, fmt.Errorf("cannot read file %q: %w", c.dataFile, err)
		}
		var sets map[string][]map[string]any
		if err := yaml.Unmarshal(data, &sets); err != nil {
			return nil, fmt.Errorf("cannot unmarshal file %q: %w", c.dataFile, err)
		}
		for set, entities := range sets {
			svc.AddEntities(set, entities...)
		}
	}
	if c.basicAuth != "" {
		user, password, ok := strings.Cut(c.basicAuth, ":")
		if !ok || user == "" {
			return nil, errors.New("--basic-auth must be user:password")
		}
		svc.User = user
		svc.Password = password
	}
	return svc, nil
}

func (c *Serve) Run() error {
	svc, err := c.service()
	if err != nil {
		return err
	}
	listener, err := net.Listen("tcp", c.addr)
	if err != nil {
		return err
	}
	return c.serve(c.cmd.Context(), listener, svc.Router())
}

// serve runs until ctx ends.
func (c *Serve) serve(ctx context.Context, listener net.Listener, handler http.Handler) error {
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(listener)
	}()
	successColor.Fprintf(c.cmd.OutOrStdout(), "✓ Serving on http://%s\n", listener.Addr())
	c.mainopts.logger.Info("serving", zap.String("addr", listener.Addr().String()))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
