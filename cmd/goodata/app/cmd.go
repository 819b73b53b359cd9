// Package app holds the goodata command tree.
package app

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/fatih/color"
	"github.com/mandelsoft/vfs/pkg/osfs"
	"github.com/mandelsoft/vfs/pkg/vfs"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pboyd04/goodata/internal/config"
	"github.com/pboyd04/goodata/pkg/csdl"
	"github.com/pboyd04/goodata/pkg/odata"
)

var (
	successColor = color.New(color.FgGreen, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	infoColor    = color.New(color.FgCyan)
)

// Options is the state shared by all commands.
type Options struct {
	fs         vfs.FileSystem
	viper      *viper.Viper
	configPath string
	config     *config.Config
	logger     *zap.Logger
}

// flag name -> config key
var boundFlags = map[string]string{
	"url":       "service.url",
	"user":      "service.user",
	"password":  "service.password",
	"timeout":   "service.timeout",
	"cache":     "cache.backend",
	"log-level": "log.level",
}

func New(fss ...vfs.FileSystem) *cobra.Command {
	opts := &Options{
		fs:     osfs.New(),
		viper:  config.New(),
		logger: zap.NewNop(),
	}
	if len(fss) > 0 && fss[0] != nil {
		opts.fs = fss[0]
	}

	rootCmd := &cobra.Command{
		Use:   "goodata",
		Short: "OData metadata and data tooling",
		Long: color.CyanString(`goodata - OData metadata and data tooling

Reads CSDL ($metadata) documents and OData services.

  generate  Go types from CSDL files
  dump      a metadata document as XML, JSON or YAML
  validate  the cross references of metadata documents
  read      data from a service
  metadata  fetch and cache a service's $metadata
  serve     an in-memory test service`),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "config file (default ./goodata.yaml)")
	flags.String("url", "", "service root URL")
	flags.String("user", "", "user for BASIC authentication")
	flags.String("password", "", "password for BASIC authentication")
	flags.Duration("timeout", 0, "request timeout")
	flags.String("cache", "", "metadata cache backend: memory, redis or none")
	flags.String("log-level", "", "log level")
	for name, key := range boundFlags {
		_ = opts.viper.BindPFlag(key, flags.Lookup(name))
	}

	rootCmd.AddCommand(NewVersion())
	rootCmd.AddCommand(NewGenerate(opts))
	rootCmd.AddCommand(NewDump(opts))
	rootCmd.AddCommand(NewValidate(opts))
	rootCmd.AddCommand(NewRead(opts))
	rootCmd.AddCommand(NewMetadata(opts))
	rootCmd.AddCommand(NewServe(opts))

	return rootCmd
}

// Execute runs the root command
func Execute(ctx context.Context) error {
	rootCmd := New()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		errorColor.Fprintf(rootCmd.ErrOrStderr(), "Error: %v\n", err)
		return err
	}
	return nil
}

func (o *Options) load() error {
	cfg, err := config.Load(o.viper, o.configPath)
	if err != nil {
		return err
	}
	o.config = cfg
	logger, err := cfg.Log.Logger()
	if err != nil {
		logger = zap.NewNop()
	}
	o.logger = logger
	csdl.SetLogger(logger)
	odata.SetLogger(logger)
	return nil
}

func (o *Options) httpClient() odata.HTTPClient {
	return odata.NewNetHTTPClient(&http.Client{Timeout: o.config.Service.Timeout})
}

func (o *Options) serviceRoot() (string, error) {
	if o.config.Service.URL == "" {
		return "", fmt.Errorf("no service URL: set service.url or pass --url")
	}
	return strings.TrimSuffix(o.config.Service.URL, "/"), nil
}

// serviceURL resolves p against the service root unless it is absolute.
func (o *Options) serviceURL(p string) (string, error) {
	if strings.HasPrefix(p, "http://") || strings.HasPrefix(p, "https://") {
		return p, nil
	}
	root, err := o.serviceRoot()
	if err != nil {
		return "", err
	}
	return root + "/" + strings.TrimPrefix(p, "/"), nil
}

// loader returns a metadata loader on the configured cache. done releases
// the cache.
func (o *Options) loader(ctx context.Context) (*odata.MetadataLoader, func() error, error) {
	c, done, err := o.config.Cache.Open(ctx)
	if err != nil {
		return nil, nil, err
	}
	return &odata.MetadataLoader{
		Client:   o.httpClient(),
		Cache:    c,
		TTL:      o.config.Cache.TTL,
		User:     o.config.Service.User,
		Password: o.config.Service.Password,
	}, done, nil
}

// readDocument decodes a CSDL file, or stdin for "-".
func (o *Options) readDocument(cmd *cobra.Command, name string) (*csdl.Edmx, error) {
	if name == "-" {
		doc, err := csdl.Decode(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("stdin: %w", err)
		}
		return doc, nil
	}
	data, err := vfs.ReadFile(o.fs, name)
	if err != nil {
		return nil, fmt.Errorf("cannot read file %q: %w", name, err)
	}
	doc, err := csdl.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return doc, nil
}
