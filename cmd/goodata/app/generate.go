package app

import (
	"archive/zip"
	"bytes"
	"fmt"
	"maps"
	"path/filepath"
	"slices"
	"strings"

	"github.com/mandelsoft/vfs/pkg/vfs"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pboyd04/goodata/pkg/csdl"
)

const singleFileName = "types"

type Generate struct {
	cmd *cobra.Command

	mainopts        *Options
	packageName     string
	outputDir       string
	individualFiles bool
}

func NewGenerate(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate <file.xml|file.zip>...",
		Short: "Generate Go types from CSDL files",
		Long: `Generate Go types for the entity, complex and enum types of one or more
CSDL documents. ZIP archives are searched for .xml members.

By default one file is written per leading namespace component, plus the
shared odata.go with the Edm helper types.`,
		Args: cobra.MinimumNArgs(1),
	}
	c := &Generate{
		cmd:      cmd,
		mainopts: opts,
	}
	c.cmd.RunE = func(cmd *cobra.Command, args []string) error { return c.Run(args) }
	flags := cmd.Flags()
	flags.StringVar(&c.packageName, "package-name", "standard", "package name for the generated file(s)")
	flags.StringVarP(&c.outputDir, "output-dir", "d", ".", "directory for the generated file(s)")
	flags.BoolVar(&c.individualFiles, "individual-files", true, "generate one file per namespace prefix")
	return cmd
}

func (c *Generate) Run(args []string) error {
	parser := csdl.NewParser()
	//nolint:errcheck // nothing useful to do on close failure
	defer parser.Close()
	for _, fileName := range args {
		if err := c.addFile(parser, fileName); err != nil {
			return err
		}
	}
	types, err := parser.Parse()
	if err != nil {
		return fmt.Errorf("parsing CSDL: %w", err)
	}
	parser.Fold(types)

	files := map[string]*csdl.File{}
	for name, t := range types {
		prefix := singleFileName
		if c.individualFiles {
			prefix = splitNamespacePrefix(name)
		}
		file, ok := files[prefix]
		if !ok {
			file = csdl.NewFile(c.packageName)
			files[prefix] = file
		}
		file.AddType(t)
	}

	if err := c.mainopts.fs.MkdirAll(c.outputDir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", c.outputDir, err)
	}
	boilerplate, err := csdl.Boilerplate(c.packageName)
	if err != nil {
		return fmt.Errorf("generating boilerplate: %w", err)
	}
	if err := c.write(csdl.BoilerplateFilename, boilerplate); err != nil {
		return err
	}
	for _, prefix := range slices.Sorted(maps.Keys(files)) {
		fileName := prefix + ".go"
		if fileName == csdl.BoilerplateFilename {
			fileName = prefix + "_types.go"
		}
		data, err := files[prefix].Flush(types)
		if err != nil {
			return fmt.Errorf("generating file %s: %w", fileName, err)
		}
		if err := c.write(fileName, data); err != nil {
			return err
		}
	}
	c.mainopts.logger.Debug("generated types", zap.Int("types", len(types)), zap.Int("files", len(files)+1))
	successColor.Fprintf(c.cmd.OutOrStdout(), "✓ Generated %d types in %d files\n", len(types), len(files)+1)
	return nil
}

func (c *Generate) write(fileName string, data []byte) error {
	path := filepath.Join(c.outputDir, fileName)
	if err := vfs.WriteFile(c.mainopts.fs, path, data, 0o644); err != nil {
		return fmt.Errorf("writing file %s: %w", path, err)
	}
	infoColor.Fprintf(c.cmd.OutOrStdout(), "  %s\n", path)
	return nil
}

func splitNamespacePrefix(name string) string {
	index := strings.Index(name, ".")
	if index == -1 {
		return name
	}
	return name[:index]
}

func (c *Generate) addFile(parser *csdl.Parser, fileName string) error {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".xml":
		file, err := c.mainopts.fs.Open(fileName)
		if err != nil {
			return fmt.Errorf("opening CSDL file: %w", err)
		}
		parser.AddFile(filepath.Base(fileName), file)
	case ".zip":
		return c.addZipFile(parser, fileName)
	default:
		return fmt.Errorf("unknown file type: %s", fileName)
	}
	return nil
}

func (c *Generate) addZipFile(parser *csdl.Parser, fileName string) error {
	data, err := vfs.ReadFile(c.mainopts.fs, fileName)
	if err != nil {
		return fmt.Errorf("opening ZIP file: %w", err)
	}
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fmt.Errorf("opening ZIP file %s: %w", fileName, err)
	}
	for _, f := range r.File {
		// skip the pdfs, html and directories
		if filepath.Ext(f.Name) != ".xml" {
			continue
		}
		file, err := f.Open()
		if err != nil {
			return fmt.Errorf("opening CSDL file in zip: %w", err)
		}
		parser.AddFile(filepath.Base(f.Name), file)
	}
	return nil
}
