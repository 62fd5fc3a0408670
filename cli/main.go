package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dhmunro/dudley/core/annot"
	"github.com/dhmunro/dudley/core/layoutfmt"
	"github.com/dhmunro/dudley/core/signature"
	"github.com/dhmunro/dudley/runtime"
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		FormatError(os.Stderr, err, ShouldUseColor(false))
		os.Exit(1)
	}
}

// flags are the persistent flags shared by every command.
type flags struct {
	config   string
	params   []string
	base     int64
	order    string
	template bool
	data     string
	debug    bool
	noColor  bool
}

func newRootCmd() *cobra.Command {
	f := &flags{}
	rootCmd := &cobra.Command{
		Use:           "dudley",
		Short:         "Resolve Dudley binary layout descriptions",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&f.config, "config", "c", "", "YAML config file")
	pf.StringArrayVarP(&f.params, "param", "p", nil, "Bind a stream parameter, NAME=VALUE or /path/NAME=VALUE")
	pf.Int64Var(&f.base, "base", 0, "Stream offset of the first byte")
	pf.StringVar(&f.order, "order", "", "Default byte order: <, >, little or big")
	pf.BoolVar(&f.template, "template", false, "Validate as a template")
	pf.StringVar(&f.data, "data", "", "Data file whose signature supplies the base offset and byte order")
	pf.BoolVar(&f.debug, "debug", false, "Enable debug logging")
	pf.BoolVar(&f.noColor, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(
		checkCmd(f),
		resolveCmd(f),
		addrCmd(f),
		hashCmd(f),
		attrsCmd(f),
		filtersCmd(f),
		watchCmd(f),
	)
	return rootCmd
}

// session is one configured run over one layout file.
type session struct {
	cfg      *Config
	opts     runtime.Options
	useColor bool
	store    annot.Store
}

// newSession merges the config file, the data file signature and the flags,
// in that order of increasing precedence.
func newSession(cmd *cobra.Command, f *flags) (*session, error) {
	cfg, err := LoadConfig(f.config)
	if err != nil {
		return nil, err
	}
	order, err := cfg.ByteOrder()
	if err != nil {
		return nil, err
	}
	opts := runtime.Options{
		Base:     cfg.Base,
		Order:    order,
		Template: cfg.Template,
		Logger:   newLogger(cmd.ErrOrStderr(), f.debug),
	}

	if f.data != "" {
		h, err := readSignature(f.data)
		if err != nil {
			return nil, err
		}
		opts.Base, opts.Order = h.Base(), h.Order
		opts.Logger.Debug("signature", "file", f.data, "offset", h.Offset, "order", h.Order.String())
	}

	flagSet := cmd.Flags()
	if flagSet.Changed("base") {
		opts.Base = f.base
	}
	if f.order != "" {
		if opts.Order, err = parseOrder(f.order); err != nil {
			return nil, err
		}
	}
	if f.template {
		opts.Template = true
	}

	params, err := parseParams(f.params)
	if err != nil {
		return nil, err
	}
	opts.Params = mergeParams(cfg.Params, params)

	if opts.Filters, err = cfg.Registry(); err != nil {
		return nil, err
	}
	return &session{cfg: cfg, opts: opts, useColor: ShouldUseColor(f.noColor)}, nil
}

// withAnnotations attaches the configured annotation store.
func (s *session) withAnnotations() error {
	if s.cfg.Annotations == "" {
		s.store = annot.NewMemory()
	} else {
		st, err := annot.NewSQLite(s.cfg.Annotations)
		if err != nil {
			return err
		}
		s.store = st
	}
	s.opts.Annotations = s.store
	return nil
}

func (s *session) close() {
	if s.store != nil {
		_ = s.store.Close()
	}
}

// resolve reads and resolves the layout at path ("-" for stdin). An attached
// annotation store is first cleared of what an earlier run over the same
// file recorded.
func (s *session) resolve(path string) (*runtime.Result, error) {
	src, err := readLayout(path)
	if err != nil {
		return nil, err
	}
	if s.store != nil {
		if err := s.store.Begin(layoutKey(path)); err != nil {
			return nil, err
		}
	}
	return runtime.Resolve(src, s.opts)
}

// layoutKey names a layout file in the annotation store.
func layoutKey(path string) string {
	if path == "-" {
		return path
	}
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}

func readLayout(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, &CLIError{Message: fmt.Sprintf("cannot read layout %s", path), Details: err.Error()}
	}
	return src, nil
}

func readSignature(path string) (signature.Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return signature.Header{}, fmt.Errorf("error opening file %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return signature.Header{}, err
	}
	h, err := signature.Find(f, info.Size())
	if err != nil {
		return signature.Header{}, &CLIError{
			Message: fmt.Sprintf("%s: %v", path, err),
			Hint:    "use --base and --order for files without a signature",
		}
	}
	return h, nil
}

func newLogger(w io.Writer, debug bool) *slog.Logger {
	if !debug {
		return runtime.NewLogger()
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: slog.LevelDebug,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.Attr{}
			}
			return a
		},
	}))
}

func checkCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "check FILE",
		Short: "Resolve a layout and report whether it is valid",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd, f)
			if err != nil {
				return err
			}
			r, err := s.resolve(args[0])
			if err != nil {
				return err
			}
			kind := "layout"
			if r.Layout.Template {
				kind = "template"
			}
			end := "?"
			if r.Placement.EndKnown {
				end = fmt.Sprint(r.Placement.End)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s: valid %s, %d items, ends at %s\n",
				args[0], kind, len(r.Layout.Items), end)
			return err
		},
	}
}

func resolveCmd(f *flags) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "resolve FILE",
		Short: "Print the resolved item tree with addresses",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd, f)
			if err != nil {
				return err
			}
			r, err := s.resolve(args[0])
			if err != nil {
				return err
			}
			if out == "" {
				DisplayLayout(cmd.OutOrStdout(), r, s.useColor)
				return nil
			}
			file, err := os.Create(out)
			if err != nil {
				return err
			}
			defer func() { _ = file.Close() }()
			digest, err := layoutfmt.Write(file, layoutfmt.Canonicalize(r.Layout, r.Placement))
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (blake2b:%x)\n", out, digest)
			return err
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "Write the canonical binary form to this file")
	return cmd
}

func addrCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "addr FILE PATH...",
		Short: "Print the stream address and length of items",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd, f)
			if err != nil {
				return err
			}
			r, err := s.resolve(args[0])
			if err != nil {
				return err
			}
			for _, path := range args[1:] {
				if err := DisplayAddress(cmd.OutOrStdout(), r, path); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func hashCmd(f *flags) *cobra.Command {
	var structural bool
	cmd := &cobra.Command{
		Use:   "hash FILE",
		Short: "Print the layout fingerprint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd, f)
			if err != nil {
				return err
			}
			r, err := s.resolve(args[0])
			if err != nil {
				return err
			}
			var ext layoutfmt.Extents = r.Placement
			if structural {
				ext = nil
			}
			fp, err := layoutfmt.Canonicalize(r.Layout, ext).Fingerprint()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), fp)
			return err
		},
	}
	cmd.Flags().BoolVar(&structural, "structure", false, "Hash the item tree only, without addresses")
	return cmd
}

func attrsCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "attrs FILE",
		Short: "Print doc and attribute comments by item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd, f)
			if err != nil {
				return err
			}
			if err := s.withAnnotations(); err != nil {
				return err
			}
			defer s.close()
			r, err := s.resolve(args[0])
			if err != nil {
				return err
			}
			return DisplayAnnotations(cmd.OutOrStdout(), r, s.store, s.useColor)
		},
	}
}

func filtersCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "filters",
		Short: "List the known filters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd, f)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for _, name := range s.opts.Filters.Names() {
				spec, _ := s.opts.Filters.Lookup(name)
				_, _ = fmt.Fprintf(w, "%s %-8s %s\n", spec.Kind, name, spec.Doc)
			}
			return nil
		},
	}
}
