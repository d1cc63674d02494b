package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/FocuswithJustin/ceparser/core/document"
	cperrors "github.com/FocuswithJustin/ceparser/core/errors"
	"github.com/FocuswithJustin/ceparser/core/store"
	"github.com/FocuswithJustin/ceparser/core/tree"
	"github.com/FocuswithJustin/ceparser/internal/archive"
	"github.com/FocuswithJustin/ceparser/internal/batch"
	"github.com/FocuswithJustin/ceparser/internal/logging"
	"github.com/FocuswithJustin/ceparser/internal/validation"
)

// load checks path and reads it into a document.
func (g *Globals) load(path string) (*document.Document, error) {
	if _, err := validation.CheckInput(path); err != nil {
		return nil, err
	}
	return document.Open(path, g.options())
}

// ParseCmd parses files and prints a diagnostic summary for each.
type ParseCmd struct {
	Files   []string `arg:"" help:"Input files" type:"path"`
	Workers int      `help:"Number of concurrent parses (0 = CPU count)" default:"0"`
	Limit   int      `help:"Diagnostics to print per file (0 = all)" default:"20"`
}

type parseOutcome struct {
	path   string
	doc    *document.Document
	record *store.Record
	cached bool
	err    error
}

func (c *ParseCmd) Run(ctx context.Context, g *Globals) error {
	st, err := g.openStore()
	if err != nil {
		return err
	}
	if st != nil {
		defer st.Close()
	}

	workers := c.Workers
	if workers <= 0 {
		workers = batch.DefaultWorkers()
	}
	outcomes, err := batch.Run(ctx, c.Files, workers, func(ctx context.Context, path string) parseOutcome {
		return g.parseOne(ctx, st, path)
	})
	if err != nil {
		return err
	}

	failed := 0
	for _, o := range outcomes {
		if o.err != nil {
			failed++
			logging.ErrorContext(ctx, "parse failed", "file", o.path, "error", o.err)
			g.printf("%s: error: %v\n", o.path, o.err)
			continue
		}
		if !o.cached {
			if f := o.doc.Log().Fatal(); f != nil {
				logging.WarnContext(ctx, "parse aborted", "file", o.path, "position", f.Position)
			}
		}
		c.report(g, o)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(c.Files))
	}
	return nil
}

// parseOne parses path, or reuses the stored result for identical input
// decoded with identical settings.
func (g *Globals) parseOne(ctx context.Context, st *store.Store, path string) parseOutcome {
	o := parseOutcome{path: path}
	doc, err := g.load(path)
	if err != nil {
		o.err = err
		return o
	}
	o.doc = doc

	if st != nil {
		rec, err := st.Get(ctx, doc.Digest(), doc.Settings())
		switch {
		case err == nil:
			o.record, o.cached = rec, true
			logging.StoreEvent("hit", rec.Digest, "name", doc.Name())
			return o
		case !cperrors.Is(err, cperrors.ErrNotFound):
			o.err = err
			return o
		}
	}

	if err := doc.Parse(); err != nil {
		o.err = err
		return o
	}
	o.record = &store.Record{
		Digest:      doc.Digest(),
		Settings:    doc.Settings(),
		Name:        doc.Name(),
		Format:      doc.Format().String(),
		Canonical:   doc.Export(),
		Diagnostics: doc.Log().Len(),
		MaxSeverity: doc.Log().MaxSeverity(),
	}
	if st != nil {
		if err := st.Put(ctx, *o.record); err != nil {
			o.err = err
			return o
		}
		logging.StoreEvent("put", o.record.Digest, "name", doc.Name())
	}
	return o
}

func (c *ParseCmd) report(g *Globals, o parseOutcome) {
	r := o.record
	suffix := ""
	if o.cached {
		suffix = " (cached)"
	}
	g.printf("%s: %s, %d diagnostics, max severity %d%s\n",
		o.path, r.Format, r.Diagnostics, r.MaxSeverity, suffix)
	if o.cached {
		return
	}
	for i, e := range o.doc.Log().BySeverity() {
		if c.Limit > 0 && i == c.Limit {
			g.printf("  ... %d more\n", r.Diagnostics-c.Limit)
			break
		}
		g.printf("  %s\n", strings.ReplaceAll(e.Error(), "\n", "\n    "))
	}
}

// ExportCmd writes the canonical text of one or more files.
type ExportCmd struct {
	Files         []string `arg:"" help:"Input files" type:"path"`
	Out           string   `help:"Output file for a single input (default: stdout)" short:"o" type:"path"`
	Bundle        string   `help:"Write every export into a .tar.xz or .tar.gz bundle" type:"path"`
	Cleanup       string   `help:"Remove attributes, entries and nodes whose names match the mask"`
	CaseSensitive bool     `name:"case-sensitive" help:"Match the cleanup mask case-sensitively"`
}

func (c *ExportCmd) Run(ctx context.Context, g *Globals) error {
	if c.Bundle == "" && len(c.Files) > 1 {
		return fmt.Errorf("%w: several inputs need --bundle", cperrors.ErrInvalidInput)
	}

	var files []archive.File
	for _, path := range c.Files {
		text, err := c.export(ctx, g, path)
		if err != nil {
			return err
		}
		if c.Bundle == "" {
			return c.write(g, text)
		}
		name, err := validation.MemberName(path, ".txt")
		if err != nil {
			return err
		}
		files = append(files, archive.File{Name: name, Content: []byte(text)})
	}
	if err := archive.CreateBundle(c.Bundle, files); err != nil {
		return err
	}
	logging.InfoContext(ctx, "bundle written", "path", c.Bundle, "files", len(files))
	g.printf("wrote %d files to %s\n", len(files), c.Bundle)
	return nil
}

func (c *ExportCmd) export(ctx context.Context, g *Globals, path string) (string, error) {
	if c.Cleanup != "" {
		doc, err := g.load(path)
		if err != nil {
			return "", err
		}
		if err := doc.Parse(); err != nil {
			return "", err
		}
		if err := doc.Cleanup(c.Cleanup, c.CaseSensitive); err != nil {
			return "", err
		}
		return doc.Export(), nil
	}

	st, err := g.openStore()
	if err != nil {
		return "", err
	}
	if st != nil {
		defer st.Close()
	}
	o := g.parseOne(ctx, st, path)
	if o.err != nil {
		return "", o.err
	}
	return o.record.Canonical, nil
}

func (c *ExportCmd) write(g *Globals, text string) error {
	if c.Out == "" {
		g.printf("%s\n", text)
		return nil
	}
	if err := os.WriteFile(c.Out, []byte(text+"\n"), 0644); err != nil {
		return cperrors.NewIO("write", c.Out, err)
	}
	logging.Info("export written", "path", c.Out, "bytes", len(text)+1)
	return nil
}

// SniffCmd reports how each file would be decoded, without parsing it.
type SniffCmd struct {
	Files []string `arg:"" help:"Input files" type:"path"`
}

func (c *SniffCmd) Run(g *Globals) error {
	for _, path := range c.Files {
		doc, err := g.load(path)
		if err != nil {
			logging.Warn("sniff failed", "file", path, "error", err)
			g.printf("%s: error: %v\n", path, err)
			continue
		}
		game := doc.Game()
		if game == "" {
			game = "-"
		}
		g.printf("%s: format=%s container=%s game=%s payload=%d digest=%s\n",
			path, doc.Format(), doc.Container(), game, doc.Size(), doc.Digest()[:16])
	}
	return nil
}

// QueryCmd prints the nodes reached by a path of names. A "*" segment matches
// any node name.
type QueryCmd struct {
	File      string   `arg:"" help:"Input file" type:"path"`
	Path      []string `arg:"" optional:"" help:"Node names from the root"`
	Attribute string   `help:"Print only this attribute of each matched node" short:"a"`
}

func (c *QueryCmd) Run(g *Globals) error {
	doc, err := g.load(c.File)
	if err != nil {
		return err
	}
	if err := doc.Parse(); err != nil {
		return err
	}

	var nodes []*tree.Node
	if len(c.Path) == 0 {
		nodes = []*tree.Node{doc.Root()}
	} else {
		nodes = doc.Root().Subnodes(c.Path...)
	}
	if len(nodes) == 0 {
		return cperrors.NewNotFound("node", strings.Join(c.Path, "/"))
	}

	for _, n := range nodes {
		if c.Attribute != "" {
			for _, v := range n.AttributeValues(c.Attribute) {
				g.printf("%s\n", v)
			}
			continue
		}
		if err := tree.Export(g.out, n); err != nil {
			return err
		}
		g.printf("\n")
	}
	return nil
}

// CacheGroup holds the result store commands.
type CacheGroup struct {
	List   CacheListCmd   `cmd:"" help:"List stored results"`
	Delete CacheDeleteCmd `cmd:"" help:"Delete stored results by digest"`
}

type CacheListCmd struct{}

func (c *CacheListCmd) Run(ctx context.Context, g *Globals) error {
	st, err := g.requireStore()
	if err != nil {
		return err
	}
	defer st.Close()

	records, err := st.List(ctx)
	if err != nil {
		return err
	}
	for _, r := range records {
		g.printf("%s  %-6s  %4d  %5d  %s  [%s]  %s\n", r.Digest, r.Format, r.Diagnostics,
			r.MaxSeverity, r.CreatedAt.Local().Format(time.DateTime), r.Settings, r.Name)
	}
	return nil
}

type CacheDeleteCmd struct {
	Digests []string `arg:"" help:"Digests to delete"`
}

func (c *CacheDeleteCmd) Run(ctx context.Context, g *Globals) error {
	st, err := g.requireStore()
	if err != nil {
		return err
	}
	defer st.Close()

	for _, d := range c.Digests {
		if err := st.Delete(ctx, d); err != nil {
			return err
		}
		logging.StoreEvent("delete", d)
	}
	return nil
}

func (g *Globals) requireStore() (*store.Store, error) {
	if g.Store == "" {
		return nil, fmt.Errorf("%w: --store is required", cperrors.ErrInvalidInput)
	}
	return g.openStore()
}
