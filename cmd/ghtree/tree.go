package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/vanderheijden86/ghtree/pkg/filter"
	"github.com/vanderheijden86/ghtree/pkg/loader"
	"github.com/vanderheijden86/ghtree/pkg/model"
	"github.com/vanderheijden86/ghtree/pkg/session"
	"github.com/vanderheijden86/ghtree/pkg/view"
)

type treeOptions struct {
	orgs    []string
	expand  bool
	yes     bool
	search  string
	types   []string
	flat    bool
	sort    string
	desc    bool
	page    int
	jsonOut bool
}

// filterAndSort validates the filter and sort flags.
func (o treeOptions) filterAndSort() (filter.Options, view.SortSpec, error) {
	opts := filter.Options{SearchText: o.search}
	for _, t := range o.types {
		nt := model.NodeType(t)
		if !nt.IsValid() {
			return filter.Options{}, view.SortSpec{}, fmt.Errorf("--type: unknown node type %q", t)
		}
		opts.SelectedTypes = append(opts.SelectedTypes, nt)
	}
	col, err := view.ParseColumn(o.sort)
	if err != nil {
		return filter.Options{}, view.SortSpec{}, fmt.Errorf("--sort: %w", err)
	}
	return opts, view.SortSpec{Column: col, Descending: o.desc}, nil
}

func (a *app) newTreeCmd() *cobra.Command {
	var o treeOptions
	cmd := &cobra.Command{
		Use:   "tree",
		Short: "Print the resource tree",
		Long: `Print organizations and repositories as a tree, or with --flat as a sorted,
paginated table of the items inside loaded repositories.

A search or a detail type filter loads the enabled repositories first. Loading
10 or more repositories asks for confirmation; --yes skips the question, and
without a terminal the load is skipped unless --yes is given.`,
		Example: `  ghtree tree --org acme
  ghtree tree --expand --yes --flat --sort updated_at --desc
  ghtree tree --search deploy --type workflow_run`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runTree(cmd, o)
		},
	}
	f := cmd.Flags()
	f.StringSliceVar(&o.orgs, "orgs", nil, "owners to list (default from github.organization)")
	f.BoolVar(&o.expand, "expand", false, "load details of every enabled repository")
	f.BoolVarP(&o.yes, "yes", "y", false, "load large batches without asking")
	f.StringVar(&o.search, "search", "", "case-insensitive text to match")
	f.StringSliceVar(&o.types, "type", nil, "node types to keep, e.g. issue,pull_request")
	f.BoolVar(&o.flat, "flat", false, "print items as a table instead of a tree")
	f.StringVar(&o.sort, "sort", string(view.ColumnPath), "sort column for --flat: path, name, type, status, created_at, updated_at")
	f.BoolVar(&o.desc, "desc", false, "sort descending")
	f.IntVar(&o.page, "page", 1, "page number for --flat")
	f.Int("page-size", 0, "rows per page for --flat (default ui.page_size)")
	f.BoolVar(&o.jsonOut, "json", false, "print JSON")
	return cmd
}

func (a *app) runTree(cmd *cobra.Command, o treeOptions) error {
	opts, spec, err := o.filterAndSort()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	cfg := a.manager.Get()
	stderr := cmd.ErrOrStderr()

	c, err := a.client(ctx, cfg)
	if err != nil {
		return err
	}
	local := a.openLocal()
	if local != nil {
		defer local.Close()
	}

	sess := session.New(session.Config{
		Settings: a.sessionSettings(c, local, o.orgs),
		Confirm:  batchConfirmer(stderr, o.yes, isTerminal(os.Stdin)),
		Progress: progressPrinter(stderr, isTerminal(os.Stderr)),
		Logger:   a.logger,
	})
	defer sess.Close()

	if err := sess.Load(ctx); err != nil {
		return err
	}
	if o.expand {
		res, err := sess.ExpandAll(ctx)
		if err := reportBatch(stderr, res, err); err != nil {
			return err
		}
	} else if opts.NeedsDetails() {
		res, err := sess.DeepSearch(ctx, opts)
		if err := reportBatch(stderr, res, err); err != nil {
			return err
		}
	}

	roots := filter.Apply(sess.Store.Snapshot(), opts)
	out := cmd.OutOrStdout()
	if !o.flat {
		if o.jsonOut {
			return writeJSON(out, roots)
		}
		printTree(out, roots, terminalWidth())
		return nil
	}

	rows := view.Flatten(roots)
	view.Sort(rows, spec)
	page, info := view.Page(rows, o.page-1, cfg.UI.PageSize)
	if o.jsonOut {
		return writeJSON(out, page)
	}
	renderRows(out, page, info)
	return nil
}

// reportBatch prints the outcome of a batch load. A declined batch is not
// an error: the tree is printed with what is loaded.
func reportBatch(w io.Writer, res loader.Result, err error) error {
	switch {
	case errors.Is(err, loader.ErrDeclined):
		fmt.Fprintln(w, "Repository details not loaded.")
		return nil
	case err != nil:
		return err
	}
	if n := len(res.Failed); n > 0 {
		fmt.Fprintf(w, "Could not load %d of %d repositories; see the log for details.\n", n, res.Total())
	}
	return nil
}

// progressPrinter reports batch progress on one terminal line.
func progressPrinter(w io.Writer, tty bool) loader.Progress {
	if !tty {
		return nil
	}
	return func(current, total int) {
		fmt.Fprintf(w, "\rLoading repository details %d/%d", current, total)
		if current == total {
			fmt.Fprintln(w)
		}
	}
}
