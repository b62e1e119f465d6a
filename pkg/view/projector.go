package view

import (
	"slices"

	"github.com/vanderheijden86/ghtree/pkg/debug"
	"github.com/vanderheijden86/ghtree/pkg/filter"
	"github.com/vanderheijden86/ghtree/pkg/model"
)

// DefaultPageSize is used when no page size is configured.
const DefaultPageSize = 50

// PageInfo describes one page of rows.
type PageInfo struct {
	Index int // zero-based, clamped to the last page
	Size  int
	Total int // total rows
	Pages int // at least 1
	Start int // index of the first row on the page
	End   int // one past the last row on the page
}

// HasNext reports whether a later page exists.
func (p PageInfo) HasNext() bool { return p.Index+1 < p.Pages }

// HasPrev reports whether an earlier page exists.
func (p PageInfo) HasPrev() bool { return p.Index > 0 }

// Page slices rows to page index of the given size. A size <= 0 puts every
// row on a single page.
func Page(rows []model.FlatNode, index, size int) ([]model.FlatNode, PageInfo) {
	total := len(rows)
	if size <= 0 {
		size = max(total, 1)
	}
	pages := max((total+size-1)/size, 1)
	index = min(max(index, 0), pages-1)
	start := min(index*size, total)
	end := min(start+size, total)
	return rows[start:end], PageInfo{
		Index: index,
		Size:  size,
		Total: total,
		Pages: pages,
		Start: start,
		End:   end,
	}
}

// Projection is everything the UI needs to render one frame.
type Projection struct {
	// Tree is the filtered tree for the tree view.
	Tree []*model.TreeNode
	// Rows is every flattened row of Tree, sorted.
	Rows []model.FlatNode
	// PageRows is the current page of Rows.
	PageRows []model.FlatNode
	Page     PageInfo
}

// Projector keeps filter, sort and page state and derives projections from
// tree snapshots. It memoizes the filter and flatten work per store version.
// A Projector is owned by one goroutine (the UI loop).
type Projector struct {
	opts     filter.Options
	sort     SortSpec
	pageSize int
	page     int

	version  uint64
	haveTree bool
	applied  filter.Options
	sorted   SortSpec
	filtered []*model.TreeNode
	rows     []model.FlatNode
}

// NewProjector creates a Projector. pageSize <= 0 uses DefaultPageSize.
func NewProjector(pageSize int) *Projector {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Projector{pageSize: pageSize, sort: DefaultSort}
}

// Filter returns the active filter.
func (p *Projector) Filter() filter.Options { return p.opts }

// SetFilter replaces the filter. A different filter resets the page.
func (p *Projector) SetFilter(opts filter.Options) {
	if !opts.Equal(p.opts) {
		p.page = 0
	}
	p.opts = opts
}

// SortSpec returns the active sort.
func (p *Projector) SortSpec() SortSpec { return p.sort }

// SetSort replaces the sort. The page index is kept.
func (p *Projector) SetSort(spec SortSpec) {
	if spec.Column == "" {
		spec.Column = ColumnPath
	}
	p.sort = spec
}

// PageIndex returns the requested page index.
func (p *Projector) PageIndex() int { return p.page }

// SetPage requests a page. It is clamped on the next Project.
func (p *Projector) SetPage(index int) { p.page = max(index, 0) }

// PageSize returns the page size.
func (p *Projector) PageSize() int { return p.pageSize }

// SetPageSize changes the page size and resets the page.
func (p *Projector) SetPageSize(size int) {
	if size <= 0 {
		size = DefaultPageSize
	}
	if size != p.pageSize {
		p.page = 0
	}
	p.pageSize = size
}

// Project derives the projection of roots, which must be the store snapshot
// at version. A new version resets the page to the first one.
func (p *Projector) Project(roots []*model.TreeNode, version uint64) Projection {
	refilter := !p.haveTree || version != p.version || !p.opts.Equal(p.applied)
	if p.haveTree && version != p.version {
		p.page = 0
	}
	if refilter {
		p.filtered = filter.Apply(roots, p.opts)
		p.rows = Flatten(p.filtered)
		Sort(p.rows, p.sort)
		p.version = version
		p.applied = p.opts
		p.sorted = p.sort
		p.haveTree = true
		debug.Log("view: reprojected version %d, %d rows", version, len(p.rows))
	} else if p.sort != p.sorted {
		// Rows handed out earlier stay as they were.
		p.rows = slices.Clone(p.rows)
		Sort(p.rows, p.sort)
		p.sorted = p.sort
	}

	pageRows, info := Page(p.rows, p.page, p.pageSize)
	p.page = info.Index
	return Projection{
		Tree:     p.filtered,
		Rows:     p.rows,
		PageRows: pageRows,
		Page:     info,
	}
}
