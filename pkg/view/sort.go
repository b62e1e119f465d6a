package view

import (
	"cmp"
	"fmt"
	"slices"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/vanderheijden86/ghtree/pkg/metrics"
	"github.com/vanderheijden86/ghtree/pkg/model"
)

// Column is a sortable list column.
type Column string

const (
	ColumnPath      Column = "path"
	ColumnName      Column = "name"
	ColumnType      Column = "type"
	ColumnStatus    Column = "status"
	ColumnCreatedAt Column = "created_at"
	ColumnUpdatedAt Column = "updated_at"
)

// Columns returns the sortable columns in cycling order.
func Columns() []Column {
	return []Column{ColumnPath, ColumnName, ColumnType, ColumnStatus, ColumnCreatedAt, ColumnUpdatedAt}
}

// ParseColumn validates a column name.
func ParseColumn(s string) (Column, error) {
	for _, c := range Columns() {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown sort column %q", s)
}

// IsTimestamp reports whether the column holds timestamps.
func (c Column) IsTimestamp() bool {
	return c == ColumnCreatedAt || c == ColumnUpdatedAt
}

// Next returns the column after c in cycling order.
func (c Column) Next() Column {
	cols := Columns()
	i := slices.Index(cols, c)
	return cols[(i+1)%len(cols)]
}

// SortSpec selects the sort column and direction.
type SortSpec struct {
	Column     Column
	Descending bool
}

// DefaultSort orders rows by path.
var DefaultSort = SortSpec{Column: ColumnPath}

// Sort stably sorts rows in place. Strings compare with the root Unicode
// collation; timestamps compare as instants, with missing or unparsable
// values ordered before any real time.
func Sort(rows []model.FlatNode, spec SortSpec) {
	if len(rows) < 2 {
		return
	}
	defer metrics.Timer(metrics.SortRows)()

	col := spec.Column
	if col == "" {
		col = ColumnPath
	}

	var compare func(a, b *model.FlatNode) int
	if col.IsTimestamp() {
		key := string(col)
		compare = func(a, b *model.FlatNode) int {
			return cmp.Compare(instant(a.Metadata, key), instant(b.Metadata, key))
		}
	} else {
		collator := collate.New(language.Und)
		compare = func(a, b *model.FlatNode) int {
			return collator.CompareString(stringField(a, col), stringField(b, col))
		}
	}

	slices.SortStableFunc(rows, func(a, b model.FlatNode) int {
		c := compare(&a, &b)
		if spec.Descending {
			return -c
		}
		return c
	})
}

func stringField(n *model.FlatNode, col Column) string {
	switch col {
	case ColumnName:
		return n.Name
	case ColumnType:
		return string(n.Type)
	case ColumnStatus:
		return n.Status
	default:
		return n.Path
	}
}

// instant returns the Unix nanoseconds of an RFC3339 metadata timestamp, or
// the minimum int64 when absent.
func instant(meta map[string]any, key string) int64 {
	const missing = -1 << 63
	switch v := meta[key].(type) {
	case string:
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return missing
		}
		return t.UnixNano()
	case time.Time:
		return v.UnixNano()
	default:
		return missing
	}
}
