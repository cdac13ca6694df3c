package merge

import (
	"testing"

	"github.com/meoying/shardingfed/internal/errs"
	"github.com/stretchr/testify/require"
)

// memResult 内存里的分片结果集
type memResult struct {
	labels []string
	types  []string
	rows   [][]any
	idx    int

	// errAt 第几次调用 Next 的时候返回 err
	errAt int
	err   error
	calls int
}

func newMemResult(labels []string, rows ...[]any) *memResult {
	return &memResult{labels: labels, rows: rows, idx: -1}
}

func (m *memResult) Next() (bool, error) {
	m.calls++
	if m.errAt > 0 && m.calls == m.errAt {
		return false, m.err
	}
	if m.idx+1 >= len(m.rows) {
		m.idx = len(m.rows)
		return false, nil
	}
	m.idx++
	return true, nil
}

func (m *memResult) Value(columnIndex int) (any, error) {
	if m.idx < 0 || m.idx >= len(m.rows) {
		return nil, errs.NewColumnIndexOutOfRangeError(columnIndex, 0)
	}
	row := m.rows[m.idx]
	if columnIndex < 1 || columnIndex > len(row) {
		return nil, errs.NewColumnIndexOutOfRangeError(columnIndex, len(row))
	}
	return row[columnIndex-1], nil
}

func (m *memResult) ColumnCount() int {
	return len(m.labels)
}

func (m *memResult) ColumnLabel(columnIndex int) (string, error) {
	if columnIndex < 1 || columnIndex > len(m.labels) {
		return "", errs.NewColumnIndexOutOfRangeError(columnIndex, len(m.labels))
	}
	return m.labels[columnIndex-1], nil
}

func (m *memResult) ColumnTypeName(columnIndex int) string {
	if columnIndex < 1 || columnIndex > len(m.types) {
		return ""
	}
	return m.types[columnIndex-1]
}

func row(values ...any) []any {
	return values
}

// collect 读出所有的行
func collect(t *testing.T, r MergedResult, width int) [][]any {
	var res [][]any
	for {
		ok, err := r.Next()
		require.NoError(t, err)
		if !ok {
			return res
		}
		line := make([]any, width)
		for i := range line {
			line[i], err = r.Value(i + 1)
			require.NoError(t, err)
		}
		res = append(res, line)
	}
}
