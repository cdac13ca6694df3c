package merge

import (
	"fmt"
	"sort"
	"strings"

	"github.com/meoying/shardingfed/internal/errs"
	"github.com/meoying/shardingfed/internal/statement"
)

// rowSpec 每一列怎么合并
type rowSpec struct {
	width int
	aggs  []statement.Projection
}

func newRowSpec(stmt *statement.SelectStatement, width int) (*rowSpec, error) {
	spec := &rowSpec{width: width, aggs: make([]statement.Projection, width)}
	for i := 1; i <= width; i++ {
		p, ok := stmt.ProjectionAt(i)
		if !ok || p.Aggregation == statement.AggNone {
			continue
		}
		if p.Aggregation == statement.AggAvg {
			if p.DerivedSum < 1 || p.DerivedSum > width || p.DerivedCount < 1 || p.DerivedCount > width {
				return nil, errs.NewUnsupportedStatementError(fmt.Sprintf("AVG 列 %s 缺少派生的 SUM 和 COUNT 列", p.Label()))
			}
		}
		spec.aggs[i-1] = p
	}
	return spec, nil
}

func (s *rowSpec) newGroup() *group {
	g := &group{
		spec:   s,
		values: make([]any, s.width),
		aggs:   make([]aggregator, s.width),
		avgs:   make([]*avgAggregator, s.width),
	}
	for i, p := range s.aggs {
		switch p.Aggregation {
		case statement.AggNone:
		case statement.AggAvg:
			g.avgs[i] = &avgAggregator{count: sumAggregator{count: true}}
		default:
			g.aggs[i] = newAggregator(p.Aggregation)
		}
	}
	return g
}

// group 一组数据的合并状态，非聚合列取这一组第一行的值
type group struct {
	spec   *rowSpec
	values []any
	aggs   []aggregator
	avgs   []*avgAggregator
	rows   int
}

func (g *group) add(row []any) error {
	if g.rows == 0 {
		copy(g.values, row)
	}
	g.rows++
	for i := range row {
		if g.aggs[i] != nil {
			if err := g.aggs[i].merge(row[i]); err != nil {
				return err
			}
		}
		if g.avgs[i] != nil {
			p := g.spec.aggs[i]
			if err := g.avgs[i].mergeDerived(row[p.DerivedSum-1], row[p.DerivedCount-1]); err != nil {
				return err
			}
		}
	}
	return nil
}

func (g *group) row() []any {
	res := make([]any, g.spec.width)
	for i := range res {
		switch {
		case g.aggs[i] != nil:
			res[i] = g.aggs[i].result()
		case g.avgs[i] != nil:
			res[i] = g.avgs[i].result()
		default:
			res[i] = g.values[i]
		}
	}
	return res
}

func readRow(r QueryResult, width int) ([]any, error) {
	row := make([]any, width)
	for i := range row {
		v, err := r.Value(i + 1)
		if err != nil {
			return nil, err
		}
		row[i] = v
	}
	return row, nil
}

func rowValue(row []any, columnIndex int) (any, error) {
	if row == nil || columnIndex < 1 || columnIndex > len(row) {
		return nil, errs.NewColumnIndexOutOfRangeError(columnIndex, len(row))
	}
	return row[columnIndex-1], nil
}

// GroupByStreamMergedResult 每个分片已经按照分组键排好序，
// 每次归并出一组，同一组的行来自排序键相同的那些游标
type GroupByStreamMergedResult struct {
	merger  *kWayMerger
	spec    *rowSpec
	current []any
	err     error
}

func newGroupByStreamMergedResult(results []QueryResult, cols columns, spec *rowSpec) *GroupByStreamMergedResult {
	return &GroupByStreamMergedResult{merger: newKWayMerger(results, cols), spec: spec}
}

func (m *GroupByStreamMergedResult) Next() (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	if err := m.next(); err != nil {
		m.err = err
		m.current = nil
		return false, err
	}
	return m.current != nil, nil
}

func (m *GroupByStreamMergedResult) next() error {
	if err := m.merger.init(); err != nil {
		return err
	}
	c := m.merger.pop()
	if c == nil {
		m.current = nil
		return nil
	}
	keys := append([]any(nil), c.keys...)
	g := m.spec.newGroup()
	for {
		row, err := readRow(c.result, m.spec.width)
		if err != nil {
			return err
		}
		if err = g.add(row); err != nil {
			return err
		}
		if err = m.merger.push(c); err != nil {
			return err
		}
		if !m.merger.peekSame(keys) {
			break
		}
		c = m.merger.pop()
	}
	m.current = g.row()
	return nil
}

func (m *GroupByStreamMergedResult) Value(columnIndex int) (any, error) {
	return rowValue(m.current, columnIndex)
}

// GroupByMemoryMergedResult 把所有分片的数据读到内存里再分组，
// 第一次调用 Next 的时候读取全部数据
type GroupByMemoryMergedResult struct {
	results []QueryResult
	groupBy columns
	orderBy columns
	spec    *rowSpec
	// single 没有 GROUP BY 的聚合查询，没有数据也要返回一行
	single bool

	loaded bool
	rows   [][]any
	idx    int
	err    error
}

func newGroupByMemoryMergedResult(results []QueryResult, groupBy, orderBy columns,
	spec *rowSpec, single bool) *GroupByMemoryMergedResult {
	return &GroupByMemoryMergedResult{
		results: results,
		groupBy: groupBy,
		orderBy: orderBy,
		spec:    spec,
		single:  single,
	}
}

func (m *GroupByMemoryMergedResult) Next() (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	if !m.loaded {
		m.loaded = true
		if err := m.load(); err != nil {
			m.err = err
			return false, err
		}
		m.idx = -1
	}
	if m.idx+1 >= len(m.rows) {
		m.idx = len(m.rows)
		return false, nil
	}
	m.idx++
	return true, nil
}

func (m *GroupByMemoryMergedResult) load() error {
	groups := make(map[string]*group, 16)
	var ordered []*group
	for _, r := range m.results {
		for {
			ok, err := r.Next()
			if err != nil {
				return err
			}
			if !ok {
				break
			}
			row, err := readRow(r, m.spec.width)
			if err != nil {
				return err
			}
			key := m.key(row)
			g, ok := groups[key]
			if !ok {
				g = m.spec.newGroup()
				groups[key] = g
				ordered = append(ordered, g)
			}
			if err = g.add(row); err != nil {
				return err
			}
		}
	}
	if len(ordered) == 0 && m.single {
		ordered = append(ordered, m.spec.newGroup())
	}
	m.rows = make([][]any, 0, len(ordered))
	for _, g := range ordered {
		m.rows = append(m.rows, g.row())
	}
	if len(m.orderBy) > 0 {
		sort.SliceStable(m.rows, func(i, j int) bool {
			return compareRows(m.orderBy, m.rows[i], m.rows[j]) < 0
		})
	}
	return nil
}

func (m *GroupByMemoryMergedResult) key(row []any) string {
	var sb strings.Builder
	for _, c := range m.groupBy {
		v := row[c.index-1]
		if v == nil {
			sb.WriteByte(0)
		} else {
			s := toString(v)
			if !c.caseSensitive {
				s = strings.ToLower(s)
			}
			sb.WriteByte(1)
			sb.WriteString(s)
		}
		sb.WriteByte(0x1f)
	}
	return sb.String()
}

func (m *GroupByMemoryMergedResult) Value(columnIndex int) (any, error) {
	if m.idx < 0 || m.idx >= len(m.rows) {
		return nil, errs.NewColumnIndexOutOfRangeError(columnIndex, 0)
	}
	return rowValue(m.rows[m.idx], columnIndex)
}

func compareRows(cols columns, a, b []any) int {
	for _, c := range cols {
		if res := c.compare(a[c.index-1], b[c.index-1]); res != 0 {
			return res
		}
	}
	return 0
}
