package merge

import "github.com/meoying/shardingfed/internal/errs"

// OrderByStreamMergedResult 每个分片已经按照 ORDER BY 排好序，这里做多路归并
type OrderByStreamMergedResult struct {
	merger  *kWayMerger
	current *cursor
	err     error
}

func newOrderByStreamMergedResult(results []QueryResult, cols columns) *OrderByStreamMergedResult {
	return &OrderByStreamMergedResult{merger: newKWayMerger(results, cols)}
}

func (m *OrderByStreamMergedResult) Next() (bool, error) {
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

func (m *OrderByStreamMergedResult) next() error {
	if !m.merger.inited {
		if err := m.merger.init(); err != nil {
			return err
		}
	} else if m.current != nil {
		// 上一次返回的游标这个时候才前进
		if err := m.merger.push(m.current); err != nil {
			return err
		}
	}
	m.current = m.merger.pop()
	return nil
}

func (m *OrderByStreamMergedResult) Value(columnIndex int) (any, error) {
	if m.current == nil {
		return nil, errs.NewColumnIndexOutOfRangeError(columnIndex, 0)
	}
	return m.current.result.Value(columnIndex)
}
