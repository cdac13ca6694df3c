package merge

import "github.com/meoying/shardingfed/internal/errs"

// IteratorMergedResult 按照路由顺序依次遍历每个分片，不保证顺序
type IteratorMergedResult struct {
	results []QueryResult
	idx     int
	err     error
}

func NewIteratorMergedResult(results []QueryResult) *IteratorMergedResult {
	return &IteratorMergedResult{results: results}
}

func (m *IteratorMergedResult) Next() (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	for m.idx < len(m.results) {
		ok, err := m.results[m.idx].Next()
		if err != nil {
			m.err = err
			return false, err
		}
		if ok {
			return true, nil
		}
		m.idx++
	}
	return false, nil
}

func (m *IteratorMergedResult) Value(columnIndex int) (any, error) {
	if m.idx >= len(m.results) {
		return nil, errs.NewColumnIndexOutOfRangeError(columnIndex, 0)
	}
	return m.results[m.idx].Value(columnIndex)
}
