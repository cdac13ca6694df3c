package merge

// PaginationMergedResult 在合并结果上跳过 offset 行，最多返回 rowCount 行。
// 各个方言的分页写法都先换算成 offset 和 rowCount
type PaginationMergedResult struct {
	mode     PaginationMode
	merged   MergedResult
	offset   int64
	rowCount int64

	skipped  bool
	returned int64
	err      error
}

func newPaginationMergedResult(mode PaginationMode, merged MergedResult, offset, rowCount int64) *PaginationMergedResult {
	return &PaginationMergedResult{mode: mode, merged: merged, offset: offset, rowCount: rowCount}
}

func (m *PaginationMergedResult) Mode() PaginationMode {
	return m.mode
}

// MergedResult 被装饰的合并结果
func (m *PaginationMergedResult) MergedResult() MergedResult {
	return m.merged
}

func (m *PaginationMergedResult) Offset() int64 {
	return m.offset
}

// RowCount 小于 0 表示没有限制
func (m *PaginationMergedResult) RowCount() int64 {
	return m.rowCount
}

func (m *PaginationMergedResult) Next() (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	if !m.skipped {
		m.skipped = true
		for i := int64(0); i < m.offset; i++ {
			ok, err := m.merged.Next()
			if err != nil {
				m.err = err
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
	}
	if m.rowCount >= 0 && m.returned >= m.rowCount {
		return false, nil
	}
	ok, err := m.merged.Next()
	if err != nil {
		m.err = err
		return false, err
	}
	if ok {
		m.returned++
	}
	return ok, nil
}

func (m *PaginationMergedResult) Value(columnIndex int) (any, error) {
	return m.merged.Value(columnIndex)
}
