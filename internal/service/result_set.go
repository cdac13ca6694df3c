package service

import (
	"errors"

	"github.com/meoying/shardingfed/internal/errs"
	"github.com/meoying/shardingfed/internal/executor"
	"github.com/meoying/shardingfed/internal/merge"
	"github.com/meoying/shardingfed/internal/statement"
)

// ResultSet 合并之后的结果，隐藏了改写时追加的派生列
type ResultSet struct {
	merged  merge.MergedResult
	results []*executor.RowsQueryResult
	columns []string
}

func newResultSet(merged merge.MergedResult, results []*executor.RowsQueryResult,
	stmt *statement.SelectStatement) (*ResultSet, error) {
	var columns []string
	if len(results) > 0 {
		for i := 1; i <= results[0].ColumnCount(); i++ {
			label, err := results[0].ColumnLabel(i)
			if err != nil {
				executor.CloseAll(results)
				return nil, err
			}
			columns = append(columns, label)
		}
	} else if stmt != nil {
		for _, p := range stmt.Projections {
			columns = append(columns, p.Label())
		}
	}
	if stmt != nil {
		if cnt := stmt.VisibleColumnCount(); cnt >= 0 && cnt < len(columns) {
			columns = columns[:cnt]
		}
	}
	return &ResultSet{merged: merged, results: results, columns: columns}, nil
}

// Columns 返回给用户的列
func (r *ResultSet) Columns() []string {
	return r.columns
}

func (r *ResultSet) Next() (bool, error) {
	return r.merged.Next()
}

// Value 列下标从 1 开始
func (r *ResultSet) Value(columnIndex int) (any, error) {
	if columnIndex < 1 || columnIndex > len(r.columns) {
		return nil, errs.NewColumnIndexOutOfRangeError(columnIndex, len(r.columns))
	}
	return r.merged.Value(columnIndex)
}

// Row 当前行的全部可见列
func (r *ResultSet) Row() ([]any, error) {
	row := make([]any, 0, len(r.columns))
	for i := 1; i <= len(r.columns); i++ {
		v, err := r.Value(i)
		if err != nil {
			return nil, err
		}
		row = append(row, v)
	}
	return row, nil
}

// Close 关闭所有分片的游标
func (r *ResultSet) Close() error {
	var err error
	for _, res := range r.results {
		err = errors.Join(err, res.Close())
	}
	return err
}
