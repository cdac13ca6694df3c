package merge

import (
	"log/slog"
	"strings"

	"github.com/meoying/shardingfed/internal/errs"
	"github.com/meoying/shardingfed/internal/statement"
)

// Engine 根据查询语句的形态选择合并方式
type Engine struct {
	dialect statement.Dialect
	logger  *slog.Logger
}

func NewEngine(dialect statement.Dialect) *Engine {
	return &Engine{dialect: dialect, logger: slog.Default()}
}

func (e *Engine) Dialect() statement.Dialect {
	return e.dialect
}

// Merge 合并多个分片的结果集。
// 列元数据不一致会立刻返回错误；读分片数据出错的时候，错误原样从 Next 返回
func (e *Engine) Merge(results []QueryResult, stmt *statement.SelectStatement, schema *Schema) (MergedResult, error) {
	labels, err := checkMetadata(results)
	if err != nil {
		return nil, err
	}
	plan := Plan(e.dialect, stmt)
	e.logger.Debug("合并结果集",
		slog.String("dialect", e.dialect.String()),
		slog.String("kind", plan.Kind.String()),
		slog.String("pagination", plan.Pagination.String()),
		slog.Int("shards", len(results)))
	base, err := e.build(plan.Kind, results, labels, stmt, schema)
	if err != nil {
		return nil, err
	}
	if plan.Pagination == PaginationNone {
		return base, nil
	}
	return newPaginationMergedResult(plan.Pagination, base, plan.Offset, plan.RowCount), nil
}

func (e *Engine) build(kind Kind, results []QueryResult, labels []string,
	stmt *statement.SelectStatement, schema *Schema) (MergedResult, error) {
	if kind == KindIterator {
		return NewIteratorMergedResult(results), nil
	}
	if len(results) == 0 {
		return e.buildEmpty(kind, stmt)
	}
	width := len(labels)
	orderBy, err := resolveColumns(stmt.OrderBy, labels, stmt, e.dialect, schema)
	if err != nil {
		return nil, err
	}
	switch kind {
	case KindOrderByStream:
		return newOrderByStreamMergedResult(results, orderBy), nil
	case KindGroupByStream:
		items := stmt.GroupBy
		if len(stmt.OrderBy) > 0 {
			items = stmt.OrderBy
		}
		groupBy, err := resolveColumns(items, labels, stmt, e.dialect, schema)
		if err != nil {
			return nil, err
		}
		spec, err := newRowSpec(stmt, width)
		if err != nil {
			return nil, err
		}
		return newGroupByStreamMergedResult(results, groupBy, spec), nil
	default:
		items := stmt.GroupBy
		if len(items) == 0 && stmt.Distinct {
			items = distinctItems(width)
		}
		groupBy, err := resolveColumns(items, labels, stmt, e.dialect, schema)
		if err != nil {
			return nil, err
		}
		spec, err := newRowSpec(stmt, width)
		if err != nil {
			return nil, err
		}
		single := len(stmt.GroupBy) == 0 && stmt.HasAggregation()
		return newGroupByMemoryMergedResult(results, groupBy, orderBy, spec, single), nil
	}
}

// buildEmpty 没有分片的时候合并方式不变，只是没有列可以比较。
// 列数按照投影计算，没有分组的聚合查询仍然返回一行
func (e *Engine) buildEmpty(kind Kind, stmt *statement.SelectStatement) (MergedResult, error) {
	switch kind {
	case KindOrderByStream:
		return newOrderByStreamMergedResult(nil, nil), nil
	case KindGroupByStream:
		return newGroupByStreamMergedResult(nil, nil, &rowSpec{}), nil
	default:
		spec, err := newRowSpec(stmt, len(stmt.Projections))
		if err != nil {
			return nil, err
		}
		single := len(stmt.GroupBy) == 0 && stmt.HasAggregation()
		return newGroupByMemoryMergedResult(nil, nil, nil, spec, single), nil
	}
}

// distinctItems DISTINCT 等价于按照所有列分组
func distinctItems(width int) []statement.OrderByItem {
	res := make([]statement.OrderByItem, 0, width)
	for i := 1; i <= width; i++ {
		res = append(res, statement.OrderByItem{Index: i})
	}
	return res
}

// checkMetadata 所有分片的列数、列名和类型必须一致，返回第一个分片的列名
func checkMetadata(results []QueryResult) ([]string, error) {
	if len(results) == 0 {
		return nil, nil
	}
	first := results[0]
	cnt := first.ColumnCount()
	labels := make([]string, cnt)
	for i := 1; i <= cnt; i++ {
		l, err := first.ColumnLabel(i)
		if err != nil {
			return nil, err
		}
		labels[i-1] = l
	}
	for shard, r := range results[1:] {
		if r.ColumnCount() != cnt {
			return nil, errs.NewColumnCountMismatchError(shard+1, cnt, r.ColumnCount())
		}
		for i := 1; i <= cnt; i++ {
			l, err := r.ColumnLabel(i)
			if err != nil {
				return nil, err
			}
			if !strings.EqualFold(l, labels[i-1]) {
				return nil, errs.NewColumnMismatchError(shard+1, i, labels[i-1], l)
			}
			want, got := first.ColumnTypeName(i), r.ColumnTypeName(i)
			if want != "" && got != "" && !strings.EqualFold(want, got) {
				return nil, errs.NewColumnMismatchError(shard+1, i, want, got)
			}
		}
	}
	return labels, nil
}
