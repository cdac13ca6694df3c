package merge

import (
	"strings"

	"github.com/meoying/shardingfed/internal/statement"
)

type Kind uint8

const (
	KindIterator Kind = iota
	KindOrderByStream
	KindGroupByStream
	KindGroupByMemory
)

func (k Kind) String() string {
	switch k {
	case KindOrderByStream:
		return "OrderByStream"
	case KindGroupByStream:
		return "GroupByStream"
	case KindGroupByMemory:
		return "GroupByMemory"
	default:
		return "Iterator"
	}
}

type PaginationMode uint8

const (
	PaginationNone PaginationMode = iota
	PaginationMySQLLimit
	PaginationOracleRowNumber
	PaginationSQLServerTopRowNumber
)

func (p PaginationMode) String() string {
	switch p {
	case PaginationMySQLLimit:
		return "MySQLLimit"
	case PaginationOracleRowNumber:
		return "OracleRowNumber"
	case PaginationSQLServerTopRowNumber:
		return "SQLServerTopRowNumber"
	default:
		return "None"
	}
}

// MergePlan 合并方式只由语句的形态决定，和数据、分片数量都没有关系
type MergePlan struct {
	Kind       Kind
	Pagination PaginationMode
	Offset     int64
	// RowCount 小于 0 表示没有限制
	RowCount int64
}

func Plan(dialect statement.Dialect, stmt *statement.SelectStatement) MergePlan {
	p := MergePlan{Kind: planKind(stmt), RowCount: -1}
	switch dialect {
	case statement.Oracle:
		planOracle(stmt, &p)
	case statement.SQLServer:
		planSQLServer(stmt, &p)
	default:
		if stmt.Limit != nil {
			p.Pagination = PaginationMySQLLimit
			p.Offset = stmt.Limit.Offset
			p.RowCount = stmt.Limit.RowCount
		}
	}
	return p
}

func planKind(stmt *statement.SelectStatement) Kind {
	switch {
	case len(stmt.GroupBy) > 0:
		if len(stmt.OrderBy) == 0 || sameItems(stmt.GroupBy, stmt.OrderBy) {
			return KindGroupByStream
		}
		return KindGroupByMemory
	case stmt.Distinct, stmt.HasAggregation():
		return KindGroupByMemory
	case len(stmt.OrderBy) > 0:
		return KindOrderByStream
	default:
		return KindIterator
	}
}

func sameItems(a, b []statement.OrderByItem) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].SameAs(b[i]) {
			return false
		}
	}
	return true
}

// planOracle 只有子查询把 ROWNUM 起了别名，并且外层用这个别名过滤的时候才分页
func planOracle(stmt *statement.SelectStatement, p *MergePlan) {
	rn := stmt.RowNumber
	if rn == nil || stmt.Subquery == nil {
		return
	}
	if !hasAliasOf(stmt.Subquery, rn.Column, "rownum") {
		return
	}
	p.Pagination = PaginationOracleRowNumber
	p.Offset, p.RowCount = window(rn.Lower, rn.Upper)
}

// planSQLServer TOP 决定结束位置，ROW_NUMBER 别名上的下界决定偏移量
func planSQLServer(stmt *statement.SelectStatement, p *MergePlan) {
	top := stmt.Top
	sub := stmt.Subquery
	if top == nil && sub != nil {
		top = sub.Top
	}
	if top == nil {
		return
	}
	p.Pagination = PaginationSQLServerTopRowNumber
	upper := &statement.Bound{Value: top.Count, Inclusive: true}
	var lower *statement.Bound
	if rn := stmt.RowNumber; rn != nil && sub != nil && hasAliasOf(sub, rn.Column, "row_number") {
		lower = rn.Lower
	}
	p.Offset, p.RowCount = window(lower, upper)
}

// window 行号从 1 开始，> a 跳过 a 行，>= a 跳过 a-1 行；<= b 结束于 b，< b 结束于 b-1
func window(lower, upper *statement.Bound) (int64, int64) {
	var offset int64
	if lower != nil {
		offset = lower.Value
		if lower.Inclusive {
			offset--
		}
		if offset < 0 {
			offset = 0
		}
	}
	rowCount := int64(-1)
	if upper != nil {
		end := upper.Value
		if !upper.Inclusive {
			end--
		}
		rowCount = end - offset
		if rowCount < 0 {
			rowCount = 0
		}
	}
	return offset, rowCount
}

func hasAliasOf(stmt *statement.SelectStatement, alias, expressionPrefix string) bool {
	name := statement.Unqualified(alias)
	for _, p := range stmt.Projections {
		if strings.EqualFold(p.Alias, name) &&
			strings.HasPrefix(strings.ToLower(strings.TrimSpace(p.Expression)), expressionPrefix) {
			return true
		}
	}
	return false
}
