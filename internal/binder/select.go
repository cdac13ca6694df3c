package binder

import (
	"fmt"
	"strings"

	"github.com/meoying/shardingfed/internal/errs"
	"github.com/meoying/shardingfed/internal/statement"
	"github.com/spf13/cast"
	"github.com/xwb1989/sqlparser"
)

const (
	avgSumPrefix   = "AVG_DERIVED_SUM_"
	avgCountPrefix = "AVG_DERIVED_COUNT_"
	orderByPrefix  = "ORDER_BY_DERIVED_"
	groupByPrefix  = "GROUP_BY_DERIVED_"
)

// bindSelect 会修改 node：
// AVG 追加派生的 SUM 和 COUNT 列，排序分组用到但是没有查询的列追加成派生列，
// 只有 GROUP BY 的时候按照分组键排序
func (b *BoundStatement) bindSelect(node *sqlparser.Select) (*statement.SelectStatement, error) {
	res := &statement.SelectStatement{Distinct: node.Distinct != ""}
	star := false
	for _, se := range node.SelectExprs {
		switch e := se.(type) {
		case *sqlparser.StarExpr:
			star = true
		case *sqlparser.AliasedExpr:
			p := statement.Projection{Expression: sqlparser.String(e.Expr), Alias: e.As.String()}
			if fn, ok := e.Expr.(*sqlparser.FuncExpr); ok {
				p.Aggregation = statement.ParseAggregation(fn.Name.String())
				if p.Aggregation != statement.AggNone && fn.Distinct {
					return nil, errs.NewUnsupportedStatementError(p.Expression)
				}
			}
			res.Projections = append(res.Projections, p)
		default:
			return nil, errs.NewUnsupportedStatementError(sqlparser.String(se))
		}
	}
	if star {
		// 列的位置不确定，没有办法定位聚合列
		if res.HasAggregation() {
			return nil, errs.NewUnsupportedStatementError(sqlparser.String(node.SelectExprs))
		}
		res.Projections = nil
	} else {
		b.deriveAvg(node, res)
	}

	for i, expr := range node.GroupBy {
		res.GroupBy = append(res.GroupBy, b.orderItem(node, res, expr, sqlparser.AscScr, star, groupByPrefix, i))
	}
	for i, o := range node.OrderBy {
		res.OrderBy = append(res.OrderBy, b.orderItem(node, res, o.Expr, o.Direction, star, orderByPrefix, i))
	}
	if len(node.GroupBy) > 0 && len(node.OrderBy) == 0 {
		for _, expr := range node.GroupBy {
			node.OrderBy = append(node.OrderBy, &sqlparser.Order{Expr: expr, Direction: sqlparser.AscScr})
		}
	}

	if node.Limit != nil {
		limit := &statement.Limit{RowCount: -1}
		var err error
		if node.Limit.Offset != nil {
			if limit.Offset, err = b.intValue(node.Limit.Offset); err != nil {
				return nil, err
			}
		}
		if node.Limit.Rowcount != nil {
			if limit.RowCount, err = b.intValue(node.Limit.Rowcount); err != nil {
				return nil, err
			}
		}
		res.Limit = limit
	}
	return res, nil
}

func (b *BoundStatement) deriveAvg(node *sqlparser.Select, res *statement.SelectStatement) {
	cnt := len(res.Projections)
	derived := 0
	for i := 0; i < cnt; i++ {
		if res.Projections[i].Aggregation != statement.AggAvg {
			continue
		}
		fn := node.SelectExprs[i].(*sqlparser.AliasedExpr).Expr.(*sqlparser.FuncExpr)
		sum := &sqlparser.FuncExpr{Name: sqlparser.NewColIdent("SUM"), Exprs: fn.Exprs}
		count := &sqlparser.FuncExpr{Name: sqlparser.NewColIdent("COUNT"), Exprs: fn.Exprs}
		sumAlias := fmt.Sprintf("%s%d", avgSumPrefix, derived)
		countAlias := fmt.Sprintf("%s%d", avgCountPrefix, derived)
		node.SelectExprs = append(node.SelectExprs,
			&sqlparser.AliasedExpr{Expr: sum, As: sqlparser.NewColIdent(sumAlias)},
			&sqlparser.AliasedExpr{Expr: count, As: sqlparser.NewColIdent(countAlias)})
		res.Projections = append(res.Projections,
			statement.Projection{Expression: sqlparser.String(sum), Alias: sumAlias, Aggregation: statement.AggSum, Derived: true},
			statement.Projection{Expression: sqlparser.String(count), Alias: countAlias, Aggregation: statement.AggCount, Derived: true})
		res.Projections[i].DerivedSum = len(res.Projections) - 1
		res.Projections[i].DerivedCount = len(res.Projections)
		derived++
	}
}

// orderItem 排序或者分组项，查询列里没有的表达式追加成派生列
func (b *BoundStatement) orderItem(node *sqlparser.Select, res *statement.SelectStatement,
	expr sqlparser.Expr, direction string, star bool, prefix string, idx int) statement.OrderByItem {
	item := statement.OrderByItem{Direction: statement.Asc}
	if direction == sqlparser.DescScr {
		item.Direction = statement.Desc
	}
	if val, ok := expr.(*sqlparser.SQLVal); ok && val.Type == sqlparser.IntVal {
		if n, err := cast.ToIntE(string(val.Val)); err == nil && n > 0 {
			item.Index = n
			return item
		}
	}
	item.Column = sqlparser.String(expr)
	if star || findProjection(res.Projections, expr) {
		return item
	}
	alias := fmt.Sprintf("%s%d", prefix, idx)
	node.SelectExprs = append(node.SelectExprs, &sqlparser.AliasedExpr{Expr: expr, As: sqlparser.NewColIdent(alias)})
	res.Projections = append(res.Projections, statement.Projection{Expression: item.Column, Alias: alias, Derived: true})
	item.Column = alias
	return item
}

func findProjection(projections []statement.Projection, expr sqlparser.Expr) bool {
	s := sqlparser.String(expr)
	if col, ok := expr.(*sqlparser.ColName); ok {
		name := col.Name.String()
		for _, p := range projections {
			if strings.EqualFold(p.Alias, name) || strings.EqualFold(p.Expression, s) ||
				(p.Alias == "" && strings.EqualFold(statement.Unqualified(p.Expression), name)) {
				return true
			}
		}
		return false
	}
	for _, p := range projections {
		if strings.EqualFold(p.Expression, s) || strings.EqualFold(p.Alias, s) {
			return true
		}
	}
	return false
}

func (b *BoundStatement) intValue(expr sqlparser.Expr) (int64, error) {
	l, ok := literal(expr)
	if !ok {
		return 0, errs.NewUnsupportedStatementError(sqlparser.String(expr))
	}
	v, err := l.Resolve(b.Args)
	if err != nil {
		return 0, err
	}
	return cast.ToInt64E(v)
}
