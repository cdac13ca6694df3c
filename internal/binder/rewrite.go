package binder

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/meoying/shardingfed/internal/merge"
	"github.com/meoying/shardingfed/internal/sharding"
	"github.com/meoying/shardingfed/internal/statement"
	"github.com/xwb1989/sqlparser"
)

// sqlparser 把 ? 改写成了 :v1 :v2，生成 SQL 的时候要换回来
var paramPattern = regexp.MustCompile(`:v\d+`)

// Rewrite 生成在 unit 上执行的 SQL 和参数。
// multi 表示语句路由到了多个单元，这时 LIMIT o, n 改写成 LIMIT 0, o+n，
// 需要内存分组的语句去掉 LIMIT；
// rows 是 INSERT 落在这个单元上的行下标，nil 表示全部
func (b *BoundStatement) Rewrite(unit sharding.RouteUnit, multi bool, rows []int) (string, []any, error) {
	stmt, err := sqlparser.Parse(b.template)
	if err != nil {
		return "", nil, fmt.Errorf("binder: 解析语句失败 %w", err)
	}
	switch node := stmt.(type) {
	case *sqlparser.Select:
		if multi && node.Limit != nil && b.Select != nil && b.Select.Limit != nil {
			b.rewriteLimit(node)
		}
	case *sqlparser.Insert:
		node.Table = renameTable(node.Table, unit)
		if values, ok := node.Rows.(sqlparser.Values); ok && rows != nil {
			filtered := make(sqlparser.Values, 0, len(rows))
			for _, i := range rows {
				if i >= 0 && i < len(values) {
					filtered = append(filtered, values[i])
				}
			}
			node.Rows = filtered
		}
	case *sqlparser.Update:
		renameTableExprs(node.TableExprs, unit)
	case *sqlparser.Delete:
		renameTableExprs(node.TableExprs, unit)
		for i, t := range node.Targets {
			node.Targets[i] = renameTable(t, unit)
		}
	}
	err = sqlparser.Walk(func(n sqlparser.SQLNode) (bool, error) {
		switch node := n.(type) {
		case *sqlparser.Select:
			renameTableExprs(node.From, unit)
		case *sqlparser.ColName:
			node.Qualifier = renameTable(node.Qualifier, unit)
		case *sqlparser.StarExpr:
			node.TableName = renameTable(node.TableName, unit)
		}
		return true, nil
	}, stmt)
	if err != nil {
		return "", nil, err
	}
	return b.bindParams(sqlparser.String(stmt))
}

func (b *BoundStatement) rewriteLimit(node *sqlparser.Select) {
	limit := b.Select.Limit
	// 内存分组要看到每个分片的全部行，否则聚合的是部分数据
	if limit.RowCount < 0 || merge.Plan(statement.MySQL, b.Select).Kind == merge.KindGroupByMemory {
		node.Limit = nil
		return
	}
	node.Limit.Offset = sqlparser.NewIntVal([]byte("0"))
	node.Limit.Rowcount = sqlparser.NewIntVal([]byte(strconv.FormatInt(limit.Offset+limit.RowCount, 10)))
}

func renameTableExprs(exprs sqlparser.TableExprs, unit sharding.RouteUnit) {
	for _, expr := range exprs {
		switch te := expr.(type) {
		case *sqlparser.AliasedTableExpr:
			if t, ok := te.Expr.(sqlparser.TableName); ok {
				te.Expr = renameTable(t, unit)
			}
		case *sqlparser.JoinTableExpr:
			renameTableExprs(sqlparser.TableExprs{te.LeftExpr, te.RightExpr}, unit)
		case *sqlparser.ParenTableExpr:
			renameTableExprs(te.Exprs, unit)
		}
	}
}

// renameTable 逻辑表换成真实表，同时去掉库名
func renameTable(t sqlparser.TableName, unit sharding.RouteUnit) sqlparser.TableName {
	if t.Name.IsEmpty() {
		return t
	}
	actual, ok := unit.ActualTable(t.Name.String())
	if !ok {
		return t
	}
	return sqlparser.TableName{Name: sqlparser.NewTableIdent(actual)}
}

func (b *BoundStatement) bindParams(sql string) (string, []any, error) {
	var (
		args []any
		err  error
	)
	res := paramPattern.ReplaceAllStringFunc(sql, func(s string) string {
		idx, _ := paramIndex(s)
		if idx >= len(b.Args) {
			err = fmt.Errorf("binder: 参数 %s 越界, 参数个数 %d", s, len(b.Args))
			return s
		}
		args = append(args, b.Args[idx])
		return "?"
	})
	if err != nil {
		return "", nil, err
	}
	return res, args, nil
}
