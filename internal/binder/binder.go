package binder

import (
	"fmt"
	"strings"

	"github.com/meoying/shardingfed/internal/errs"
	"github.com/meoying/shardingfed/internal/sharding"
	"github.com/meoying/shardingfed/internal/statement"
	"github.com/xwb1989/sqlparser"
)

// BoundStatement 绑定之后的 MySQL 语句，路由、改写、合并需要的信息都在这里
type BoundStatement struct {
	Kind sharding.StatementKind
	// Tables 语句里出现的逻辑表，按照出现的顺序去重
	Tables     []string
	Conditions []sharding.ShardingCondition
	// Select 只有查询语句才有
	Select *statement.SelectStatement
	Args   []any

	// template 已经追加了派生列的 SQL，参数还是 :v1 的形式
	template string
	// aliases 别名或者表名到逻辑表的映射，key 是小写
	aliases map[string]string
}

// Bind 解析语句，提取分片条件和结果合并需要的信息
func Bind(sql string, args []any) (*BoundStatement, error) {
	stmt, err := sqlparser.Parse(sql)
	if err != nil {
		return nil, fmt.Errorf("binder: 解析语句失败 %w", err)
	}
	b := &BoundStatement{Args: args, aliases: make(map[string]string, 4)}
	var where []*sqlparser.Where
	switch node := stmt.(type) {
	case *sqlparser.Select:
		b.Kind = sharding.KindSelect
		where = b.collectSelect(node)
		if b.Select, err = b.bindSelect(node); err != nil {
			return nil, err
		}
	case *sqlparser.Insert:
		b.Kind = sharding.KindInsert
		if err = b.bindInsert(node); err != nil {
			return nil, err
		}
	case *sqlparser.Update:
		b.Kind = sharding.KindUpdate
		b.collectTables(node.TableExprs)
		where = append(where, node.Where)
	case *sqlparser.Delete:
		b.Kind = sharding.KindDelete
		b.collectTables(node.TableExprs)
		where = append(where, node.Where)
	default:
		return nil, errs.NewUnsupportedStatementError(sql)
	}
	if b.Kind != sharding.KindInsert {
		if b.Conditions, err = b.whereConditions(where); err != nil {
			return nil, err
		}
	}
	b.template = sqlparser.String(stmt)
	return b, nil
}

// RoutingContext 路由需要的上下文
func (b *BoundStatement) RoutingContext(hints sharding.Hints) sharding.RoutingContext {
	return sharding.RoutingContext{
		Kind:       b.Kind,
		Conditions: b.Conditions,
		Hints:      hints,
		Args:       b.Args,
	}
}

// MergeStatement 合并结果集用的语句。
// 只有一个路由单元的时候，分页已经由数据库完成了
func (b *BoundStatement) MergeStatement(units int) *statement.SelectStatement {
	if b.Select == nil {
		return nil
	}
	if units > 1 || b.Select.Limit == nil {
		return b.Select
	}
	res := *b.Select
	res.Limit = nil
	return &res
}

func (b *BoundStatement) collectSelect(node *sqlparser.Select) []*sqlparser.Where {
	where := []*sqlparser.Where{node.Where}
	for _, sub := range b.collectTables(node.From) {
		if sel, ok := sub.(*sqlparser.Select); ok {
			where = append(where, b.collectSelect(sel)...)
		}
	}
	return where
}

// collectTables 收集表和别名，返回 FROM 里的子查询
func (b *BoundStatement) collectTables(exprs sqlparser.TableExprs) []sqlparser.SelectStatement {
	var subs []sqlparser.SelectStatement
	for _, expr := range exprs {
		switch te := expr.(type) {
		case *sqlparser.AliasedTableExpr:
			switch t := te.Expr.(type) {
			case sqlparser.TableName:
				name := t.Name.String()
				b.addTable(name)
				b.aliases[strings.ToLower(name)] = name
				if !te.As.IsEmpty() {
					b.aliases[strings.ToLower(te.As.String())] = name
				}
			case *sqlparser.Subquery:
				subs = append(subs, t.Select)
			}
		case *sqlparser.JoinTableExpr:
			subs = append(subs, b.collectTables(sqlparser.TableExprs{te.LeftExpr, te.RightExpr})...)
		case *sqlparser.ParenTableExpr:
			subs = append(subs, b.collectTables(te.Exprs)...)
		}
	}
	return subs
}

func (b *BoundStatement) addTable(name string) {
	for _, t := range b.Tables {
		if strings.EqualFold(t, name) {
			return
		}
	}
	b.Tables = append(b.Tables, name)
}

// tableOf 列所属的逻辑表，单表语句里没有限定名的列属于这张表
func (b *BoundStatement) tableOf(col *sqlparser.ColName) string {
	q := col.Qualifier.Name.String()
	if q == "" {
		if len(b.Tables) == 1 {
			return b.Tables[0]
		}
		return ""
	}
	if t, ok := b.aliases[strings.ToLower(q)]; ok {
		return t
	}
	return q
}

func (b *BoundStatement) bindInsert(node *sqlparser.Insert) error {
	name := node.Table.Name.String()
	b.addTable(name)
	b.aliases[strings.ToLower(name)] = name
	rows, ok := node.Rows.(sqlparser.Values)
	if !ok {
		return errs.NewUnsupportedStatementError("INSERT ... SELECT")
	}
	b.Conditions = make([]sharding.ShardingCondition, 0, len(rows))
	for _, tuple := range rows {
		var cond sharding.ShardingCondition
		for i, col := range node.Columns {
			if i >= len(tuple) {
				break
			}
			l, ok := literal(tuple[i])
			if !ok {
				continue
			}
			cond.Values = append(cond.Values, sharding.ConditionValue{
				Table:    name,
				Column:   col.String(),
				Operator: sharding.OpEqual,
				Values:   []sharding.Literal{l},
			})
		}
		b.Conditions = append(b.Conditions, cond)
	}
	return nil
}
