package binder

import (
	"strconv"
	"strings"

	"github.com/meoying/shardingfed/internal/errs"
	"github.com/meoying/shardingfed/internal/sharding"
	"github.com/spf13/cast"
	"github.com/xwb1989/sqlparser"
)

// maxAlternatives 展开成 OR 之后条件太多就放弃，退化为全路由
const maxAlternatives = 64

// alternatives OR 连接的多组条件，每一组内部是 AND
type alternatives [][]sharding.ConditionValue

// unconstrained 没有任何分片信息，也就是全路由
var unconstrained = alternatives{nil}

// whereConditions 多个 WHERE 之间是 AND 的关系
func (b *BoundStatement) whereConditions(wheres []*sqlparser.Where) ([]sharding.ShardingCondition, error) {
	res := unconstrained
	for _, w := range wheres {
		if w == nil || w.Expr == nil {
			continue
		}
		res = and(res, b.extract(w.Expr))
	}
	conds := make([]sharding.ShardingCondition, 0, len(res))
	for _, alt := range res {
		if neverMatch(alt) {
			continue
		}
		conds = append(conds, sharding.ShardingCondition{Values: alt})
	}
	if len(conds) == 0 {
		return nil, errs.ErrConditionNeverMatch
	}
	// 只要有一组没有限制，就是全路由
	for _, c := range conds {
		if len(c.Values) == 0 {
			return nil, nil
		}
	}
	return conds, nil
}

func (b *BoundStatement) extract(expr sqlparser.Expr) alternatives {
	switch e := expr.(type) {
	case *sqlparser.AndExpr:
		return and(b.extract(e.Left), b.extract(e.Right))
	case *sqlparser.OrExpr:
		left, right := b.extract(e.Left), b.extract(e.Right)
		if len(left)+len(right) > maxAlternatives {
			return unconstrained
		}
		return append(append(alternatives{}, left...), right...)
	case *sqlparser.ParenExpr:
		return b.extract(e.Expr)
	case *sqlparser.ComparisonExpr:
		if cv, ok := b.comparison(e); ok {
			return alternatives{{cv}}
		}
	case *sqlparser.RangeCond:
		if cv, ok := b.between(e); ok {
			return alternatives{{cv}}
		}
	}
	return unconstrained
}

func and(left, right alternatives) alternatives {
	if len(left)*len(right) > maxAlternatives {
		return unconstrained
	}
	res := make(alternatives, 0, len(left)*len(right))
	for _, l := range left {
		for _, r := range right {
			alt := make([]sharding.ConditionValue, 0, len(l)+len(r))
			alt = append(append(alt, l...), r...)
			res = append(res, alt)
		}
	}
	return res
}

func (b *BoundStatement) comparison(e *sqlparser.ComparisonExpr) (sharding.ConditionValue, bool) {
	col, value, op := e.Left, e.Right, e.Operator
	if _, ok := col.(*sqlparser.ColName); !ok {
		col, value, op = e.Right, e.Left, flip(e.Operator)
	}
	name, ok := col.(*sqlparser.ColName)
	if !ok {
		return sharding.ConditionValue{}, false
	}
	cv := sharding.ConditionValue{Table: b.tableOf(name), Column: name.Name.String()}
	switch op {
	case sqlparser.EqualStr:
		l, ok := literal(value)
		if !ok {
			return cv, false
		}
		cv.Operator = sharding.OpEqual
		cv.Values = []sharding.Literal{l}
	case sqlparser.InStr:
		tuple, ok := value.(sqlparser.ValTuple)
		if !ok {
			return cv, false
		}
		cv.Operator = sharding.OpIn
		for _, v := range tuple {
			l, ok := literal(v)
			if !ok {
				return cv, false
			}
			cv.Values = append(cv.Values, l)
		}
	case sqlparser.LessThanStr, sqlparser.LessEqualStr:
		l, ok := literal(value)
		if !ok {
			return cv, false
		}
		cv.Operator = sharding.OpRange
		cv.Upper = &l
		cv.UpperInclusive = op == sqlparser.LessEqualStr
	case sqlparser.GreaterThanStr, sqlparser.GreaterEqualStr:
		l, ok := literal(value)
		if !ok {
			return cv, false
		}
		cv.Operator = sharding.OpRange
		cv.Lower = &l
		cv.LowerInclusive = op == sqlparser.GreaterEqualStr
	default:
		return cv, false
	}
	return cv, true
}

func (b *BoundStatement) between(e *sqlparser.RangeCond) (sharding.ConditionValue, bool) {
	name, ok := e.Left.(*sqlparser.ColName)
	if !ok || e.Operator != sqlparser.BetweenStr {
		return sharding.ConditionValue{}, false
	}
	lower, ok := literal(e.From)
	if !ok {
		return sharding.ConditionValue{}, false
	}
	upper, ok := literal(e.To)
	if !ok {
		return sharding.ConditionValue{}, false
	}
	return sharding.ConditionValue{
		Table:          b.tableOf(name),
		Column:         name.Name.String(),
		Operator:       sharding.OpBetween,
		Lower:          &lower,
		Upper:          &upper,
		LowerInclusive: true,
		UpperInclusive: true,
	}, true
}

// flip 1 < id 等价于 id > 1
func flip(op string) string {
	switch op {
	case sqlparser.LessThanStr:
		return sqlparser.GreaterThanStr
	case sqlparser.LessEqualStr:
		return sqlparser.GreaterEqualStr
	case sqlparser.GreaterThanStr:
		return sqlparser.LessThanStr
	case sqlparser.GreaterEqualStr:
		return sqlparser.LessEqualStr
	default:
		return op
	}
}

// literal 字面量或者 ? 占位符，sqlparser 把第 n 个 ? 解析成 :vn
func literal(expr sqlparser.Expr) (sharding.Literal, bool) {
	val, ok := expr.(*sqlparser.SQLVal)
	if !ok {
		return sharding.Literal{}, false
	}
	s := string(val.Val)
	switch val.Type {
	case sqlparser.IntVal:
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return sharding.Value(i), true
		}
		if u, err := strconv.ParseUint(s, 10, 64); err == nil {
			return sharding.Value(u), true
		}
	case sqlparser.FloatVal:
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return sharding.Value(f), true
		}
	case sqlparser.StrVal:
		return sharding.Value(s), true
	case sqlparser.ValArg:
		if idx, ok := paramIndex(s); ok {
			return sharding.Param(idx), true
		}
	}
	return sharding.Literal{}, false
}

// paramIndex :v3 的下标是 2
func paramIndex(arg string) (int, bool) {
	if !strings.HasPrefix(arg, ":v") {
		return 0, false
	}
	n, err := strconv.Atoi(arg[2:])
	if err != nil || n < 1 {
		return 0, false
	}
	return n - 1, true
}

// neverMatch 同一列上的多个等值条件都是字面量，并且没有交集
func neverMatch(alt []sharding.ConditionValue) bool {
	sets := make(map[string]map[string]struct{}, len(alt))
	for _, cv := range alt {
		if cv.Operator != sharding.OpEqual && cv.Operator != sharding.OpIn {
			continue
		}
		vals := make(map[string]struct{}, len(cv.Values))
		literalOnly := true
		for _, l := range cv.Values {
			if l.IsParam {
				literalOnly = false
				break
			}
			vals[cast.ToString(l.Value)] = struct{}{}
		}
		if !literalOnly {
			continue
		}
		key := strings.ToLower(cv.Table + "." + cv.Column)
		prev, ok := sets[key]
		if !ok {
			sets[key] = vals
			continue
		}
		for v := range prev {
			if _, ok := vals[v]; !ok {
				delete(prev, v)
			}
		}
		if len(prev) == 0 {
			return true
		}
	}
	return false
}
