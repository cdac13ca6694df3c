package statement

import (
	"fmt"
	"strings"
)

type Dialect uint8

const (
	MySQL Dialect = iota
	PostgreSQL
	Oracle
	SQLServer
)

func ParseDialect(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case "", "mysql":
		return MySQL, nil
	case "postgresql", "postgres":
		return PostgreSQL, nil
	case "oracle":
		return Oracle, nil
	case "sqlserver", "mssql":
		return SQLServer, nil
	default:
		return MySQL, fmt.Errorf("statement: 未知的方言 %s", name)
	}
}

func (d Dialect) String() string {
	switch d {
	case PostgreSQL:
		return "PostgreSQL"
	case Oracle:
		return "Oracle"
	case SQLServer:
		return "SQLServer"
	default:
		return "MySQL"
	}
}

// NullIsSmallest MySQL 和 SQLServer 把 NULL 当成最小值，PostgreSQL 和 Oracle 当成最大值
func (d Dialect) NullIsSmallest() bool {
	return d == MySQL || d == SQLServer
}

type AggregationType uint8

const (
	AggNone AggregationType = iota
	AggCount
	AggSum
	AggMin
	AggMax
	AggAvg
	AggBitXor
)

func ParseAggregation(name string) AggregationType {
	switch strings.ToUpper(name) {
	case "COUNT":
		return AggCount
	case "SUM":
		return AggSum
	case "MIN":
		return AggMin
	case "MAX":
		return AggMax
	case "AVG":
		return AggAvg
	case "BIT_XOR":
		return AggBitXor
	default:
		return AggNone
	}
}

func (a AggregationType) String() string {
	switch a {
	case AggCount:
		return "COUNT"
	case AggSum:
		return "SUM"
	case AggMin:
		return "MIN"
	case AggMax:
		return "MAX"
	case AggAvg:
		return "AVG"
	case AggBitXor:
		return "BIT_XOR"
	default:
		return ""
	}
}

// Projection 查询的一个列，和结果集里的列一一对应
type Projection struct {
	Expression  string
	Alias       string
	Aggregation AggregationType
	// DerivedSum 和 DerivedCount 是 AVG 改写出来的派生列在结果集里的下标，从 1 开始
	DerivedSum   int
	DerivedCount int
	// Derived 改写时追加的列，不返回给用户
	Derived bool
}

func (p Projection) Label() string {
	if p.Alias != "" {
		return p.Alias
	}
	return p.Expression
}

type Direction uint8

const (
	Asc Direction = iota
	Desc
)

func (d Direction) String() string {
	if d == Desc {
		return "DESC"
	}
	return "ASC"
}

type NullsOrder uint8

const (
	// NullsDefault 由方言决定
	NullsDefault NullsOrder = iota
	NullsFirst
	NullsLast
)

// OrderByItem ORDER BY 或者 GROUP BY 的一项。
// Index 从 1 开始，为 0 的时候按照 Column 在结果集里找列
type OrderByItem struct {
	Index     int
	Column    string
	Direction Direction
	Nulls     NullsOrder
}

// SameAs 指向同一列并且方向一致
func (o OrderByItem) SameAs(other OrderByItem) bool {
	if o.Direction != other.Direction {
		return false
	}
	if o.Index > 0 && other.Index > 0 {
		return o.Index == other.Index
	}
	return o.Column != "" && strings.EqualFold(Unqualified(o.Column), Unqualified(other.Column))
}

// Limit MySQL 和 PostgreSQL 的 LIMIT，RowCount 小于 0 表示没有限制
type Limit struct {
	Offset   int64
	RowCount int64
}

type Bound struct {
	Value     int64
	Inclusive bool
}

// RowNumberPredicate 外层查询对行号别名的过滤，例如 WHERE row_id > 1 AND row_id <= 3
type RowNumberPredicate struct {
	Column string
	Lower  *Bound
	Upper  *Bound
}

// Top SQLServer 的 TOP n
type Top struct {
	Count int64
}

// SelectStatement 绑定之后的查询语句，合并结果集需要的信息都在这里
type SelectStatement struct {
	Projections []Projection
	Distinct    bool
	GroupBy     []OrderByItem
	OrderBy     []OrderByItem
	Limit       *Limit
	Top         *Top
	RowNumber   *RowNumberPredicate
	// Subquery FROM 里的子查询，Oracle 和 SQLServer 的分页依赖它
	Subquery *SelectStatement
}

func (s *SelectStatement) HasAggregation() bool {
	for _, p := range s.Projections {
		if p.Aggregation != AggNone {
			return true
		}
	}
	return false
}

// ProjectionAt index 从 1 开始
func (s *SelectStatement) ProjectionAt(index int) (Projection, bool) {
	if index < 1 || index > len(s.Projections) {
		return Projection{}, false
	}
	return s.Projections[index-1], true
}

// VisibleColumnCount 去掉派生列之后的列数，没有投影信息的时候返回 -1
func (s *SelectStatement) VisibleColumnCount() int {
	if len(s.Projections) == 0 {
		return -1
	}
	cnt := 0
	for _, p := range s.Projections {
		if !p.Derived {
			cnt++
		}
	}
	return cnt
}

// FindProjection 按照别名或者表达式找投影
func (s *SelectStatement) FindProjection(label string) (Projection, bool) {
	for _, p := range s.Projections {
		if strings.EqualFold(p.Alias, label) || strings.EqualFold(p.Expression, label) {
			return p, true
		}
	}
	return Projection{}, false
}

// Unqualified 去掉表名或者别名前缀
func Unqualified(column string) string {
	if i := strings.LastIndexByte(column, '.'); i >= 0 {
		return column[i+1:]
	}
	return column
}
