package sharding

import (
	"fmt"
	"strings"
)

// Strategy 分库或者分表策略，一个逻辑表在库、表两个维度上各有一个
type Strategy interface {
	Name() string
	// Columns 返回策略使用的分片键，Hint 和不分片策略返回空
	Columns() []string
	// DoSharding 从 available 中挑出 values 命中的目标。
	// values 为空的时候意味着没有分片条件，返回全部 available
	DoSharding(available []string, values []ShardingValue) ([]string, error)
}

// DataNode 实际的数据节点，也就是数据源 + 实际表
type DataNode struct {
	DataSource string
	Table      string
}

func (n DataNode) String() string {
	return n.DataSource + "." + n.Table
}

type TableMapper struct {
	LogicTable  string
	ActualTable string
}

// RouteUnit 一个路由目标：一个数据源，以及这个数据源上逻辑表到实际表的映射
type RouteUnit struct {
	DataSource   string
	TableMappers []TableMapper
}

// ActualTable 返回逻辑表在这个路由单元里对应的实际表
func (u RouteUnit) ActualTable(logicTable string) (string, bool) {
	for _, m := range u.TableMappers {
		if strings.EqualFold(m.LogicTable, logicTable) {
			return m.ActualTable, true
		}
	}
	return "", false
}

func (u RouteUnit) key() string {
	var sb strings.Builder
	sb.WriteString(u.DataSource)
	for _, m := range u.TableMappers {
		sb.WriteByte('|')
		sb.WriteString(strings.ToLower(m.LogicTable))
		sb.WriteByte('=')
		sb.WriteString(m.ActualTable)
	}
	return sb.String()
}

func (u RouteUnit) String() string {
	tables := make([]string, 0, len(u.TableMappers))
	for _, m := range u.TableMappers {
		tables = append(tables, fmt.Sprintf("%s->%s", m.LogicTable, m.ActualTable))
	}
	return fmt.Sprintf("%s[%s]", u.DataSource, strings.Join(tables, ","))
}

// RouteContext 去重之后的路由单元，按照第一次出现的顺序排列
type RouteContext struct {
	units []RouteUnit
	keys  map[string]struct{}
}

func NewRouteContext() *RouteContext {
	return &RouteContext{keys: make(map[string]struct{})}
}

// Add 添加路由单元，已经存在的会被忽略
func (r *RouteContext) Add(units ...RouteUnit) {
	for _, u := range units {
		k := u.key()
		if _, ok := r.keys[k]; ok {
			continue
		}
		r.keys[k] = struct{}{}
		r.units = append(r.units, u)
	}
}

func (r *RouteContext) Units() []RouteUnit {
	res := make([]RouteUnit, len(r.units))
	copy(res, r.units)
	return res
}

func (r *RouteContext) Len() int {
	return len(r.units)
}

func (r *RouteContext) IsEmpty() bool {
	return len(r.units) == 0
}

// DataSourceNames 按照第一次出现的顺序返回所有数据源
func (r *RouteContext) DataSourceNames() []string {
	res := make([]string, 0, len(r.units))
	seen := make(map[string]struct{}, len(r.units))
	for _, u := range r.units {
		if _, ok := seen[u.DataSource]; ok {
			continue
		}
		seen[u.DataSource] = struct{}{}
		res = append(res, u.DataSource)
	}
	return res
}

// Range 范围条件，Lower 或者 Upper 为 nil 表示这一侧没有边界
type Range struct {
	Lower          any
	Upper          any
	LowerInclusive bool
	UpperInclusive bool
}

// ShardingValue 交给 Strategy 的分片值，Values 和 Range 二选一
type ShardingValue struct {
	Column string
	Values []any
	Range  *Range
}

func (v ShardingValue) IsRange() bool {
	return v.Range != nil
}

type StatementKind uint8

const (
	KindSelect StatementKind = iota
	KindInsert
	KindUpdate
	KindDelete
)

func (k StatementKind) IsDML() bool {
	return k != KindSelect
}

// RoutingContext 单次请求的路由输入。
// Hints 放在这里而不是放在全局变量里，请求结束就跟着一起释放
type RoutingContext struct {
	Kind       StatementKind
	Conditions []ShardingCondition
	Hints      Hints
	// Args 预编译语句的参数，Param 引用的就是这里的下标
	Args []any
}
