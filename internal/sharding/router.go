package sharding

import (
	"fmt"
	"strings"

	"github.com/ecodeclub/ekit/slice"
	"github.com/meoying/shardingfed/internal/errs"
)

// Router 根据分片规则和条件计算路由单元。
// 它本身没有状态，规则热更新的时候直接换一个新的 Router
type Router struct {
	rule *Rule
}

func NewRouter(rule *Rule) *Router {
	return &Router{rule: rule}
}

func (r *Router) Rule() *Rule {
	return r.rule
}

// Route 单个逻辑表的路由
func (r *Router) Route(logicTable string, rc RoutingContext) (*RouteContext, error) {
	if err := r.checkHints(rc.Hints); err != nil {
		return nil, err
	}
	if r.rule.IsBroadcastTable(logicTable) && !r.rule.HasTableRule(logicTable) {
		return r.routeBroadcast([]string{logicTable}, rc.Kind), nil
	}
	tr, err := r.rule.TableRule(logicTable)
	if err != nil {
		return nil, err
	}
	nodes, err := r.routeNodes(tr, rc)
	if err != nil {
		return nil, err
	}
	res := NewRouteContext()
	for _, n := range nodes {
		res.Add(RouteUnit{
			DataSource:   n.DataSource,
			TableMappers: []TableMapper{{LogicTable: tr.LogicTable, ActualTable: n.Table}},
		})
	}
	return res, nil
}

// RouteTables 一条语句里引用的全部逻辑表的路由。
// 绑定表按照下标对齐，非绑定表在同一个数据源内求笛卡尔积，广播表附加在每个单元上
func (r *Router) RouteTables(logicTables []string, rc RoutingContext) (*RouteContext, error) {
	if err := r.checkHints(rc.Hints); err != nil {
		return nil, err
	}
	tables := distinctTables(logicTables)
	var sharded, broadcast []string
	for _, tb := range tables {
		switch {
		case r.rule.HasTableRule(tb):
			sharded = append(sharded, tb)
		case r.rule.IsBroadcastTable(tb):
			broadcast = append(broadcast, tb)
		default:
			return nil, errs.NewNoTableRuleError(tb)
		}
	}
	if len(sharded) == 0 {
		return r.routeBroadcast(broadcast, rc.Kind), nil
	}

	var (
		res *RouteContext
		err error
	)
	switch {
	case len(sharded) == 1:
		res, err = r.Route(sharded[0], rc)
	case r.rule.IsAllBindingTables(sharded):
		res, err = r.routeBinding(sharded, rc)
	default:
		res, err = r.routeCartesian(sharded, rc)
	}
	if err != nil || len(broadcast) == 0 {
		return res, err
	}
	withBroadcast := NewRouteContext()
	for _, u := range res.Units() {
		mappers := append([]TableMapper{}, u.TableMappers...)
		for _, tb := range broadcast {
			mappers = append(mappers, TableMapper{LogicTable: tb, ActualTable: tb})
		}
		withBroadcast.Add(RouteUnit{DataSource: u.DataSource, TableMappers: mappers})
	}
	return withBroadcast, nil
}

// routeBroadcast 只有广播表或者没有表。
// 查询随便找一个数据源就可以，写操作要发到所有数据源
func (r *Router) routeBroadcast(tables []string, kind StatementKind) *RouteContext {
	var mappers []TableMapper
	for _, tb := range tables {
		mappers = append(mappers, TableMapper{LogicTable: tb, ActualTable: tb})
	}
	res := NewRouteContext()
	dataSources := r.rule.DataSourceNames()
	if !kind.IsDML() || len(tables) == 0 {
		dataSources = dataSources[:1]
	}
	for _, ds := range dataSources {
		res.Add(RouteUnit{DataSource: ds, TableMappers: mappers})
	}
	return res
}

func (r *Router) routeBinding(tables []string, rc RoutingContext) (*RouteContext, error) {
	primary, err := r.Route(tables[0], rc)
	if err != nil {
		return nil, err
	}
	res := NewRouteContext()
	for _, u := range primary.Units() {
		pm := u.TableMappers[0]
		mappers := []TableMapper{pm}
		for _, tb := range tables[1:] {
			actual, err := r.rule.BindingActualTable(u.DataSource, pm.LogicTable, pm.ActualTable, tb)
			if err != nil {
				return nil, err
			}
			tr, _ := r.rule.TableRule(tb)
			mappers = append(mappers, TableMapper{LogicTable: tr.LogicTable, ActualTable: actual})
		}
		res.Add(RouteUnit{DataSource: u.DataSource, TableMappers: mappers})
	}
	return res, nil
}

func (r *Router) routeCartesian(tables []string, rc RoutingContext) (*RouteContext, error) {
	routes := make([]*RouteContext, 0, len(tables))
	for _, tb := range tables {
		rt, err := r.Route(tb, rc)
		if err != nil {
			return nil, err
		}
		routes = append(routes, rt)
	}
	res := NewRouteContext()
	for _, ds := range routes[0].DataSourceNames() {
		groups := make([][]TableMapper, 0, len(routes))
		for _, rt := range routes {
			var mappers []TableMapper
			for _, u := range rt.Units() {
				if u.DataSource == ds {
					mappers = append(mappers, u.TableMappers...)
				}
			}
			if len(mappers) == 0 {
				groups = nil
				break
			}
			groups = append(groups, mappers)
		}
		for _, combination := range cartesian(groups) {
			res.Add(RouteUnit{DataSource: ds, TableMappers: combination})
		}
	}
	if res.IsEmpty() {
		return nil, fmt.Errorf("%w, 逻辑表 %s 无法在同一个数据源内关联",
			errs.ErrRoutingAlgorithm, strings.Join(tables, ","))
	}
	return res, nil
}

// routeNodes 多个条件之间是 OR 的关系，结果按照第一次出现的顺序合并
func (r *Router) routeNodes(tr *TableRule, rc RoutingContext) ([]DataNode, error) {
	hint, _ := rc.Hints.Find(tr.LogicTable)
	conditions := rc.Conditions
	if len(conditions) == 0 {
		conditions = []ShardingCondition{{}}
	}
	res := make([]DataNode, 0, len(tr.DataNodes))
	seen := make(map[DataNode]struct{}, len(tr.DataNodes))
	for _, cond := range conditions {
		nodes, err := r.routeCondition(tr, cond, hint, rc.Args)
		if err != nil {
			return nil, err
		}
		if rc.Kind == KindInsert && len(nodes) != 1 {
			return nil, errs.NewInsertMultipleNodesError(tr.LogicTable, len(nodes))
		}
		for _, n := range nodes {
			if _, ok := seen[n]; ok {
				continue
			}
			seen[n] = struct{}{}
			res = append(res, n)
		}
	}
	return res, nil
}

func (r *Router) routeCondition(tr *TableRule, cond ShardingCondition, hint HintOverride, args []any) ([]DataNode, error) {
	dbValues, err := shardingValues(tr.LogicTable, tr.DatabaseStrategy, cond, hint.DatabaseValues, args)
	if err != nil {
		return nil, err
	}
	tbValues, err := shardingValues(tr.LogicTable, tr.TableStrategy, cond, hint.TableValues, args)
	if err != nil {
		return nil, err
	}
	dataSources, err := doSharding(tr, tr.DatabaseStrategy, tr.DataSourceNames(), dbValues)
	if err != nil {
		return nil, err
	}
	tables, err := doSharding(tr, tr.TableStrategy, tr.ActualTableNames(), tbValues)
	if err != nil {
		return nil, err
	}
	res := make([]DataNode, 0, len(dataSources)*len(tables))
	for _, ds := range dataSources {
		for _, tb := range tables {
			n := DataNode{DataSource: ds, Table: tb}
			if tr.Contains(n) {
				res = append(res, n)
			}
		}
	}
	// 范围条件允许什么都没命中，精确值和 Hint 不行
	if len(res) == 0 && (isMandatory(dbValues) || isMandatory(tbValues)) {
		return nil, errs.NewNoRouteError(tr.LogicTable)
	}
	return res, nil
}

// shardingValues Hint 优先，其次是条件里和策略分片键相同的列
func shardingValues(logicTable string, s Strategy, cond ShardingCondition,
	hintValues []any, args []any) ([]ShardingValue, error) {
	columns := s.Columns()
	if len(hintValues) > 0 {
		if len(columns) == 0 {
			return []ShardingValue{{Values: hintValues}}, nil
		}
		res := make([]ShardingValue, 0, len(columns))
		for _, col := range columns {
			res = append(res, ShardingValue{Column: col, Values: hintValues})
		}
		return res, nil
	}
	var res []ShardingValue
	for _, col := range columns {
		for _, cv := range cond.Values {
			if !cv.matches(logicTable, col) {
				continue
			}
			sv, err := cv.toShardingValue(args)
			if err != nil {
				return nil, err
			}
			sv.Column = col
			res = append(res, sv)
		}
	}
	return res, nil
}

func doSharding(tr *TableRule, s Strategy, available []string, values []ShardingValue) ([]string, error) {
	targets, err := s.DoSharding(available, values)
	if err != nil {
		return nil, err
	}
	if len(targets) == 0 && isMandatory(values) {
		sv := firstPrecise(values)
		return nil, errs.NewRoutingAlgorithmError(tr.LogicTable, sv.Column, sv.Values)
	}
	res := make([]string, 0, len(targets))
	seen := make(map[string]struct{}, len(targets))
	for _, t := range targets {
		if !slice.Contains(available, t) {
			return nil, errs.NewUnconfiguredTargetError(tr.LogicTable, t)
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		res = append(res, t)
	}
	return res, nil
}

func (r *Router) checkHints(hints Hints) error {
	for tb := range hints {
		if !r.rule.HasTableRule(tb) {
			return errs.NewNoTableRuleError(tb)
		}
	}
	return nil
}

func isMandatory(values []ShardingValue) bool {
	return firstPrecise(values).Values != nil
}

func firstPrecise(values []ShardingValue) ShardingValue {
	for _, v := range values {
		if !v.IsRange() {
			return v
		}
	}
	return ShardingValue{}
}

func distinctTables(tables []string) []string {
	res := make([]string, 0, len(tables))
	seen := make(map[string]struct{}, len(tables))
	for _, tb := range tables {
		k := strings.ToLower(tb)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		res = append(res, tb)
	}
	return res
}

// cartesian 每一组里选一个，按照组的顺序拼起来
func cartesian(groups [][]TableMapper) [][]TableMapper {
	if len(groups) == 0 {
		return nil
	}
	res := [][]TableMapper{{}}
	for _, g := range groups {
		next := make([][]TableMapper, 0, len(res)*len(g))
		for _, prefix := range res {
			for _, m := range g {
				combination := make([]TableMapper, 0, len(prefix)+1)
				combination = append(combination, prefix...)
				combination = append(combination, m)
				next = append(next, combination)
			}
		}
		res = next
	}
	return res
}
