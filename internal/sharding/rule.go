package sharding

import (
	"fmt"
	"strings"

	"github.com/ecodeclub/ekit/slice"
	"github.com/meoying/shardingfed/internal/errs"
)

// TableRule 一个逻辑表的分片规则
type TableRule struct {
	LogicTable string
	// DataNodes 按照配置顺序排列
	DataNodes        []DataNode
	DatabaseStrategy Strategy
	TableStrategy    Strategy

	dataSources  []string
	actualTables []string
	tablesByDS   map[string][]string
	nodes        map[DataNode]struct{}
}

func NewTableRule(logicTable string, nodes []DataNode, dbStrategy, tableStrategy Strategy) (*TableRule, error) {
	if logicTable == "" {
		return nil, errs.NewInvalidConfigError("逻辑表名不能为空")
	}
	if len(nodes) == 0 {
		return nil, errs.NewInvalidConfigError(fmt.Sprintf("逻辑表 %s 没有数据节点", logicTable))
	}
	t := &TableRule{
		LogicTable:       logicTable,
		DatabaseStrategy: dbStrategy,
		TableStrategy:    tableStrategy,
		tablesByDS:       make(map[string][]string, 4),
		nodes:            make(map[DataNode]struct{}, len(nodes)),
	}
	tableSeen := make(map[string]struct{}, len(nodes))
	for _, n := range nodes {
		if n.DataSource == "" || n.Table == "" {
			return nil, errs.NewInvalidConfigError(fmt.Sprintf("逻辑表 %s 的数据节点 %s 不完整", logicTable, n))
		}
		if _, ok := t.nodes[n]; ok {
			continue
		}
		t.nodes[n] = struct{}{}
		t.DataNodes = append(t.DataNodes, n)
		if _, ok := t.tablesByDS[n.DataSource]; !ok {
			t.dataSources = append(t.dataSources, n.DataSource)
		}
		t.tablesByDS[n.DataSource] = append(t.tablesByDS[n.DataSource], n.Table)
		if _, ok := tableSeen[n.Table]; !ok {
			tableSeen[n.Table] = struct{}{}
			t.actualTables = append(t.actualTables, n.Table)
		}
	}
	return t, nil
}

func (t *TableRule) DataSourceNames() []string {
	return t.dataSources
}

// ActualTables 某个数据源上的实际表
func (t *TableRule) ActualTables(ds string) []string {
	return t.tablesByDS[ds]
}

// ActualTableNames 全部数据源上出现过的实际表，去重
func (t *TableRule) ActualTableNames() []string {
	return t.actualTables
}

func (t *TableRule) Contains(n DataNode) bool {
	_, ok := t.nodes[n]
	return ok
}

// ActualTableIndex 实际表在数据源里的下标，没有返回 -1
func (t *TableRule) ActualTableIndex(ds, actualTable string) int {
	for i, tb := range t.tablesByDS[ds] {
		if tb == actualTable {
			return i
		}
	}
	return -1
}

// Rule 整个分片规则，构造之后只读
type Rule struct {
	dataSources   []string
	tables        map[string]*TableRule
	tableNames    []string
	bindingGroups [][]string
	broadcast     map[string]struct{}
	defaultDB     Strategy
	defaultTable  Strategy
}

type RuleOption func(r *Rule)

// WithBindingTables 每一组是一个绑定表组，组内的表分片方式完全一致
func WithBindingTables(groups ...[]string) RuleOption {
	return func(r *Rule) {
		for _, g := range groups {
			lower := make([]string, 0, len(g))
			for _, tb := range g {
				lower = append(lower, strings.ToLower(tb))
			}
			r.bindingGroups = append(r.bindingGroups, lower)
		}
	}
}

func WithBroadcastTables(tables ...string) RuleOption {
	return func(r *Rule) {
		for _, tb := range tables {
			r.broadcast[strings.ToLower(tb)] = struct{}{}
		}
	}
}

// WithDefaultStrategies 没有配置策略的表使用的默认策略
func WithDefaultStrategies(db, table Strategy) RuleOption {
	return func(r *Rule) {
		r.defaultDB = db
		r.defaultTable = table
	}
}

func NewRule(dataSources []string, tables []*TableRule, opts ...RuleOption) (*Rule, error) {
	if len(dataSources) == 0 {
		return nil, errs.NewInvalidConfigError("至少需要一个数据源")
	}
	r := &Rule{
		dataSources: dataSources,
		tables:      make(map[string]*TableRule, len(tables)),
		broadcast:   make(map[string]struct{}, 4),
	}
	for _, opt := range opts {
		opt(r)
	}
	dsSet := make(map[string]struct{}, len(dataSources))
	for _, ds := range dataSources {
		dsSet[ds] = struct{}{}
	}
	for _, t := range tables {
		key := strings.ToLower(t.LogicTable)
		if _, ok := r.tables[key]; ok {
			return nil, errs.NewInvalidConfigError(fmt.Sprintf("逻辑表 %s 重复配置", t.LogicTable))
		}
		for _, ds := range t.DataSourceNames() {
			if _, ok := dsSet[ds]; !ok {
				return nil, errs.NewInvalidConfigError(fmt.Sprintf("逻辑表 %s 使用了未知的数据源 %s", t.LogicTable, ds))
			}
		}
		if t.DatabaseStrategy == nil {
			t.DatabaseStrategy = r.defaultDB
		}
		if t.TableStrategy == nil {
			t.TableStrategy = r.defaultTable
		}
		if t.DatabaseStrategy == nil || t.TableStrategy == nil {
			return nil, errs.NewInvalidConfigError(fmt.Sprintf("逻辑表 %s 缺少分片策略", t.LogicTable))
		}
		r.tables[key] = t
		r.tableNames = append(r.tableNames, t.LogicTable)
	}
	for _, g := range r.bindingGroups {
		if err := r.checkBindingGroup(g); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// checkBindingGroup 绑定表必须在每个数据源上有同样数量的实际表
func (r *Rule) checkBindingGroup(group []string) error {
	var primary *TableRule
	for _, name := range group {
		t, ok := r.tables[name]
		if !ok {
			return errs.NewInvalidConfigError(fmt.Sprintf("绑定表 %s 没有分片规则", name))
		}
		if primary == nil {
			primary = t
			continue
		}
		if len(primary.DataSourceNames()) != len(t.DataSourceNames()) {
			return errs.NewInvalidConfigError(fmt.Sprintf("绑定表 %s 和 %s 的数据源不一致", primary.LogicTable, t.LogicTable))
		}
		for _, ds := range primary.DataSourceNames() {
			if len(primary.ActualTables(ds)) != len(t.ActualTables(ds)) {
				return errs.NewInvalidConfigError(fmt.Sprintf("绑定表 %s 和 %s 在数据源 %s 上的实际表数量不一致",
					primary.LogicTable, t.LogicTable, ds))
			}
		}
	}
	return nil
}

func (r *Rule) DataSourceNames() []string {
	return r.dataSources
}

// LogicTables 配置顺序
func (r *Rule) LogicTables() []string {
	return r.tableNames
}

func (r *Rule) TableRule(logicTable string) (*TableRule, error) {
	t, ok := r.tables[strings.ToLower(logicTable)]
	if !ok {
		return nil, errs.NewNoTableRuleError(logicTable)
	}
	return t, nil
}

func (r *Rule) HasTableRule(logicTable string) bool {
	_, ok := r.tables[strings.ToLower(logicTable)]
	return ok
}

func (r *Rule) IsBroadcastTable(logicTable string) bool {
	_, ok := r.broadcast[strings.ToLower(logicTable)]
	return ok
}

// IsAllBindingTables 所有表都在同一个绑定表组里
func (r *Rule) IsAllBindingTables(logicTables []string) bool {
	if len(logicTables) == 0 {
		return false
	}
	for _, g := range r.bindingGroups {
		if containsAll(g, logicTables) {
			return true
		}
	}
	return false
}

// BindingActualTable 根据主表命中的实际表，找出绑定表在同一个数据源里同样下标的实际表
func (r *Rule) BindingActualTable(ds, primaryTable, primaryActual, bindingTable string) (string, error) {
	primary, err := r.TableRule(primaryTable)
	if err != nil {
		return "", err
	}
	binding, err := r.TableRule(bindingTable)
	if err != nil {
		return "", err
	}
	idx := primary.ActualTableIndex(ds, primaryActual)
	tables := binding.ActualTables(ds)
	if idx < 0 || idx >= len(tables) {
		return "", errs.NewInvalidConfigError(fmt.Sprintf("绑定表 %s 在数据源 %s 上找不到和 %s 对应的实际表",
			bindingTable, ds, primaryActual))
	}
	return tables[idx], nil
}

// DataNodes 全部逻辑表的全部数据节点，按照配置顺序
func (r *Rule) DataNodes() []DataNode {
	res := make([]DataNode, 0, len(r.tableNames)*4)
	for _, name := range r.tableNames {
		res = append(res, r.tables[strings.ToLower(name)].DataNodes...)
	}
	return res
}

func containsAll(group []string, tables []string) bool {
	lower := slice.Map(tables, func(idx int, src string) string {
		return strings.ToLower(src)
	})
	return slice.ContainsAll(group, lower)
}
