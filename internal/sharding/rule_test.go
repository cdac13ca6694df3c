package sharding_test

import (
	"testing"

	"github.com/meoying/shardingfed/internal/errs"
	"github.com/meoying/shardingfed/internal/sharding"
	"github.com/meoying/shardingfed/internal/sharding/strategy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRule(t *testing.T) {
	none := strategy.NewNotSharding()
	testCases := []struct {
		name    string
		ds      []string
		tables  func(t *testing.T) []*sharding.TableRule
		opts    []sharding.RuleOption
		wantErr error
	}{
		{
			name: "没有数据源",
			tables: func(t *testing.T) []*sharding.TableRule {
				return nil
			},
			wantErr: errs.ErrConfiguration,
		},
		{
			name: "未知数据源",
			ds:   []string{"ds_0"},
			tables: func(t *testing.T) []*sharding.TableRule {
				return []*sharding.TableRule{tableRule(t, "t_order", "ds_${0..1}.t_order", none, none)}
			},
			wantErr: errs.ErrConfiguration,
		},
		{
			name: "重复的逻辑表",
			ds:   []string{"ds_0"},
			tables: func(t *testing.T) []*sharding.TableRule {
				return []*sharding.TableRule{
					tableRule(t, "t_order", "ds_0.t_order", none, none),
					tableRule(t, "T_ORDER", "ds_0.t_order", none, none),
				}
			},
			wantErr: errs.ErrConfiguration,
		},
		{
			name: "缺少策略",
			ds:   []string{"ds_0"},
			tables: func(t *testing.T) []*sharding.TableRule {
				return []*sharding.TableRule{tableRule(t, "t_order", "ds_0.t_order", nil, none)}
			},
			wantErr: errs.ErrConfiguration,
		},
		{
			name: "绑定表实际表数量不一致",
			ds:   []string{"ds_0"},
			tables: func(t *testing.T) []*sharding.TableRule {
				return []*sharding.TableRule{
					tableRule(t, "t_order", "ds_0.t_order_${0..1}", none, none),
					tableRule(t, "t_order_item", "ds_0.t_order_item_${0..2}", none, none),
				}
			},
			opts:    []sharding.RuleOption{sharding.WithBindingTables([]string{"t_order", "t_order_item"})},
			wantErr: errs.ErrConfiguration,
		},
		{
			name: "绑定表没有规则",
			ds:   []string{"ds_0"},
			tables: func(t *testing.T) []*sharding.TableRule {
				return []*sharding.TableRule{tableRule(t, "t_order", "ds_0.t_order", none, none)}
			},
			opts:    []sharding.RuleOption{sharding.WithBindingTables([]string{"t_order", "t_order_item"})},
			wantErr: errs.ErrConfiguration,
		},
		{
			name: "正常",
			ds:   []string{"ds_0", "ds_1"},
			tables: func(t *testing.T) []*sharding.TableRule {
				return []*sharding.TableRule{
					tableRule(t, "t_order", "ds_${0..1}.t_order_${0..1}", nil, nil),
				}
			},
			opts: []sharding.RuleOption{sharding.WithDefaultStrategies(none, none)},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := sharding.NewRule(tc.ds, tc.tables(t), tc.opts...)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestTableRule(t *testing.T) {
	tr := tableRule(t, "t_order", "ds_1.t_order_1, ds_0.t_order_${0..1}, ds_1.t_order_0", nil, nil)
	assert.Equal(t, []string{"ds_1", "ds_0"}, tr.DataSourceNames())
	assert.Equal(t, []string{"t_order_1", "t_order_0"}, tr.ActualTables("ds_1"))
	assert.Equal(t, []string{"t_order_1", "t_order_0"}, tr.ActualTableNames())
	assert.Equal(t, 1, tr.ActualTableIndex("ds_0", "t_order_1"))
	assert.Equal(t, -1, tr.ActualTableIndex("ds_0", "t_order_9"))
	assert.True(t, tr.Contains(sharding.DataNode{DataSource: "ds_0", Table: "t_order_0"}))

	_, err := sharding.NewTableRule("t_order", nil, nil, nil)
	assert.ErrorIs(t, err, errs.ErrConfiguration)
}

func TestRule_DataNodes(t *testing.T) {
	rule := newTestRule(t)
	nodes := rule.DataNodes()
	assert.Equal(t, sharding.DataNode{DataSource: "ds_0", Table: "t_order_0"}, nodes[0])
	assert.Len(t, nodes, 4+4+2+2+2+2)
	assert.True(t, rule.IsAllBindingTables([]string{"T_ORDER_ITEM", "t_order"}))
	assert.False(t, rule.IsAllBindingTables([]string{"t_order", "t_user"}))
	assert.True(t, rule.IsBroadcastTable("T_CONFIG"))
}

func TestRouteContext(t *testing.T) {
	rc := sharding.NewRouteContext()
	rc.Add(unit("ds_1", "t_order", "t_order_0"), unit("ds_0", "t_order", "t_order_0"))
	rc.Add(unit("ds_1", "t_order", "t_order_0"), unit("ds_1", "t_order", "t_order_1"))
	assert.Equal(t, 3, rc.Len())
	assert.Equal(t, []string{"ds_1", "ds_0"}, rc.DataSourceNames())
	actual, ok := rc.Units()[2].ActualTable("T_ORDER")
	assert.True(t, ok)
	assert.Equal(t, "t_order_1", actual)
}

func TestHints(t *testing.T) {
	var origin sharding.Hints
	h := origin.AddDatabaseValue("t_order", 1).AddTableValue("t_order", 2)
	assert.Nil(t, origin)
	o, ok := h.Find("T_ORDER")
	assert.True(t, ok)
	assert.Equal(t, []any{1}, o.DatabaseValues)
	assert.Equal(t, []any{2}, o.TableValues)
}
