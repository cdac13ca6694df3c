package job

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/meoying/shardingfed/internal/sharding"
	"github.com/meoying/shardingfed/internal/sharding/strategy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRule(t *testing.T, nodes string) *sharding.Rule {
	dataNodes, err := strategy.ExpandDataNodes(nodes)
	require.NoError(t, err)
	algo, err := strategy.NewInline("t_order_${order_id % 2}")
	require.NoError(t, err)
	tr, err := sharding.NewTableRule("t_order", dataNodes, nil, strategy.NewStandard("order_id", algo))
	require.NoError(t, err)
	rule, err := sharding.NewRule([]string{"ds_0", "ds_1"}, []*sharding.TableRule{tr},
		sharding.WithDefaultStrategies(strategy.NewNotSharding(), strategy.NewNotSharding()))
	require.NoError(t, err)
	return rule
}

func TestRuleWatcher_Reload(t *testing.T) {
	old := newRule(t, "ds_0.t_order_${0..1}")
	latest := newRule(t, "ds_${0..1}.t_order_${0..1}")
	testCases := []struct {
		name    string
		loader  Loader
		want    *sharding.Rule
		wantErr error
	}{
		{
			name: "替换规则",
			loader: func(ctx context.Context) (*sharding.Rule, error) {
				return latest, nil
			},
			want: latest,
		},
		{
			name: "加载失败保留旧规则",
			loader: func(ctx context.Context) (*sharding.Rule, error) {
				return nil, errors.New("mock error")
			},
			want:    old,
			wantErr: errors.New("加载分片规则失败 mock error"),
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			holder := NewRuleHolder(old)
			w := NewRuleWatcher(holder, tc.loader, time.Minute)
			err := w.Reload(context.Background())
			if tc.wantErr != nil {
				assert.EqualError(t, err, tc.wantErr.Error())
			} else {
				assert.NoError(t, err)
			}
			assert.Same(t, tc.want, holder.Load())
			assert.Same(t, tc.want, holder.Router().Rule())
		})
	}
}

func TestRuleWatcher_Start(t *testing.T) {
	old := newRule(t, "ds_0.t_order_${0..1}")
	latest := newRule(t, "ds_${0..1}.t_order_${0..1}")
	holder := NewRuleHolder(old)
	loaded := make(chan struct{}, 1)
	w := NewRuleWatcher(holder, func(ctx context.Context) (*sharding.Rule, error) {
		defer func() { loaded <- struct{}{} }()
		return latest, nil
	}, time.Minute)
	mock := clock.NewMock()
	w.clock = mock

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)

	mock.Add(30 * time.Second)
	assert.Same(t, old, holder.Load())

	mock.Add(30 * time.Second)
	select {
	case <-loaded:
	case <-time.After(time.Second * 3):
		t.Fatal("没有重新加载规则")
	}
	// Store 在 loader 返回之后执行
	assert.Eventually(t, func() bool {
		return holder.Load() == latest
	}, time.Second*3, time.Millisecond*10)
}

func TestRuleWatcher_Checker(t *testing.T) {
	old := newRule(t, "ds_0.t_order_${0..1}")
	latest := newRule(t, "ds_${0..1}.t_order_${0..1}")
	w := NewRuleWatcher(NewRuleHolder(old), func(ctx context.Context) (*sharding.Rule, error) {
		return latest, nil
	}, time.Minute)
	var checked []sharding.DataNode
	w.Checker = func(ctx context.Context, node sharding.DataNode) bool {
		checked = append(checked, node)
		return node.Table == "t_order_0"
	}
	require.NoError(t, w.Reload(context.Background()))
	// 只检查新增的节点
	assert.ElementsMatch(t, []sharding.DataNode{
		{DataSource: "ds_1", Table: "t_order_0"},
		{DataSource: "ds_1", Table: "t_order_1"},
	}, checked)
}
