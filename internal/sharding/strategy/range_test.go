package strategy

import (
	"testing"

	"github.com/meoying/shardingfed/internal/errs"
	"github.com/meoying/shardingfed/internal/sharding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRange(t *testing.T) {
	available := []string{"t_order_0", "t_order_1", "t_order_2"}
	r, err := NewRange([]int64{10, 20})
	require.NoError(t, err)

	testCases := []struct {
		name        string
		value       any
		rg          *sharding.Range
		wantTargets []string
	}{
		{
			name:        "小于第一个边界",
			value:       5,
			wantTargets: []string{"t_order_0"},
		},
		{
			name:        "等于边界",
			value:       10,
			wantTargets: []string{"t_order_1"},
		},
		{
			name:        "大于最后一个边界",
			value:       int64(25),
			wantTargets: []string{"t_order_2"},
		},
		{
			name:        "范围在一个分区内",
			rg:          &sharding.Range{Lower: 12, Upper: 20, LowerInclusive: true},
			wantTargets: []string{"t_order_1"},
		},
		{
			name:        "只有上界",
			rg:          &sharding.Range{Upper: 10, UpperInclusive: true},
			wantTargets: []string{"t_order_0", "t_order_1"},
		},
		{
			name:        "只有下界",
			rg:          &sharding.Range{Lower: 20, LowerInclusive: true},
			wantTargets: []string{"t_order_2"},
		},
		{
			name:        "下界大于上界",
			rg:          &sharding.Range{Lower: 30, Upper: 5},
			wantTargets: []string{},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.rg != nil {
				targets, err := r.Range(available, "order_id", *tc.rg)
				require.NoError(t, err)
				assert.Equal(t, tc.wantTargets, targets)
				return
			}
			target, err := r.Precise(available, "order_id", tc.value)
			require.NoError(t, err)
			assert.Equal(t, tc.wantTargets, []string{target})
		})
	}
}

func TestNewRange(t *testing.T) {
	_, err := NewRange(nil)
	assert.ErrorIs(t, err, errs.ErrConfiguration)
	_, err = NewRange([]int64{20, 10})
	assert.ErrorIs(t, err, errs.ErrConfiguration)
}
