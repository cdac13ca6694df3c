package strategy

import (
	"fmt"
	"sort"

	"github.com/ecodeclub/ekit/slice"
	"github.com/meoying/shardingfed/internal/errs"
	"github.com/meoying/shardingfed/internal/sharding"
	"github.com/spf13/cast"
)

// Range 按照边界分片。
// 边界 [10, 20] 切出三个分区：(-∞, 10) 是 0，[10, 20) 是 1，[20, +∞) 是 2。
// 分区编号就是目标的数字后缀
type Range struct {
	boundaries []int64
}

func NewRange(boundaries []int64) (*Range, error) {
	if len(boundaries) == 0 {
		return nil, errs.NewInvalidConfigError("BOUNDARY_RANGE 至少需要一个边界")
	}
	for i := 1; i < len(boundaries); i++ {
		if boundaries[i] <= boundaries[i-1] {
			return nil, errs.NewInvalidConfigError(fmt.Sprintf("BOUNDARY_RANGE 的边界必须递增: %v", boundaries))
		}
	}
	return &Range{boundaries: boundaries}, nil
}

func (r *Range) Name() string {
	return "BOUNDARY_RANGE"
}

func (r *Range) Precise(available []string, _ string, value any) (string, error) {
	v, err := cast.ToInt64E(value)
	if err != nil {
		return "", fmt.Errorf("BOUNDARY_RANGE: 分片值 %v 不是整数: %w", value, err)
	}
	return targetBySuffix(available, int64(r.partition(v))), nil
}

func (r *Range) Range(available []string, _ string, rg sharding.Range) ([]string, error) {
	first, last := 0, len(r.boundaries)
	if rg.Lower != nil {
		v, err := cast.ToInt64E(rg.Lower)
		if err != nil {
			return nil, err
		}
		first = r.partition(v)
	}
	if rg.Upper != nil {
		v, err := cast.ToInt64E(rg.Upper)
		if err != nil {
			return nil, err
		}
		if !rg.UpperInclusive {
			v--
		}
		last = r.partition(v)
	}
	res := make([]string, 0, 4)
	for p := first; p <= last; p++ {
		if t := targetBySuffix(available, int64(p)); t != "" && !slice.Contains(res, t) {
			res = append(res, t)
		}
	}
	return res, nil
}

// partition 第一个大于 v 的边界的下标
func (r *Range) partition(v int64) int {
	return sort.Search(len(r.boundaries), func(i int) bool {
		return r.boundaries[i] > v
	})
}
