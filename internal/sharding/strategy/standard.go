package strategy

import (
	"errors"

	"github.com/ecodeclub/ekit/slice"
	"github.com/meoying/shardingfed/internal/errs"
	"github.com/meoying/shardingfed/internal/sharding"
)

// Standard 单分片键策略。
// 同一个分片键上的多个条件是 AND 的关系，所以结果取交集
type Standard struct {
	column    string
	algorithm StandardAlgorithm
}

func NewStandard(column string, algorithm StandardAlgorithm) *Standard {
	return &Standard{column: column, algorithm: algorithm}
}

func (s *Standard) Name() string {
	return "standard"
}

func (s *Standard) Columns() []string {
	return []string{s.column}
}

func (s *Standard) Algorithm() StandardAlgorithm {
	return s.algorithm
}

func (s *Standard) DoSharding(available []string, values []sharding.ShardingValue) ([]string, error) {
	if len(values) == 0 {
		return available, nil
	}
	var res []string
	for i, v := range values {
		targets, err := s.doSharding(available, v)
		if err != nil {
			return nil, err
		}
		if i == 0 {
			res = targets
			continue
		}
		res = intersect(res, targets)
	}
	return res, nil
}

// intersect 保持 src 的顺序
func intersect(src, dst []string) []string {
	res := make([]string, 0, len(src))
	for _, s := range src {
		if slice.Contains(dst, s) {
			res = append(res, s)
		}
	}
	return res
}

func (s *Standard) doSharding(available []string, v sharding.ShardingValue) ([]string, error) {
	if v.IsRange() {
		targets, err := s.algorithm.Range(available, s.column, *v.Range)
		if errors.Is(err, errs.ErrRangeUnsupported) {
			// 算法算不出来，只能广播
			return available, nil
		}
		return targets, err
	}
	res := make([]string, 0, len(v.Values))
	for _, val := range v.Values {
		t, err := s.algorithm.Precise(available, s.column, val)
		if err != nil {
			return nil, err
		}
		if t != "" && !slice.Contains(res, t) {
			res = append(res, t)
		}
	}
	return res, nil
}
