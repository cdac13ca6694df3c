package strategy

import (
	"github.com/meoying/shardingfed/internal/sharding"
)

// Complex 多分片键策略，只使用精确值，范围条件交给算法自己决定是否广播
type Complex struct {
	columns   []string
	algorithm ComplexAlgorithm
}

func NewComplex(columns []string, algorithm ComplexAlgorithm) *Complex {
	return &Complex{columns: columns, algorithm: algorithm}
}

func (c *Complex) Name() string {
	return "complex"
}

func (c *Complex) Columns() []string {
	return c.columns
}

func (c *Complex) DoSharding(available []string, values []sharding.ShardingValue) ([]string, error) {
	if len(values) == 0 {
		return available, nil
	}
	precise := make(map[string][]any, len(c.columns))
	for _, v := range values {
		if v.IsRange() {
			continue
		}
		precise[v.Column] = append(precise[v.Column], v.Values...)
	}
	if len(precise) == 0 {
		return available, nil
	}
	return c.algorithm.DoSharding(available, precise)
}

// Hint 不从 SQL 里面取分片值，只用显式指定的值
type Hint struct {
	algorithm HintAlgorithm
}

func NewHint(algorithm HintAlgorithm) *Hint {
	return &Hint{algorithm: algorithm}
}

func (h *Hint) Name() string {
	return "hint"
}

func (h *Hint) Columns() []string {
	return nil
}

func (h *Hint) DoSharding(available []string, values []sharding.ShardingValue) ([]string, error) {
	var vals []any
	for _, v := range values {
		vals = append(vals, v.Values...)
	}
	if len(vals) == 0 {
		return available, nil
	}
	return h.algorithm.DoSharding(available, vals)
}
