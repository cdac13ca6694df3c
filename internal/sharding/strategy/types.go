package strategy

import (
	"regexp"
	"strconv"

	"github.com/meoying/shardingfed/internal/sharding"
)

// StandardAlgorithm 单分片键的分片算法
type StandardAlgorithm interface {
	Name() string
	// Precise 精确值分片，返回空字符串表示没有命中
	Precise(available []string, column string, value any) (string, error)
	// Range 范围分片，不支持的时候返回 errs.ErrRangeUnsupported
	Range(available []string, column string, r sharding.Range) ([]string, error)
}

// ComplexAlgorithm 多分片键的分片算法
type ComplexAlgorithm interface {
	Name() string
	// DoSharding values 是分片键 => 精确值
	DoSharding(available []string, values map[string][]any) ([]string, error)
}

type HintAlgorithm interface {
	Name() string
	DoSharding(available []string, values []any) ([]string, error)
}

var suffixRegexp = regexp.MustCompile(`(\d+)$`)

// targetBySuffix 找出数字后缀等于 n 的目标，例如 n = 1 的时候命中 t_order_1 和 t_order_01
func targetBySuffix(available []string, n int64) string {
	for _, t := range available {
		m := suffixRegexp.FindString(t)
		if m == "" {
			continue
		}
		v, err := strconv.ParseInt(m, 10, 64)
		if err == nil && v == n {
			return t
		}
	}
	return ""
}
