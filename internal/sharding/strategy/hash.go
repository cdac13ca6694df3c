package strategy

import (
	"fmt"
	"hash/fnv"
	"math"

	"github.com/ecodeclub/ekit/slice"
	"github.com/meoying/shardingfed/internal/errs"
	"github.com/meoying/shardingfed/internal/sharding"
	"github.com/spf13/cast"
)

// Hash 哈希取模分片算法。
// Pattern 不为空的时候用 fmt.Sprintf(Pattern, n) 生成目标，
// 否则在可用目标里找数字后缀等于 n 的那个
type Hash struct {
	Base    int
	Pattern string
	// 哈希函数。方便写测试
	Hash func(key string, base int) int
}

func NewHash(base int, pattern string) (*Hash, error) {
	if base <= 0 {
		return nil, errs.NewInvalidConfigError(fmt.Sprintf("HASH_MOD 的 sharding-count 必须大于 0, 实际 %d", base))
	}
	return &Hash{Base: base, Pattern: pattern, Hash: hash}, nil
}

func (h *Hash) Name() string {
	return "HASH_MOD"
}

func (h *Hash) Precise(available []string, _ string, value any) (string, error) {
	key, err := cast.ToStringE(value)
	if err != nil {
		return "", err
	}
	num := h.Hash(key, h.Base)
	if h.Pattern != "" {
		return fmt.Sprintf(h.Pattern, num), nil
	}
	return targetBySuffix(available, int64(num)), nil
}

func (h *Hash) Range(_ []string, _ string, _ sharding.Range) ([]string, error) {
	return nil, errs.ErrRangeUnsupported
}

func hash(key string, base int) int {
	// 使用FNV-1a哈希算法计算哈希值
	hasher := fnv.New32a()
	_, _ = hasher.Write([]byte(key))
	hash := int(hasher.Sum32())
	// 取模运算得到编号，确保结果在 0 到 base-1 之间
	return hash % base
}

// Mod 取模分片算法，分片值必须是整数
type Mod struct {
	Count int64
}

func NewMod(count int64) (*Mod, error) {
	if count <= 0 {
		return nil, errs.NewInvalidConfigError(fmt.Sprintf("MOD 的 sharding-count 必须大于 0, 实际 %d", count))
	}
	return &Mod{Count: count}, nil
}

func (m *Mod) Name() string {
	return "MOD"
}

func (m *Mod) Precise(available []string, _ string, value any) (string, error) {
	v, err := cast.ToInt64E(value)
	if err != nil {
		return "", fmt.Errorf("MOD: 分片值 %v 不是整数: %w", value, err)
	}
	n := v % m.Count
	if n < 0 {
		n = -n
	}
	return targetBySuffix(available, n), nil
}

// Range 两端都有边界并且跨度小于分片数的时候逐个计算，否则返回全部
func (m *Mod) Range(available []string, _ string, r sharding.Range) ([]string, error) {
	if r.Lower == nil || r.Upper == nil {
		return available, nil
	}
	lower, err := cast.ToInt64E(r.Lower)
	if err != nil {
		return nil, err
	}
	upper, err := cast.ToInt64E(r.Upper)
	if err != nil {
		return nil, err
	}
	if !r.LowerInclusive {
		if lower == math.MaxInt64 {
			return nil, nil
		}
		lower++
	}
	if !r.UpperInclusive {
		if upper == math.MinInt64 {
			return nil, nil
		}
		upper--
	}
	if upper < lower {
		return nil, nil
	}
	// 跨度用 uint64 计算，两端相差很远的时候 int64 会溢出
	if uint64(upper)-uint64(lower) >= uint64(m.Count-1) {
		return available, nil
	}
	res := make([]string, 0, 4)
	for v := lower; ; v++ {
		n := v % m.Count
		if n < 0 {
			n = -n
		}
		if t := targetBySuffix(available, n); t != "" && !slice.Contains(res, t) {
			res = append(res, t)
		}
		if v == upper {
			break
		}
	}
	return res, nil
}
