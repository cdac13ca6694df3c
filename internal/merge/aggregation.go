package merge

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/meoying/shardingfed/internal/statement"
)

// aggregator 把多个分片上同一组的聚合值合并成一个
type aggregator interface {
	merge(v any) error
	result() any
}

func newAggregator(typ statement.AggregationType) aggregator {
	switch typ {
	case statement.AggCount:
		return &sumAggregator{count: true}
	case statement.AggSum:
		return &sumAggregator{}
	case statement.AggMin:
		return &extremeAggregator{}
	case statement.AggMax:
		return &extremeAggregator{max: true}
	case statement.AggBitXor:
		return &bitXorAggregator{}
	default:
		return nil
	}
}

// sumAggregator SUM 和 COUNT，用 big.Rat 精确累加。
// 都是整数的时候结果是 int64，超出 int64 用 uint64，再超出用十进制字符串；
// 有 DECIMAL 字符串的时候结果是保留最大小数位数的字符串；有浮点数的时候结果是 float64。
// COUNT 在没有任何值的时候结果是 0，SUM 是 NULL
type sumAggregator struct {
	count bool
	seen  bool
	kind  numberKind
	scale int
	sum   big.Rat
}

func (a *sumAggregator) merge(v any) error {
	if v == nil {
		return nil
	}
	n, err := parseNumber(v)
	if err != nil {
		return err
	}
	a.seen = true
	a.kind = max(a.kind, n.kind)
	a.scale = max(a.scale, n.scale)
	a.sum.Add(&a.sum, n.val)
	return nil
}

func (a *sumAggregator) result() any {
	if !a.seen {
		if a.count {
			return int64(0)
		}
		return nil
	}
	switch a.kind {
	case numberFloat:
		f, _ := a.sum.Float64()
		return f
	case numberDecimal:
		return a.sum.FloatString(a.scale)
	default:
		i := a.sum.Num()
		if i.IsInt64() {
			return i.Int64()
		}
		if i.IsUint64() {
			return i.Uint64()
		}
		return i.String()
	}
}

type extremeAggregator struct {
	max bool
	val any
}

func (a *extremeAggregator) merge(v any) error {
	if v == nil {
		return nil
	}
	if a.val == nil {
		a.val = v
		return nil
	}
	res := compareValues(v, a.val, true)
	if (a.max && res > 0) || (!a.max && res < 0) {
		a.val = v
	}
	return nil
}

func (a *extremeAggregator) result() any {
	return a.val
}

// bitXorAggregator 输入里有无符号整数的时候结果是 uint64
type bitXorAggregator struct {
	seen     bool
	unsigned bool
	val      uint64
}

func (a *bitXorAggregator) merge(v any) error {
	if v == nil {
		return nil
	}
	n, err := parseNumber(v)
	if err != nil {
		return err
	}
	i := n.val.Num()
	switch {
	case n.kind != numberInt:
		return fmt.Errorf("merge: BIT_XOR 的值 %v 不是整数", v)
	case i.IsInt64():
		a.val ^= uint64(i.Int64())
	case i.IsUint64():
		a.val ^= i.Uint64()
	default:
		return fmt.Errorf("merge: BIT_XOR 的值 %v 超出 64 位", v)
	}
	a.seen = true
	a.unsigned = a.unsigned || n.unsigned
	return nil
}

func (a *bitXorAggregator) result() any {
	if !a.seen {
		return nil
	}
	if a.unsigned {
		return a.val
	}
	return int64(a.val)
}

// avgAggregator AVG 由派生的 SUM 和 COUNT 重新计算
type avgAggregator struct {
	sum   sumAggregator
	count sumAggregator
}

func (a *avgAggregator) mergeDerived(sum, count any) error {
	if err := a.sum.merge(sum); err != nil {
		return err
	}
	return a.count.merge(count)
}

func (a *avgAggregator) result() any {
	if !a.sum.seen || !a.count.seen || a.count.sum.Sign() == 0 {
		return nil
	}
	res, _ := new(big.Rat).Quo(&a.sum.sum, &a.count.sum).Float64()
	return res
}

type numberKind uint8

const (
	numberInt numberKind = iota
	numberDecimal
	numberFloat
)

// number 聚合值的精确表示，scale 是 DECIMAL 字符串的小数位数
type number struct {
	kind     numberKind
	unsigned bool
	scale    int
	val      *big.Rat
}

// parseNumber 字符串里的整数算整数，带小数点的算 DECIMAL
func parseNumber(v any) (number, error) {
	r := new(big.Rat)
	switch val := v.(type) {
	case int:
		return number{val: r.SetInt64(int64(val))}, nil
	case int8:
		return number{val: r.SetInt64(int64(val))}, nil
	case int16:
		return number{val: r.SetInt64(int64(val))}, nil
	case int32:
		return number{val: r.SetInt64(int64(val))}, nil
	case int64:
		return number{val: r.SetInt64(val)}, nil
	case uint:
		return number{unsigned: true, val: r.SetUint64(uint64(val))}, nil
	case uint8:
		return number{unsigned: true, val: r.SetUint64(uint64(val))}, nil
	case uint16:
		return number{unsigned: true, val: r.SetUint64(uint64(val))}, nil
	case uint32:
		return number{unsigned: true, val: r.SetUint64(uint64(val))}, nil
	case uint64:
		return number{unsigned: true, val: r.SetUint64(val)}, nil
	case float32:
		return parseFloat(float64(val))
	case float64:
		return parseFloat(val)
	case []byte:
		return parseNumber(string(val))
	case string:
		return parseNumberString(val)
	default:
		return number{}, fmt.Errorf("merge: 聚合值 %v 的类型 %T 不是数字", v, v)
	}
}

func parseFloat(f float64) (number, error) {
	r := new(big.Rat).SetFloat64(f)
	if r == nil {
		return number{}, fmt.Errorf("merge: 聚合值 %v 不是有限的数字", f)
	}
	return number{kind: numberFloat, val: r}, nil
}

func parseNumberString(s string) (number, error) {
	s = strings.TrimSpace(s)
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return number{val: new(big.Rat).SetInt64(i)}, nil
	}
	if u, err := strconv.ParseUint(s, 10, 64); err == nil {
		return number{unsigned: true, val: new(big.Rat).SetUint64(u)}, nil
	}
	if strings.ContainsAny(s, "eEnN") {
		// 科学计数法、NaN、Inf 按浮点数处理
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return number{}, fmt.Errorf("merge: 聚合值 %q 不是数字: %w", s, err)
		}
		return parseFloat(f)
	}
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return number{}, fmt.Errorf("merge: 聚合值 %q 不是数字", s)
	}
	res := number{kind: numberDecimal, val: r}
	if dot := strings.IndexByte(s, '.'); dot >= 0 {
		res.scale = len(s) - dot - 1
	}
	return res, nil
}
