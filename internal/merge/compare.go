package merge

import (
	"math"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/meoying/shardingfed/internal/errs"
	"github.com/meoying/shardingfed/internal/statement"
	"github.com/spf13/cast"
)

// column 解析之后的 ORDER BY 或者 GROUP BY 项
type column struct {
	index         int
	desc          bool
	nullsFirst    bool
	caseSensitive bool
}

func (c column) compare(a, b any) int {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			if c.nullsFirst {
				return -1
			}
			return 1
		default:
			if c.nullsFirst {
				return 1
			}
			return -1
		}
	}
	res := compareValues(a, b, c.caseSensitive)
	if c.desc {
		return -res
	}
	return res
}

// columns 一组排序项，第一项是主排序键
type columns []column

func (cs columns) compare(a, b []any) int {
	for i, c := range cs {
		if res := c.compare(a[i], b[i]); res != 0 {
			return res
		}
	}
	return 0
}

func (cs columns) load(r QueryResult, dst []any) error {
	for i, c := range cs {
		v, err := r.Value(c.index)
		if err != nil {
			return err
		}
		dst[i] = v
	}
	return nil
}

// resolveColumns 把 ORDER BY 或者 GROUP BY 项解析成结果集的列下标
func resolveColumns(items []statement.OrderByItem, labels []string, stmt *statement.SelectStatement,
	dialect statement.Dialect, schema *Schema) (columns, error) {
	res := make(columns, 0, len(items))
	for _, item := range items {
		idx, err := resolveIndex(item, labels, stmt)
		if err != nil {
			return nil, err
		}
		res = append(res, column{
			index:         idx,
			desc:          item.Direction == statement.Desc,
			nullsFirst:    nullsFirst(item, dialect),
			caseSensitive: schema.CaseSensitive(labels[idx-1]),
		})
	}
	return res, nil
}

func resolveIndex(item statement.OrderByItem, labels []string, stmt *statement.SelectStatement) (int, error) {
	if item.Index > 0 {
		if item.Index > len(labels) {
			return 0, errs.NewColumnIndexOutOfRangeError(item.Index, len(labels))
		}
		return item.Index, nil
	}
	name := statement.Unqualified(item.Column)
	for i, l := range labels {
		if strings.EqualFold(l, name) || strings.EqualFold(l, item.Column) {
			return i + 1, nil
		}
	}
	// ORDER BY 用的是表达式，结果集里是别名
	if p, ok := stmt.FindProjection(item.Column); ok {
		for i, l := range labels {
			if strings.EqualFold(l, p.Label()) {
				return i + 1, nil
			}
		}
	}
	return 0, errs.NewUnknownColumnError(item.Column)
}

func nullsFirst(item statement.OrderByItem, dialect statement.Dialect) bool {
	switch item.Nulls {
	case statement.NullsFirst:
		return true
	case statement.NullsLast:
		return false
	default:
		return dialect.NullIsSmallest() == (item.Direction == statement.Asc)
	}
}

// compareValues 比较两个非 NULL 的值。
// 数字之间按照数值比较，字符串之间按照字典序比较，类型不同的时候尽量转成数字
func compareValues(a, b any, caseSensitive bool) int {
	if ta, ok := a.(time.Time); ok {
		if tb, ok := b.(time.Time); ok {
			return ta.Compare(tb)
		}
	}
	if ba, ok := a.(bool); ok {
		if bb, ok := b.(bool); ok {
			return compareBool(ba, bb)
		}
	}
	na, aNum := toNumber(a)
	nb, bNum := toNumber(b)
	if aNum && bNum {
		if !isString(a) || !isString(b) {
			return na.Cmp(nb)
		}
	}
	sa, sb := toString(a), toString(b)
	if !caseSensitive {
		sa, sb = strings.ToLower(sa), strings.ToLower(sb)
	}
	return strings.Compare(sa, sb)
}

func compareBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	default:
		return 1
	}
}

func isString(v any) bool {
	switch v.(type) {
	case string, []byte:
		return true
	default:
		return false
	}
}

// toNumber 用 big.Float 避免 int64 和 float64 互转丢精度
func toNumber(v any) (*big.Float, bool) {
	f := new(big.Float).SetPrec(128)
	switch val := v.(type) {
	case int:
		return f.SetInt64(int64(val)), true
	case int8:
		return f.SetInt64(int64(val)), true
	case int16:
		return f.SetInt64(int64(val)), true
	case int32:
		return f.SetInt64(int64(val)), true
	case int64:
		return f.SetInt64(val), true
	case uint:
		return f.SetUint64(uint64(val)), true
	case uint8:
		return f.SetUint64(uint64(val)), true
	case uint16:
		return f.SetUint64(uint64(val)), true
	case uint32:
		return f.SetUint64(uint64(val)), true
	case uint64:
		return f.SetUint64(val), true
	case float32:
		return toNumber(float64(val))
	case float64:
		if math.IsNaN(val) {
			return nil, false
		}
		return f.SetFloat64(val), true
	case string:
		if _, err := strconv.ParseFloat(val, 64); err != nil {
			return nil, false
		}
		_, ok := f.SetString(val)
		return f, ok
	case []byte:
		return toNumber(string(val))
	default:
		return nil, false
	}
}

func toString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case []byte:
		return string(val)
	default:
		return cast.ToString(v)
	}
}
