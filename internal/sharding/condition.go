package sharding

import (
	"fmt"
	"strings"
)

type Operator uint8

const (
	OpEqual Operator = iota
	OpIn
	OpBetween
	// OpRange 单边或者双边的比较，例如 > < >= <=
	OpRange
)

func (o Operator) String() string {
	switch o {
	case OpEqual:
		return "EQUAL"
	case OpIn:
		return "IN"
	case OpBetween:
		return "BETWEEN"
	default:
		return "RANGE"
	}
}

// Literal 条件里的一个值，要么是字面量，要么是预编译参数的下标
type Literal struct {
	Value      any
	ParamIndex int
	IsParam    bool
}

func Value(v any) Literal {
	return Literal{Value: v}
}

// Param idx 从 0 开始
func Param(idx int) Literal {
	return Literal{ParamIndex: idx, IsParam: true}
}

func (l Literal) Resolve(args []any) (any, error) {
	if !l.IsParam {
		return l.Value, nil
	}
	if l.ParamIndex < 0 || l.ParamIndex >= len(args) {
		return nil, fmt.Errorf("sharding: 参数下标 %d 越界, 参数个数 %d", l.ParamIndex, len(args))
	}
	return args[l.ParamIndex], nil
}

// ConditionValue 某一列上的条件
type ConditionValue struct {
	// Table 为空的时候，匹配语句里的任意逻辑表
	Table    string
	Column   string
	Operator Operator
	// Values 用于 EQUAL 和 IN
	Values []Literal
	// Lower 和 Upper 用于 BETWEEN 和 RANGE
	Lower          *Literal
	Upper          *Literal
	LowerInclusive bool
	UpperInclusive bool
}

func (c ConditionValue) matches(logicTable, column string) bool {
	if !strings.EqualFold(c.Column, column) {
		return false
	}
	return c.Table == "" || strings.EqualFold(c.Table, logicTable)
}

func (c ConditionValue) toShardingValue(args []any) (ShardingValue, error) {
	if c.Operator == OpEqual || c.Operator == OpIn {
		vals := make([]any, 0, len(c.Values))
		for _, l := range c.Values {
			v, err := l.Resolve(args)
			if err != nil {
				return ShardingValue{}, err
			}
			vals = append(vals, v)
		}
		return ShardingValue{Column: c.Column, Values: vals}, nil
	}
	r := &Range{LowerInclusive: c.LowerInclusive, UpperInclusive: c.UpperInclusive}
	if c.Lower != nil {
		v, err := c.Lower.Resolve(args)
		if err != nil {
			return ShardingValue{}, err
		}
		r.Lower = v
	}
	if c.Upper != nil {
		v, err := c.Upper.Resolve(args)
		if err != nil {
			return ShardingValue{}, err
		}
		r.Upper = v
	}
	return ShardingValue{Column: c.Column, Range: r}, nil
}

// ShardingCondition 一个逻辑语句实例上的全部条件，列之间是 AND 的关系。
// 多个 ShardingCondition 之间是 OR 的关系，例如批量 INSERT 的每一行
type ShardingCondition struct {
	Values []ConditionValue
}

// HintOverride 显式指定的分库、分表值，优先于条件
type HintOverride struct {
	DatabaseValues []any
	TableValues    []any
}

// Hints 逻辑表 => HintOverride
type Hints map[string]HintOverride

func (h Hints) Find(logicTable string) (HintOverride, bool) {
	if h == nil {
		return HintOverride{}, false
	}
	if o, ok := h[logicTable]; ok {
		return o, true
	}
	for k, o := range h {
		if strings.EqualFold(k, logicTable) {
			return o, true
		}
	}
	return HintOverride{}, false
}

// AddDatabaseValue 返回新的 Hints，不修改原来的
func (h Hints) AddDatabaseValue(logicTable string, values ...any) Hints {
	res := h.clone()
	o := res[logicTable]
	o.DatabaseValues = append(append([]any{}, o.DatabaseValues...), values...)
	res[logicTable] = o
	return res
}

func (h Hints) AddTableValue(logicTable string, values ...any) Hints {
	res := h.clone()
	o := res[logicTable]
	o.TableValues = append(append([]any{}, o.TableValues...), values...)
	res[logicTable] = o
	return res
}

func (h Hints) clone() Hints {
	res := make(Hints, len(h)+1)
	for k, v := range h {
		res[k] = v
	}
	return res
}
