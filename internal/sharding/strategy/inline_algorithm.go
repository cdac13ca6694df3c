package strategy

import (
	"strings"

	"github.com/meoying/shardingfed/internal/errs"
	"github.com/meoying/shardingfed/internal/sharding"
)

// Inline 行表达式分片算法，例如 t_order_${order_id % 2}
type Inline struct {
	expr *Expression
}

func NewInline(expression string) (*Inline, error) {
	expr, err := Compile(expression)
	if err != nil {
		return nil, err
	}
	return &Inline{expr: expr}, nil
}

func (i *Inline) Name() string {
	return "INLINE"
}

func (i *Inline) Precise(available []string, column string, value any) (string, error) {
	target, err := i.expr.Evaluate(map[string]any{column: value})
	if err != nil {
		return "", err
	}
	// 命中一个没有配置的目标也要原样返回，由路由引擎报错
	return target, nil
}

func (i *Inline) Range(_ []string, _ string, _ sharding.Range) ([]string, error) {
	return nil, errs.ErrRangeUnsupported
}

// ComplexInline 多个分片键的行表达式，例如 t_order_${(user_id + order_id) % 4}。
// 所有分片键都有值的时候才计算，否则广播
type ComplexInline struct {
	expr    *Expression
	columns []string
}

func NewComplexInline(expression string, columns []string) (*ComplexInline, error) {
	expr, err := Compile(expression)
	if err != nil {
		return nil, err
	}
	return &ComplexInline{expr: expr, columns: columns}, nil
}

func (c *ComplexInline) Name() string {
	return "COMPLEX_INLINE"
}

func (c *ComplexInline) DoSharding(available []string, values map[string][]any) ([]string, error) {
	lists := make([][]any, 0, len(c.columns))
	for _, col := range c.columns {
		vals := findValues(values, col)
		if len(vals) == 0 {
			return available, nil
		}
		lists = append(lists, vals)
	}
	var res []string
	seen := make(map[string]struct{}, 4)
	var walk func(idx int, params map[string]any) error
	walk = func(idx int, params map[string]any) error {
		if idx == len(c.columns) {
			target, err := c.expr.Evaluate(params)
			if err != nil {
				return err
			}
			if _, ok := seen[target]; !ok {
				seen[target] = struct{}{}
				res = append(res, target)
			}
			return nil
		}
		for _, v := range lists[idx] {
			params[c.columns[idx]] = v
			if err := walk(idx+1, params); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(0, make(map[string]any, len(c.columns))); err != nil {
		return nil, err
	}
	return res, nil
}

func findValues(values map[string][]any, column string) []any {
	if v, ok := values[column]; ok {
		return v
	}
	for k, v := range values {
		if strings.EqualFold(k, column) {
			return v
		}
	}
	return nil
}

// HintInline 行表达式里面用 value 引用 Hint 值，例如 ds_${value % 2}
type HintInline struct {
	expr *Expression
}

func NewHintInline(expression string) (*HintInline, error) {
	expr, err := Compile(expression)
	if err != nil {
		return nil, err
	}
	return &HintInline{expr: expr}, nil
}

func (h *HintInline) Name() string {
	return "HINT_INLINE"
}

func (h *HintInline) DoSharding(_ []string, values []any) ([]string, error) {
	res := make([]string, 0, len(values))
	for _, v := range values {
		target, err := h.expr.Evaluate(map[string]any{"value": v})
		if err != nil {
			return nil, err
		}
		res = append(res, target)
	}
	return res, nil
}
