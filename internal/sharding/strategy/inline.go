package strategy

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/Knetic/govaluate"
	"github.com/meoying/shardingfed/internal/errs"
	"github.com/meoying/shardingfed/internal/sharding"
	"github.com/spf13/cast"
)

// 行表达式里可以使用的函数
var functions = map[string]govaluate.ExpressionFunction{
	"hashcode": func(args ...any) (any, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("hashcode: 需要 1 个参数, 实际 %d 个", len(args))
		}
		return float64(Hashcode(format(args[0]))), nil
	},
	"mod": func(args ...any) (any, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("mod: 需要 2 个参数, 实际 %d 个", len(args))
		}
		a, err := cast.ToInt64E(args[0])
		if err != nil {
			return nil, err
		}
		b, err := cast.ToInt64E(args[1])
		if err != nil {
			return nil, err
		}
		if b == 0 {
			return nil, fmt.Errorf("mod: 除数为 0")
		}
		return float64(a % b), nil
	},
	"abs": func(args ...any) (any, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("abs: 需要 1 个参数, 实际 %d 个", len(args))
		}
		v, err := cast.ToFloat64E(args[0])
		if err != nil {
			return nil, err
		}
		return math.Abs(v), nil
	},
}

var rangeRegexp = regexp.MustCompile(`^\s*(-?\d+)\s*\.\.\s*(-?\d+)\s*$`)

type segment struct {
	text   string
	isCode bool
	expr   *govaluate.EvaluableExpression
}

// Expression 行表达式，例如 ds_${user_id % 2}。
// ${} 和 $->{} 两种写法是等价的
type Expression struct {
	raw      string
	segments []segment
}

// Compile 编译用于求值的行表达式
func Compile(raw string) (*Expression, error) {
	segs, err := parseSegments(raw)
	if err != nil {
		return nil, err
	}
	for i, seg := range segs {
		if !seg.isCode {
			continue
		}
		expr, err := govaluate.NewEvaluableExpressionWithFunctions(seg.text, functions)
		if err != nil {
			return nil, errs.NewInvalidConfigError(fmt.Sprintf("行表达式 %s 无法解析: %s", raw, err.Error()))
		}
		segs[i].expr = expr
	}
	return &Expression{raw: raw, segments: segs}, nil
}

func (e *Expression) String() string {
	return e.raw
}

// Evaluate 代入参数求值
func (e *Expression) Evaluate(params map[string]any) (string, error) {
	var sb strings.Builder
	for _, seg := range e.segments {
		if !seg.isCode {
			sb.WriteString(seg.text)
			continue
		}
		v, err := seg.expr.Evaluate(normalize(params))
		if err != nil {
			return "", fmt.Errorf("行表达式 %s 求值失败: %w", e.raw, err)
		}
		sb.WriteString(format(v))
	}
	return sb.String(), nil
}

// Expand 展开数据节点表达式，例如 ds_${0..1}.t_order_${[0, 1]}。
// 逗号分隔的多个表达式依次展开，每个表达式内部求笛卡尔积
func Expand(raw string) ([]string, error) {
	var res []string
	for _, part := range splitTopLevel(raw) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		segs, err := parseSegments(part)
		if err != nil {
			return nil, err
		}
		expanded := []string{""}
		for _, seg := range segs {
			values := []string{seg.text}
			if seg.isCode {
				values, err = expandCode(seg.text)
				if err != nil {
					return nil, fmt.Errorf("%w, 行表达式 %s", err, raw)
				}
			}
			next := make([]string, 0, len(expanded)*len(values))
			for _, prefix := range expanded {
				for _, v := range values {
					next = append(next, prefix+v)
				}
			}
			expanded = next
		}
		res = append(res, expanded...)
	}
	return res, nil
}

// ExpandDataNodes 展开成数据节点，每一项必须是 数据源.表 的格式
func ExpandDataNodes(raw string) ([]sharding.DataNode, error) {
	items, err := Expand(raw)
	if err != nil {
		return nil, err
	}
	res := make([]sharding.DataNode, 0, len(items))
	for _, item := range items {
		ds, tb, ok := strings.Cut(item, ".")
		if !ok || ds == "" || tb == "" {
			return nil, errs.NewInvalidConfigError(fmt.Sprintf("数据节点 %s 格式错误", item))
		}
		res = append(res, sharding.DataNode{DataSource: ds, Table: tb})
	}
	return res, nil
}

func expandCode(code string) ([]string, error) {
	code = strings.TrimSpace(code)
	if m := rangeRegexp.FindStringSubmatch(code); m != nil {
		from, _ := strconv.Atoi(m[1])
		to, _ := strconv.Atoi(m[2])
		step := 1
		if from > to {
			step = -1
		}
		res := make([]string, 0, abs(to-from)+1)
		for i := from; ; i += step {
			res = append(res, strconv.Itoa(i))
			if i == to {
				break
			}
		}
		return res, nil
	}
	if strings.HasPrefix(code, "[") && strings.HasSuffix(code, "]") {
		items := strings.Split(code[1:len(code)-1], ",")
		res := make([]string, 0, len(items))
		for _, item := range items {
			item = strings.Trim(strings.TrimSpace(item), `'"`)
			res = append(res, item)
		}
		return res, nil
	}
	expr, err := govaluate.NewEvaluableExpressionWithFunctions(code, functions)
	if err != nil {
		return nil, errs.NewInvalidConfigError(err.Error())
	}
	v, err := expr.Evaluate(nil)
	if err != nil {
		return nil, errs.NewInvalidConfigError(err.Error())
	}
	return []string{format(v)}, nil
}

func parseSegments(raw string) ([]segment, error) {
	var (
		segs []segment
		sb   strings.Builder
	)
	for i := 0; i < len(raw); {
		start := 0
		switch {
		case strings.HasPrefix(raw[i:], "${"):
			start = i + 2
		case strings.HasPrefix(raw[i:], "$->{"):
			start = i + 4
		default:
			sb.WriteByte(raw[i])
			i++
			continue
		}
		end := matchBrace(raw, start)
		if end < 0 {
			return nil, errs.NewInvalidConfigError(fmt.Sprintf("行表达式 %s 缺少 }", raw))
		}
		if sb.Len() > 0 {
			segs = append(segs, segment{text: sb.String()})
			sb.Reset()
		}
		segs = append(segs, segment{text: raw[start:end], isCode: true})
		i = end + 1
	}
	if sb.Len() > 0 {
		segs = append(segs, segment{text: sb.String()})
	}
	return segs, nil
}

// matchBrace 返回和 start 之前的 { 配对的 } 的下标
func matchBrace(raw string, start int) int {
	depth := 1
	for j := start; j < len(raw); j++ {
		switch raw[j] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return j
			}
		}
	}
	return -1
}

func splitTopLevel(raw string) []string {
	var (
		res   []string
		depth int
		last  int
	)
	for i := 0; i < len(raw); i++ {
		switch raw[i] {
		case '{', '[':
			depth++
		case '}', ']':
			depth--
		case ',':
			if depth == 0 {
				res = append(res, raw[last:i])
				last = i + 1
			}
		}
	}
	return append(res, raw[last:])
}

// normalize govaluate 只认识 float64 和 string，[]byte 之类的先转一下
func normalize(params map[string]any) map[string]any {
	res := make(map[string]any, len(params))
	for k, v := range params {
		switch val := v.(type) {
		case []byte:
			res[k] = string(val)
		case fmt.Stringer:
			res[k] = val.String()
		default:
			res[k] = v
		}
	}
	return res
}

// format 整数形式的浮点数按照整数输出
func format(v any) string {
	switch val := v.(type) {
	case float64:
		if val == math.Trunc(val) && !math.IsInf(val, 0) {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return format(float64(val))
	case string:
		return val
	default:
		return cast.ToString(v)
	}
}

// Hashcode 和 Java 的 String.hashCode 结果一致
func Hashcode(s string) int32 {
	var h int32
	for _, c := range s {
		h = c + ((h << 5) - h)
	}
	return h
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
