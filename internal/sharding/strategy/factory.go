package strategy

import (
	"fmt"
	"strings"
	"time"

	"github.com/meoying/shardingfed/internal/errs"
	"github.com/meoying/shardingfed/internal/sharding"
	"github.com/spf13/cast"
)

// Config 一个分片策略的配置
type Config struct {
	// Type standard、complex、hint 或者 none
	Type    string
	Columns []string
	// Algorithm 算法类型，例如 INLINE、MOD
	Algorithm string
	Props     map[string]string
}

// New 根据配置创建策略
func New(cfg Config) (sharding.Strategy, error) {
	switch strings.ToLower(cfg.Type) {
	case "", "none":
		return NewNotSharding(), nil
	case "standard":
		if len(cfg.Columns) != 1 {
			return nil, errs.NewInvalidConfigError(fmt.Sprintf("standard 策略需要一个分片键, 实际 %v", cfg.Columns))
		}
		algo, err := newStandardAlgorithm(cfg.Algorithm, cfg.Props)
		if err != nil {
			return nil, err
		}
		return NewStandard(cfg.Columns[0], algo), nil
	case "complex":
		if len(cfg.Columns) == 0 {
			return nil, errs.NewInvalidConfigError("complex 策略至少需要一个分片键")
		}
		if !strings.EqualFold(cfg.Algorithm, "COMPLEX_INLINE") {
			return nil, errs.NewInvalidConfigError(fmt.Sprintf("complex 策略不支持算法 %s", cfg.Algorithm))
		}
		algo, err := NewComplexInline(prop(cfg.Props, "algorithm-expression"), cfg.Columns)
		if err != nil {
			return nil, err
		}
		return NewComplex(cfg.Columns, algo), nil
	case "hint":
		if !strings.EqualFold(cfg.Algorithm, "HINT_INLINE") {
			return nil, errs.NewInvalidConfigError(fmt.Sprintf("hint 策略不支持算法 %s", cfg.Algorithm))
		}
		algo, err := NewHintInline(prop(cfg.Props, "algorithm-expression"))
		if err != nil {
			return nil, err
		}
		return NewHint(algo), nil
	default:
		return nil, errs.NewInvalidConfigError(fmt.Sprintf("未知的分片策略 %s", cfg.Type))
	}
}

func newStandardAlgorithm(typ string, props map[string]string) (StandardAlgorithm, error) {
	switch strings.ToUpper(typ) {
	case "INLINE":
		expr := prop(props, "algorithm-expression")
		if expr == "" {
			return nil, errs.NewInvalidConfigError("INLINE 缺少 algorithm-expression")
		}
		return NewInline(expr)
	case "MOD":
		cnt, err := cast.ToInt64E(prop(props, "sharding-count"))
		if err != nil {
			return nil, errs.NewInvalidConfigError(err.Error())
		}
		return NewMod(cnt)
	case "HASH_MOD":
		cnt, err := cast.ToIntE(prop(props, "sharding-count"))
		if err != nil {
			return nil, errs.NewInvalidConfigError(err.Error())
		}
		return NewHash(cnt, prop(props, "target-pattern"))
	case "BOUNDARY_RANGE":
		items := strings.Split(prop(props, "sharding-ranges"), ",")
		boundaries := make([]int64, 0, len(items))
		for _, item := range items {
			b, err := cast.ToInt64E(strings.TrimSpace(item))
			if err != nil {
				return nil, errs.NewInvalidConfigError(fmt.Sprintf("sharding-ranges 格式错误: %s", err.Error()))
			}
			boundaries = append(boundaries, b)
		}
		return NewRange(boundaries)
	case "INTERVAL":
		return newTimeRange(props)
	default:
		return nil, errs.NewInvalidConfigError(fmt.Sprintf("未知的分片算法 %s", typ))
	}
}

func newTimeRange(props map[string]string) (*TimeRange, error) {
	layout := GoLayout(prop(props, "datetime-pattern"))
	if layout == "" {
		layout = time.DateTime
	}
	lower, err := time.ParseInLocation(layout, prop(props, "datetime-lower"), time.Local)
	if err != nil {
		return nil, errs.NewInvalidConfigError(fmt.Sprintf("datetime-lower 格式错误: %s", err.Error()))
	}
	amount := 1
	if v := prop(props, "datetime-interval-amount"); v != "" {
		amount, err = cast.ToIntE(v)
		if err != nil {
			return nil, errs.NewInvalidConfigError(err.Error())
		}
	}
	unit := IntervalUnit(strings.ToUpper(prop(props, "datetime-interval-unit")))
	if unit == "" {
		unit = UnitDays
	}
	res, err := NewTimeRange(layout, lower, GoLayout(prop(props, "sharding-suffix-pattern")), amount, unit)
	if err != nil {
		return nil, err
	}
	if v := prop(props, "datetime-upper"); v != "" {
		res.Upper, err = time.ParseInLocation(layout, v, time.Local)
		if err != nil {
			return nil, errs.NewInvalidConfigError(fmt.Sprintf("datetime-upper 格式错误: %s", err.Error()))
		}
	}
	return res, nil
}

var javaLayout = strings.NewReplacer(
	"yyyy", "2006",
	"MM", "01",
	"dd", "02",
	"HH", "15",
	"mm", "04",
	"ss", "05",
	"SSS", "000",
)

// GoLayout 兼容 yyyyMMdd 这种写法
func GoLayout(pattern string) string {
	return javaLayout.Replace(pattern)
}

// prop 配置文件读出来的 key 都是小写的
func prop(props map[string]string, key string) string {
	if v, ok := props[key]; ok {
		return v
	}
	for k, v := range props {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}
