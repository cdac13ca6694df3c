package strategy

import (
	"fmt"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/ecodeclub/ekit/slice"
	"github.com/meoying/shardingfed/internal/errs"
	"github.com/meoying/shardingfed/internal/sharding"
	"github.com/spf13/cast"
)

type IntervalUnit string

const (
	UnitHours  IntervalUnit = "HOURS"
	UnitDays   IntervalUnit = "DAYS"
	UnitMonths IntervalUnit = "MONTHS"
	UnitYears  IntervalUnit = "YEARS"
)

// TimeRange 基于时间区间的分片，每一个区间对应一个后缀，例如 t_order_202401
type TimeRange struct {
	// Layout 解析字符串分片值用的格式
	Layout string
	Lower  time.Time
	// Upper 为零值的时候使用当前时间
	Upper time.Time
	// SuffixLayout 区间起点格式化之后就是目标后缀
	SuffixLayout string
	Amount       int
	Unit         IntervalUnit
	// 返回当前时间。
	// 为了测试弄的，不要修改
	Clock clock.Clock
}

func NewTimeRange(layout string, lower time.Time, suffixLayout string, amount int, unit IntervalUnit) (*TimeRange, error) {
	if amount <= 0 {
		return nil, errs.NewInvalidConfigError(fmt.Sprintf("INTERVAL 的 datetime-interval-amount 必须大于 0, 实际 %d", amount))
	}
	switch unit {
	case UnitHours, UnitDays, UnitMonths, UnitYears:
	default:
		return nil, errs.NewInvalidConfigError(fmt.Sprintf("INTERVAL 不支持的时间单位 %s", unit))
	}
	if suffixLayout == "" {
		return nil, errs.NewInvalidConfigError("INTERVAL 缺少 sharding-suffix-pattern")
	}
	return &TimeRange{
		Layout:       layout,
		Lower:        lower,
		SuffixLayout: suffixLayout,
		Amount:       amount,
		Unit:         unit,
		Clock:        clock.New(),
	}, nil
}

func (t *TimeRange) Name() string {
	return "INTERVAL"
}

func (t *TimeRange) Precise(available []string, _ string, value any) (string, error) {
	v, err := t.parse(value)
	if err != nil {
		return "", err
	}
	upper := t.upper()
	if v.Before(t.Lower) || v.After(upper) {
		return "", nil
	}
	return t.target(available, t.intervalStart(v)), nil
}

func (t *TimeRange) Range(available []string, _ string, r sharding.Range) ([]string, error) {
	from, to := t.Lower, t.upper()
	if r.Lower != nil {
		v, err := t.parse(r.Lower)
		if err != nil {
			return nil, err
		}
		if v.After(from) {
			from = v
		}
	}
	if r.Upper != nil {
		v, err := t.parse(r.Upper)
		if err != nil {
			return nil, err
		}
		if v.Before(to) {
			to = v
		}
	}
	var res []string
	if from.After(to) {
		return res, nil
	}
	for start := t.intervalStart(from); !start.After(to); start = t.next(start) {
		if tg := t.target(available, start); tg != "" && !slice.Contains(res, tg) {
			res = append(res, tg)
		}
	}
	return res, nil
}

func (t *TimeRange) target(available []string, start time.Time) string {
	suffix := start.Format(t.SuffixLayout)
	for _, tg := range available {
		if strings.HasSuffix(tg, suffix) {
			return tg
		}
	}
	return ""
}

// intervalStart v 所在区间的起点，调用方保证 v 不早于 Lower
func (t *TimeRange) intervalStart(v time.Time) time.Time {
	start := t.Lower
	for {
		n := t.next(start)
		if n.After(v) {
			return start
		}
		start = n
	}
}

func (t *TimeRange) next(start time.Time) time.Time {
	switch t.Unit {
	case UnitHours:
		return start.Add(time.Duration(t.Amount) * time.Hour)
	case UnitMonths:
		return start.AddDate(0, t.Amount, 0)
	case UnitYears:
		return start.AddDate(t.Amount, 0, 0)
	default:
		return start.AddDate(0, 0, t.Amount)
	}
}

func (t *TimeRange) upper() time.Time {
	if t.Upper.IsZero() {
		return t.Clock.Now()
	}
	return t.Upper
}

func (t *TimeRange) parse(value any) (time.Time, error) {
	switch v := value.(type) {
	case time.Time:
		return v, nil
	case string:
		if t.Layout != "" {
			return time.ParseInLocation(t.Layout, v, t.Lower.Location())
		}
	case []byte:
		return t.parse(string(v))
	}
	return cast.ToTimeE(value)
}
