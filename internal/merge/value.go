package merge

import (
	"fmt"

	"github.com/spf13/cast"
)

// ValueAs 读取当前行的一列并转换成 T，NULL 返回 T 的零值
func ValueAs[T int64 | float64 | string | bool](r MergedResult, columnIndex int) (T, error) {
	var zero T
	v, err := r.Value(columnIndex)
	if err != nil || v == nil {
		return zero, err
	}
	var res any
	switch any(zero).(type) {
	case int64:
		res, err = cast.ToInt64E(v)
	case float64:
		res, err = cast.ToFloat64E(v)
	case string:
		res, err = cast.ToStringE(v)
	case bool:
		res, err = cast.ToBoolE(v)
	}
	if err != nil {
		return zero, fmt.Errorf("merge: 第 %d 列 %w", columnIndex, err)
	}
	return res.(T), nil
}
