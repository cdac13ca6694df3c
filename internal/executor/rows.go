package executor

import (
	"database/sql"
	"strconv"
	"strings"

	"github.com/meoying/shardingfed/internal/errs"
)

// RowsQueryResult 把 *sql.Rows 适配成分片结果集
type RowsQueryResult struct {
	rows    *sql.Rows
	labels  []string
	types   []string
	current []any
}

func NewRowsQueryResult(rows *sql.Rows) (*RowsQueryResult, error) {
	labels, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	types := make([]string, len(labels))
	// 有的驱动拿不到类型，那就按照空字符串处理
	if cts, err := rows.ColumnTypes(); err == nil {
		for i, ct := range cts {
			types[i] = ct.DatabaseTypeName()
		}
	}
	return &RowsQueryResult{rows: rows, labels: labels, types: types}, nil
}

func (r *RowsQueryResult) Next() (bool, error) {
	if !r.rows.Next() {
		r.current = nil
		return false, r.rows.Err()
	}
	values := make([]any, len(r.labels))
	dst := make([]any, len(values))
	for i := range values {
		dst[i] = &values[i]
	}
	if err := r.rows.Scan(dst...); err != nil {
		return false, err
	}
	for i, v := range values {
		values[i] = normalize(v, r.types[i])
	}
	r.current = values
	return true, nil
}

func (r *RowsQueryResult) Value(columnIndex int) (any, error) {
	if columnIndex < 1 || columnIndex > len(r.current) {
		return nil, errs.NewColumnIndexOutOfRangeError(columnIndex, len(r.current))
	}
	return r.current[columnIndex-1], nil
}

func (r *RowsQueryResult) ColumnCount() int {
	return len(r.labels)
}

func (r *RowsQueryResult) ColumnLabel(columnIndex int) (string, error) {
	if columnIndex < 1 || columnIndex > len(r.labels) {
		return "", errs.NewColumnIndexOutOfRangeError(columnIndex, len(r.labels))
	}
	return r.labels[columnIndex-1], nil
}

func (r *RowsQueryResult) ColumnTypeName(columnIndex int) string {
	if columnIndex < 1 || columnIndex > len(r.types) {
		return ""
	}
	return r.types[columnIndex-1]
}

func (r *RowsQueryResult) Close() error {
	return r.rows.Close()
}

// normalize MySQL 文本协议返回的都是 []byte，按照列类型转成数字或者字符串
func normalize(v any, typeName string) any {
	b, ok := v.([]byte)
	if !ok {
		return v
	}
	s := string(b)
	switch strings.ToUpper(typeName) {
	case "TINYINT", "SMALLINT", "MEDIUMINT", "INT", "INTEGER", "BIGINT", "YEAR":
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i
		}
	case "UNSIGNED TINYINT", "UNSIGNED SMALLINT", "UNSIGNED MEDIUMINT", "UNSIGNED INT", "UNSIGNED BIGINT":
		if u, err := strconv.ParseUint(s, 10, 64); err == nil {
			return u
		}
	case "DECIMAL", "NUMERIC":
		// 保留字符串，跨分片求和的时候不丢精度
		return s
	case "FLOAT", "DOUBLE", "REAL":
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}
	return s
}
