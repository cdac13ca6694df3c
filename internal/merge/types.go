package merge

import "strings"

//go:generate mockgen -source=./types.go -destination=./mocks/query_result.mock.go -package=mocks -typed=false

// QueryResult 一个分片的只进游标，列下标从 1 开始。
// 游标由执行层负责关闭，合并只是借用
type QueryResult interface {
	Next() (bool, error)
	Value(columnIndex int) (any, error)
	ColumnCount() int
	ColumnLabel(columnIndex int) (string, error)
	// ColumnTypeName 数据库类型名，拿不到的时候返回空字符串
	ColumnTypeName(columnIndex int) string
}

// MergedResult 合并之后的逻辑游标
type MergedResult interface {
	Next() (bool, error)
	Value(columnIndex int) (any, error)
}

// Schema 列的排序规则，默认大小写敏感
type Schema struct {
	caseInsensitive map[string]struct{}
}

func NewSchema(caseInsensitiveColumns ...string) *Schema {
	s := &Schema{caseInsensitive: make(map[string]struct{}, len(caseInsensitiveColumns))}
	for _, c := range caseInsensitiveColumns {
		s.caseInsensitive[strings.ToLower(c)] = struct{}{}
	}
	return s
}

func (s *Schema) CaseSensitive(columnLabel string) bool {
	if s == nil {
		return true
	}
	_, ok := s.caseInsensitive[strings.ToLower(columnLabel)]
	return !ok
}
