package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrRoutingAlgorithm 分片条件没有命中任何已配置的分片
	ErrRoutingAlgorithm = errors.New("sharding: 分片算法无法路由")
	// ErrConfiguration 逻辑表没有配置规则，或者配置本身不合法
	ErrConfiguration = errors.New("sharding: 配置错误")
	// ErrMergeTypeMismatch 各个分片返回的列元数据不一致
	ErrMergeTypeMismatch = errors.New("merge: 分片结果集列不一致")

	ErrColumnIndexOutOfRange = errors.New("merge: 列下标越界")
	ErrInsertMultipleNodes   = errors.New("sharding: INSERT 语句只能路由到一个数据节点")
	// ErrRangeUnsupported 算法不支持范围查询，策略会退化为广播
	ErrRangeUnsupported     = errors.New("sharding: 算法不支持范围分片")
	ErrConditionNeverMatch  = errors.New("binder: 查询条件恒为假")
	ErrUnsupportedStatement = errors.New("binder: 不支持的语句")
)

func NewRoutingAlgorithmError(table, column string, value any) error {
	return fmt.Errorf("%w, table %s, column %s, value %v", ErrRoutingAlgorithm, table, column, value)
}

func NewNoRouteError(table string) error {
	return fmt.Errorf("%w, table %s 没有可用的数据节点", ErrRoutingAlgorithm, table)
}

// NewUnconfiguredTargetError 算法返回了规则里不存在的目标
func NewUnconfiguredTargetError(table, target string) error {
	return fmt.Errorf("%w, table %s, 目标 %s 不在配置的数据节点中", ErrRoutingAlgorithm, table, target)
}

func NewNoTableRuleError(table string) error {
	return fmt.Errorf("%w, 找不到逻辑表 %s 的分片规则", ErrConfiguration, table)
}

func NewInvalidConfigError(msg string) error {
	return fmt.Errorf("%w, %s", ErrConfiguration, msg)
}

func NewColumnCountMismatchError(shard, want, got int) error {
	return fmt.Errorf("%w, 第 %d 个结果集有 %d 列, 期望 %d 列", ErrMergeTypeMismatch, shard, got, want)
}

func NewColumnMismatchError(shard, index int, want, got string) error {
	return fmt.Errorf("%w, 第 %d 个结果集的第 %d 列是 %s, 期望 %s", ErrMergeTypeMismatch, shard, index, got, want)
}

func NewColumnIndexOutOfRangeError(index, count int) error {
	return fmt.Errorf("%w, index %d, 列数 %d", ErrColumnIndexOutOfRange, index, count)
}

func NewUnknownColumnError(label string) error {
	return fmt.Errorf("%w, 未知列 %s", ErrColumnIndexOutOfRange, label)
}

func NewInsertMultipleNodesError(table string, cnt int) error {
	return fmt.Errorf("%w, table %s 命中了 %d 个数据节点", ErrInsertMultipleNodes, table, cnt)
}

func NewUnsupportedStatementError(stmt string) error {
	return fmt.Errorf("%w: %s", ErrUnsupportedStatement, stmt)
}
