package executor

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/ecodeclub/ekit/mapx"
	"github.com/meoying/shardingfed/internal/errs"
	"github.com/meoying/shardingfed/internal/sharding"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// Unit 在一个数据源上执行的物理 SQL
type Unit struct {
	DataSource string
	SQL        string
	Args       []any
}

// Executor 按照数据源名字持有 gorm.DB，并发执行每个路由单元
type Executor struct {
	dbs    map[string]*gorm.DB
	logger *slog.Logger
}

func NewExecutor(dbs map[string]*gorm.DB) *Executor {
	return &Executor{dbs: dbs, logger: slog.Default()}
}

// DataSourceNames 按照名字排序
func (e *Executor) DataSourceNames() []string {
	names := mapx.Keys(e.dbs)
	sort.Strings(names)
	return names
}

func (e *Executor) db(name string) (*gorm.DB, error) {
	db, ok := e.dbs[name]
	if !ok {
		return nil, errs.NewInvalidConfigError(fmt.Sprintf("找不到数据源 %s", name))
	}
	return db, nil
}

// HasTable 数据节点对应的实际表是否存在
func (e *Executor) HasTable(ctx context.Context, node sharding.DataNode) bool {
	db, err := e.db(node.DataSource)
	if err != nil {
		return false
	}
	return db.WithContext(ctx).Migrator().HasTable(node.Table)
}

// Query 返回的结果集和 units 一一对应。
// 只要有一个失败，已经打开的游标全部关闭，不会返回部分结果
func (e *Executor) Query(ctx context.Context, units []Unit) ([]*RowsQueryResult, error) {
	results := make([]*RowsQueryResult, len(units))
	var eg errgroup.Group
	for i, u := range units {
		eg.Go(func() error {
			db, err := e.db(u.DataSource)
			if err != nil {
				return err
			}
			rows, err := db.WithContext(ctx).Raw(u.SQL, u.Args...).Rows()
			if err != nil {
				return fmt.Errorf("执行查询失败 %s: %w", u.DataSource, err)
			}
			res, err := NewRowsQueryResult(rows)
			if err != nil {
				_ = rows.Close()
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		e.logger.Error("分片查询失败", slog.Int("units", len(units)), slog.Any("err", err))
		CloseAll(results)
		return nil, err
	}
	return results, nil
}

// Exec 执行 DML，返回所有单元影响的行数之和
func (e *Executor) Exec(ctx context.Context, units []Unit) (int64, error) {
	affected := make([]int64, len(units))
	var eg errgroup.Group
	for i, u := range units {
		eg.Go(func() error {
			db, err := e.db(u.DataSource)
			if err != nil {
				return err
			}
			res := db.WithContext(ctx).Exec(u.SQL, u.Args...)
			if res.Error != nil {
				return fmt.Errorf("执行语句失败 %s: %w", u.DataSource, res.Error)
			}
			affected[i] = res.RowsAffected
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return 0, err
	}
	var total int64
	for _, a := range affected {
		total += a
	}
	return total, nil
}

// CloseAll 关闭所有非 nil 的游标
func CloseAll(results []*RowsQueryResult) {
	for _, r := range results {
		if r != nil {
			_ = r.Close()
		}
	}
}
