package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ecodeclub/ekit/slice"
	"github.com/meoying/shardingfed/internal/binder"
	"github.com/meoying/shardingfed/internal/executor"
	"github.com/meoying/shardingfed/internal/job"
	"github.com/meoying/shardingfed/internal/merge"
	"github.com/meoying/shardingfed/internal/routelog"
	"github.com/meoying/shardingfed/internal/sharding"
)

// QueryService 把一条逻辑 SQL 变成多条物理 SQL 执行，再把结果合并起来
type QueryService struct {
	holder   *job.RuleHolder
	executor *executor.Executor
	merger   *merge.Engine
	// RouteLog 为 nil 的时候不记录路由结果
	RouteLog routelog.Sink
	// Schema 列的排序规则，nil 表示全部大小写敏感
	Schema *merge.Schema
	Logger *slog.Logger
}

func NewQueryService(holder *job.RuleHolder, exec *executor.Executor, merger *merge.Engine) *QueryService {
	return &QueryService{
		holder:   holder,
		executor: exec,
		merger:   merger,
		Logger:   slog.Default(),
	}
}

// ExecutionPlan 一条逻辑 SQL 的路由和改写结果
type ExecutionPlan struct {
	Statement *binder.BoundStatement
	Route     *sharding.RouteContext
	// Units 和 Route 里的路由单元一一对应
	Units []executor.Unit
}

// Explain 只路由和改写，不执行
func (s *QueryService) Explain(sql string, args []any, hints sharding.Hints) (*ExecutionPlan, error) {
	stmt, err := binder.Bind(sql, args)
	if err != nil {
		return nil, err
	}
	// 整个语句只用这一份规则快照
	router := s.holder.Router()
	if stmt.Kind == sharding.KindInsert {
		return s.explainInsert(router, stmt, hints)
	}
	rc, err := router.RouteTables(stmt.Tables, stmt.RoutingContext(hints))
	if err != nil {
		return nil, err
	}
	plan := &ExecutionPlan{Statement: stmt, Route: rc}
	multi := rc.Len() > 1
	for _, u := range rc.Units() {
		q, qArgs, err := stmt.Rewrite(u, multi, nil)
		if err != nil {
			return nil, err
		}
		plan.Units = append(plan.Units, executor.Unit{DataSource: u.DataSource, SQL: q, Args: qArgs})
	}
	return plan, nil
}

// explainInsert 每一行单独路由，落在同一个单元上的行合并成一条语句
func (s *QueryService) explainInsert(router *sharding.Router, stmt *binder.BoundStatement,
	hints sharding.Hints) (*ExecutionPlan, error) {
	rc := sharding.NewRouteContext()
	rows := make(map[string][]int, len(stmt.Conditions))
	units := make(map[string]sharding.RouteUnit, len(stmt.Conditions))
	for i, cond := range stmt.Conditions {
		ctx := stmt.RoutingContext(hints)
		ctx.Conditions = []sharding.ShardingCondition{cond}
		res, err := router.RouteTables(stmt.Tables, ctx)
		if err != nil {
			return nil, fmt.Errorf("第 %d 行路由失败 %w", i+1, err)
		}
		for _, u := range res.Units() {
			key := u.String()
			if _, ok := units[key]; !ok {
				units[key] = u
				rc.Add(u)
			}
			rows[key] = append(rows[key], i)
		}
	}
	plan := &ExecutionPlan{Statement: stmt, Route: rc}
	for _, u := range rc.Units() {
		q, qArgs, err := stmt.Rewrite(u, false, rows[u.String()])
		if err != nil {
			return nil, err
		}
		plan.Units = append(plan.Units, executor.Unit{DataSource: u.DataSource, SQL: q, Args: qArgs})
	}
	return plan, nil
}

// Query 执行查询，调用方负责关闭返回的 ResultSet
func (s *QueryService) Query(ctx context.Context, sql string, args []any, hints sharding.Hints) (*ResultSet, error) {
	plan, err := s.Explain(sql, args, hints)
	if err != nil {
		return nil, err
	}
	if plan.Statement.Kind != sharding.KindSelect {
		return nil, fmt.Errorf("%s 不是查询语句, 请使用 Exec", sql)
	}
	s.record(ctx, sql, plan)
	results, err := s.executor.Query(ctx, plan.Units)
	if err != nil {
		return nil, err
	}
	qrs := slice.Map(results, func(idx int, src *executor.RowsQueryResult) merge.QueryResult {
		return src
	})
	stmt := plan.Statement.MergeStatement(len(plan.Units))
	merged, err := s.merger.Merge(qrs, stmt, s.Schema)
	if err != nil {
		executor.CloseAll(results)
		return nil, err
	}
	return newResultSet(merged, results, stmt)
}

// Exec 执行 INSERT、UPDATE 或者 DELETE，返回影响的行数
func (s *QueryService) Exec(ctx context.Context, sql string, args []any, hints sharding.Hints) (int64, error) {
	plan, err := s.Explain(sql, args, hints)
	if err != nil {
		return 0, err
	}
	if !plan.Statement.Kind.IsDML() {
		return 0, fmt.Errorf("%s 不是写语句, 请使用 Query", sql)
	}
	s.record(ctx, sql, plan)
	return s.executor.Exec(ctx, plan.Units)
}

func (s *QueryService) record(ctx context.Context, sql string, plan *ExecutionPlan) {
	if s.RouteLog == nil {
		return
	}
	units := slice.Map(plan.Units, func(idx int, src executor.Unit) routelog.Unit {
		return routelog.Unit{DataSource: src.DataSource, SQL: src.SQL, Args: src.Args}
	})
	logCtx, cancel := context.WithTimeout(ctx, time.Second*3)
	err := s.RouteLog.Record(logCtx, routelog.NewEntry(sql, units...))
	cancel()
	if err != nil {
		s.Logger.Error("记录路由日志失败", slog.String("sql", sql), slog.Any("err", err))
	}
}
