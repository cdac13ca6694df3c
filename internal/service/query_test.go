package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/meoying/shardingfed/internal/errs"
	"github.com/meoying/shardingfed/internal/executor"
	"github.com/meoying/shardingfed/internal/job"
	"github.com/meoying/shardingfed/internal/merge"
	"github.com/meoying/shardingfed/internal/routelog"
	"github.com/meoying/shardingfed/internal/sharding"
	"github.com/meoying/shardingfed/internal/sharding/strategy"
	"github.com/meoying/shardingfed/internal/statement"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// containsMatcher 改写之后的 SQL 由 sqlparser 生成，这里只比较关键的片段
var containsMatcher = sqlmock.QueryMatcherFunc(func(expectedSQL, actualSQL string) error {
	if !strings.Contains(actualSQL, expectedSQL) {
		return fmt.Errorf("SQL %q 不包含 %q", actualSQL, expectedSQL)
	}
	return nil
})

type recordSink struct {
	entries []routelog.Entry
}

func (r *recordSink) Record(ctx context.Context, entry routelog.Entry) error {
	r.entries = append(r.entries, entry)
	return nil
}

type QueryServiceTestSuite struct {
	suite.Suite
	mock0 sqlmock.Sqlmock
	mock1 sqlmock.Sqlmock
	sink  *recordSink
	svc   *QueryService
}

func TestQueryService(t *testing.T) {
	suite.Run(t, new(QueryServiceTestSuite))
}

func (s *QueryServiceTestSuite) openMock() (*gorm.DB, sqlmock.Sqlmock) {
	t := s.T()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(containsMatcher))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	mock.MatchExpectationsInOrder(false)
	gormDB, err := gorm.Open(mysql.New(mysql.Config{Conn: db, SkipInitializeWithVersion: true}), &gorm.Config{})
	require.NoError(t, err)
	return gormDB, mock
}

func (s *QueryServiceTestSuite) newRule() *sharding.Rule {
	t := s.T()
	inline := func(column, expr string) sharding.Strategy {
		algo, err := strategy.NewInline(expr)
		require.NoError(t, err)
		return strategy.NewStandard(column, algo)
	}
	nodes, err := strategy.ExpandDataNodes("ds_${0..1}.t_order_${0..1}")
	require.NoError(t, err)
	order, err := sharding.NewTableRule("t_order", nodes,
		inline("user_id", "ds_${user_id % 2}"), inline("order_id", "t_order_${order_id % 2}"))
	require.NoError(t, err)
	rule, err := sharding.NewRule([]string{"ds_0", "ds_1"}, []*sharding.TableRule{order},
		sharding.WithBroadcastTables("t_dict"),
		sharding.WithDefaultStrategies(strategy.NewNotSharding(), strategy.NewNotSharding()))
	require.NoError(t, err)
	return rule
}

func (s *QueryServiceTestSuite) SetupTest() {
	db0, mock0 := s.openMock()
	db1, mock1 := s.openMock()
	s.mock0, s.mock1 = mock0, mock1
	exec := executor.NewExecutor(map[string]*gorm.DB{"ds_0": db0, "ds_1": db1})
	s.sink = &recordSink{}
	s.svc = NewQueryService(job.NewRuleHolder(s.newRule()), exec, merge.NewEngine(statement.MySQL))
	s.svc.RouteLog = s.sink
}

func (s *QueryServiceTestSuite) TearDownTest() {
	assert.NoError(s.T(), s.mock0.ExpectationsWereMet())
	assert.NoError(s.T(), s.mock1.ExpectationsWereMet())
}

// 每个子测试使用独立的 mock
func (s *QueryServiceTestSuite) SetupSubTest() {
	s.SetupTest()
}

func (s *QueryServiceTestSuite) TearDownSubTest() {
	s.TearDownTest()
}

func orderRows(mock sqlmock.Sqlmock) *sqlmock.Rows {
	return sqlmock.NewRowsWithColumnDefinition(
		mock.NewColumn("order_id").OfType("BIGINT", int64(0)),
		mock.NewColumn("amount").OfType("BIGINT", int64(0)),
	)
}

func readAll(t *testing.T, rs *ResultSet) [][]any {
	var res [][]any
	for {
		ok, err := rs.Next()
		require.NoError(t, err)
		if !ok {
			return res
		}
		row, err := rs.Row()
		require.NoError(t, err)
		res = append(res, row)
	}
}

func (s *QueryServiceTestSuite) TestQuery() {
	testCases := []struct {
		name  string
		sql   string
		args  []any
		hints sharding.Hints
		mock  func()

		wantColumns []string
		wantRows    [][]any
		wantUnits   int
		wantErr     error
	}{
		{
			name: "排序分页",
			sql:  "SELECT order_id, amount FROM t_order WHERE user_id = ? ORDER BY order_id DESC LIMIT 1, 2",
			args: []any{1},
			mock: func() {
				s.mock1.ExpectQuery("from t_order_0 where user_id = ? order by order_id desc limit 0, 3").
					WithArgs(1).
					WillReturnRows(orderRows(s.mock1).AddRow(int64(4), int64(40)).AddRow(int64(2), int64(20))).
					RowsWillBeClosed()
				s.mock1.ExpectQuery("from t_order_1 where user_id = ? order by order_id desc limit 0, 3").
					WithArgs(1).
					WillReturnRows(orderRows(s.mock1).AddRow(int64(5), int64(50)).AddRow(int64(3), int64(30)).AddRow(int64(1), int64(10))).
					RowsWillBeClosed()
			},
			wantColumns: []string{"order_id", "amount"},
			wantRows:    [][]any{{int64(4), int64(40)}, {int64(3), int64(30)}},
			wantUnits:   2,
		},
		{
			name: "单个单元",
			sql:  "SELECT order_id, amount FROM t_order WHERE user_id = 2 AND order_id = 3 LIMIT 1, 2",
			mock: func() {
				s.mock0.ExpectQuery("from t_order_1 where user_id = 2 and order_id = 3 limit 1, 2").
					WillReturnRows(orderRows(s.mock0).AddRow(int64(3), int64(30))).
					RowsWillBeClosed()
			},
			wantColumns: []string{"order_id", "amount"},
			wantRows:    [][]any{{int64(3), int64(30)}},
			wantUnits:   1,
		},
		{
			name: "分组求平均值",
			sql:  "SELECT user_id, AVG(amount) FROM t_order GROUP BY user_id",
			mock: func() {
				avgRows := func(mock sqlmock.Sqlmock, userID, avg, sum, cnt int64) *sqlmock.Rows {
					return sqlmock.NewRowsWithColumnDefinition(
						mock.NewColumn("user_id").OfType("BIGINT", int64(0)),
						mock.NewColumn("AVG(amount)").OfType("BIGINT", int64(0)),
						mock.NewColumn("AVG_DERIVED_SUM_0").OfType("BIGINT", int64(0)),
						mock.NewColumn("AVG_DERIVED_COUNT_0").OfType("BIGINT", int64(0)),
					).AddRow(userID, avg, sum, cnt)
				}
				s.mock0.ExpectQuery("from t_order_0 group by user_id order by user_id asc").
					WillReturnRows(avgRows(s.mock0, 2, 10, 20, 2))
				s.mock0.ExpectQuery("from t_order_1 group by user_id order by user_id asc").
					WillReturnRows(avgRows(s.mock0, 2, 40, 40, 1))
				s.mock1.ExpectQuery("from t_order_0 group by user_id order by user_id asc").
					WillReturnRows(avgRows(s.mock1, 1, 5, 10, 2))
				s.mock1.ExpectQuery("from t_order_1 group by user_id order by user_id asc").
					WillReturnRows(avgRows(s.mock1, 1, 20, 20, 1))
			},
			wantColumns: []string{"user_id", "AVG(amount)"},
			wantRows:    [][]any{{int64(1), float64(10)}, {int64(2), float64(20)}},
			wantUnits:   4,
		},
		{
			name: "分组和排序不同的时候合并全部分组",
			sql:  "SELECT user_id, COUNT(*) AS c FROM t_order GROUP BY user_id ORDER BY c DESC LIMIT 1",
			mock: func() {
				countRows := func(mock sqlmock.Sqlmock, vals ...int64) *sqlmock.Rows {
					rows := sqlmock.NewRowsWithColumnDefinition(
						mock.NewColumn("user_id").OfType("BIGINT", int64(0)),
						mock.NewColumn("c").OfType("BIGINT", int64(0)),
					)
					for i := 0; i+1 < len(vals); i += 2 {
						rows.AddRow(vals[i], vals[i+1])
					}
					return rows
				}
				s.mock0.ExpectQuery("from t_order_0 group by user_id order by c desc").
					WillReturnRows(countRows(s.mock0, 1, 3, 2, 1))
				s.mock0.ExpectQuery("from t_order_1 group by user_id order by c desc").
					WillReturnRows(countRows(s.mock0, 2, 1))
				s.mock1.ExpectQuery("from t_order_0 group by user_id order by c desc").
					WillReturnRows(countRows(s.mock1, 2, 2))
				s.mock1.ExpectQuery("from t_order_1 group by user_id order by c desc").
					WillReturnRows(countRows(s.mock1, 3, 1))
			},
			wantColumns: []string{"user_id", "c"},
			wantRows:    [][]any{{int64(2), int64(4)}},
			wantUnits:   4,
		},
		{
			name: "DECIMAL 求和不丢精度",
			sql:  "SELECT SUM(amount) FROM t_order",
			mock: func() {
				sumRows := func(mock sqlmock.Sqlmock, val any) *sqlmock.Rows {
					return sqlmock.NewRowsWithColumnDefinition(
						mock.NewColumn("SUM(amount)").OfType("DECIMAL", ""),
					).AddRow(val)
				}
				s.mock0.ExpectQuery("from t_order_0").WillReturnRows(sumRows(s.mock0, []byte("0.10")))
				s.mock0.ExpectQuery("from t_order_1").WillReturnRows(sumRows(s.mock0, []byte("0.20")))
				s.mock1.ExpectQuery("from t_order_0").WillReturnRows(sumRows(s.mock1, []byte("0.30")))
				s.mock1.ExpectQuery("from t_order_1").WillReturnRows(sumRows(s.mock1, nil))
			},
			wantColumns: []string{"SUM(amount)"},
			wantRows:    [][]any{{"0.60"}},
			wantUnits:   4,
		},
		{
			name: "广播表只查一个数据源",
			sql:  "SELECT code FROM t_dict",
			mock: func() {
				s.mock0.ExpectQuery("select code from t_dict").
					WillReturnRows(sqlmock.NewRowsWithColumnDefinition(
						s.mock0.NewColumn("code").OfType("VARCHAR", "")).AddRow("a"))
			},
			wantColumns: []string{"code"},
			wantRows:    [][]any{{"a"}},
			wantUnits:   1,
		},
		{
			name: "Hint 路由",
			sql:  "SELECT order_id, amount FROM t_order",
			hints: sharding.Hints{}.
				AddDatabaseValue("t_order", 0).
				AddTableValue("t_order", 1),
			mock: func() {
				s.mock0.ExpectQuery("from t_order_1").
					WillReturnRows(orderRows(s.mock0).AddRow(int64(1), int64(10)))
			},
			wantColumns: []string{"order_id", "amount"},
			wantRows:    [][]any{{int64(1), int64(10)}},
			wantUnits:   1,
		},
		{
			name:    "条件恒为假",
			sql:     "SELECT order_id FROM t_order WHERE user_id = 1 AND user_id = 2",
			mock:    func() {},
			wantErr: errs.ErrConditionNeverMatch,
		},
		{
			name:    "没有分片规则",
			sql:     "SELECT id FROM t_unknown",
			mock:    func() {},
			wantErr: errs.ErrConfiguration,
		},
		{
			name: "分片查询失败",
			sql:  "SELECT order_id, amount FROM t_order WHERE order_id = 1",
			mock: func() {
				s.mock0.ExpectQuery("from t_order_1").
					WillReturnRows(orderRows(s.mock0).AddRow(int64(1), int64(10))).
					RowsWillBeClosed()
				s.mock1.ExpectQuery("from t_order_1").
					WillReturnError(sql.ErrConnDone)
			},
			wantErr: sql.ErrConnDone,
		},
	}
	for _, tc := range testCases {
		s.Run(tc.name, func() {
			t := s.T()
			tc.mock()
			rs, err := s.svc.Query(context.Background(), tc.sql, tc.args, tc.hints)
			assert.ErrorIs(t, err, tc.wantErr)
			if err != nil {
				return
			}
			assert.Equal(t, tc.wantColumns, rs.Columns())
			assert.Equal(t, tc.wantRows, readAll(t, rs))
			require.NoError(t, rs.Close())
			require.Len(t, s.sink.entries, 1)
			assert.Equal(t, tc.sql, s.sink.entries[0].LogicSQL)
			assert.Len(t, s.sink.entries[0].Units, tc.wantUnits)
		})
	}
}

func (s *QueryServiceTestSuite) TestExec() {
	testCases := []struct {
		name string
		sql  string
		args []any
		mock func()

		wantAffected int64
		wantErr      error
	}{
		{
			name: "INSERT 按行拆分",
			sql:  "INSERT INTO t_order(order_id, user_id, amount) VALUES (?, ?, ?), (?, ?, ?), (?, ?, ?)",
			args: []any{1, 1, 10, 2, 2, 20, 3, 1, 30},
			mock: func() {
				s.mock1.ExpectExec("into t_order_1(order_id, user_id, amount) values (?, ?, ?), (?, ?, ?)").
					WithArgs(1, 1, 10, 3, 1, 30).
					WillReturnResult(sqlmock.NewResult(3, 2))
				s.mock0.ExpectExec("into t_order_0(order_id, user_id, amount) values (?, ?, ?)").
					WithArgs(2, 2, 20).
					WillReturnResult(sqlmock.NewResult(2, 1))
			},
			wantAffected: 3,
		},
		{
			name: "UPDATE 全路由",
			sql:  "UPDATE t_order SET amount = ? WHERE amount > ?",
			args: []any{0, 100},
			mock: func() {
				for _, mock := range []sqlmock.Sqlmock{s.mock0, s.mock1} {
					for _, tb := range []string{"t_order_0", "t_order_1"} {
						mock.ExpectExec(fmt.Sprintf("update %s set amount = ? where amount > ?", tb)).
							WithArgs(0, 100).
							WillReturnResult(sqlmock.NewResult(0, 1))
					}
				}
			},
			wantAffected: 4,
		},
		{
			name: "DELETE",
			sql:  "DELETE FROM t_order WHERE user_id = ? AND order_id = ?",
			args: []any{3, 5},
			mock: func() {
				s.mock1.ExpectExec("delete from t_order_1 where user_id = ? and order_id = ?").
					WithArgs(3, 5).
					WillReturnResult(sqlmock.NewResult(0, 1))
			},
			wantAffected: 1,
		},
		{
			name:    "INSERT 缺少分片键",
			sql:     "INSERT INTO t_order(amount) VALUES (10)",
			mock:    func() {},
			wantErr: errs.ErrInsertMultipleNodes,
		},
	}
	for _, tc := range testCases {
		s.Run(tc.name, func() {
			tc.mock()
			affected, err := s.svc.Exec(context.Background(), tc.sql, tc.args, nil)
			assert.ErrorIs(s.T(), err, tc.wantErr)
			if err != nil {
				return
			}
			assert.Equal(s.T(), tc.wantAffected, affected)
		})
	}
}

func (s *QueryServiceTestSuite) TestExplain() {
	t := s.T()
	plan, err := s.svc.Explain("SELECT order_id FROM t_order WHERE user_id IN (?, ?) AND order_id = ?", []any{1, 2, 3}, nil)
	require.NoError(t, err)
	assert.Equal(t, []sharding.RouteUnit{
		{DataSource: "ds_1", TableMappers: []sharding.TableMapper{{LogicTable: "t_order", ActualTable: "t_order_1"}}},
		{DataSource: "ds_0", TableMappers: []sharding.TableMapper{{LogicTable: "t_order", ActualTable: "t_order_1"}}},
	}, plan.Route.Units())
	require.Len(t, plan.Units, 2)
	assert.Equal(t, "ds_1", plan.Units[0].DataSource)
	assert.Contains(t, plan.Units[0].SQL, "from t_order_1")
	assert.Equal(t, []any{1, 2, 3}, plan.Units[0].Args)

	_, err = s.svc.Query(context.Background(), "DELETE FROM t_order", nil, nil)
	assert.Error(t, err)
	_, err = s.svc.Exec(context.Background(), "SELECT order_id FROM t_order", nil, nil)
	assert.Error(t, err)
}
