package executor

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/meoying/shardingfed/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func openMock(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	gormDB, err := gorm.Open(mysql.New(mysql.Config{Conn: db, SkipInitializeWithVersion: true}), &gorm.Config{})
	require.NoError(t, err)
	return gormDB, mock
}

func orderRows(mock sqlmock.Sqlmock) *sqlmock.Rows {
	return sqlmock.NewRowsWithColumnDefinition(
		mock.NewColumn("id").OfType("BIGINT", int64(0)),
		mock.NewColumn("name").OfType("VARCHAR", ""),
	)
}

func TestExecutor_Query(t *testing.T) {
	testCases := []struct {
		name  string
		mock  func(mock0, mock1 sqlmock.Sqlmock)
		units []Unit

		wantErr  error
		wantRows [][][]any
	}{
		{
			name: "结果和路由单元顺序一致",
			mock: func(mock0, mock1 sqlmock.Sqlmock) {
				mock0.ExpectQuery("SELECT id, name FROM t_order_0 WHERE id = ?").
					WithArgs(1).
					WillReturnRows(orderRows(mock0).AddRow(int64(1), "a"))
				mock1.ExpectQuery("SELECT id, name FROM t_order_1").
					WillReturnRows(orderRows(mock1).AddRow(int64(2), "b").AddRow(int64(3), "c"))
			},
			units: []Unit{
				{DataSource: "ds_0", SQL: "SELECT id, name FROM t_order_0 WHERE id = ?", Args: []any{1}},
				{DataSource: "ds_1", SQL: "SELECT id, name FROM t_order_1"},
			},
			wantRows: [][][]any{
				{{int64(1), "a"}},
				{{int64(2), "b"}, {int64(3), "c"}},
			},
		},
		{
			name: "数据源不存在",
			mock: func(mock0, mock1 sqlmock.Sqlmock) {},
			units: []Unit{
				{DataSource: "ds_9", SQL: "SELECT 1"},
			},
			wantErr: errs.ErrConfiguration,
		},
		{
			name: "一个分片失败，其他游标都关闭",
			mock: func(mock0, mock1 sqlmock.Sqlmock) {
				mock0.ExpectQuery("SELECT id, name FROM t_order_0").
					WillReturnRows(orderRows(mock0).AddRow(int64(1), "a")).
					RowsWillBeClosed()
				mock1.ExpectQuery("SELECT id, name FROM t_order_1").
					WillReturnError(sql.ErrConnDone)
			},
			units: []Unit{
				{DataSource: "ds_0", SQL: "SELECT id, name FROM t_order_0"},
				{DataSource: "ds_1", SQL: "SELECT id, name FROM t_order_1"},
			},
			wantErr: sql.ErrConnDone,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			db0, mock0 := openMock(t)
			db1, mock1 := openMock(t)
			tc.mock(mock0, mock1)
			e := NewExecutor(map[string]*gorm.DB{"ds_0": db0, "ds_1": db1})

			results, err := e.Query(context.Background(), tc.units)
			assert.ErrorIs(t, err, tc.wantErr)
			if err != nil {
				assert.NoError(t, mock0.ExpectationsWereMet())
				assert.NoError(t, mock1.ExpectationsWereMet())
				return
			}
			defer CloseAll(results)
			got := make([][][]any, 0, len(results))
			for _, r := range results {
				assert.Equal(t, 2, r.ColumnCount())
				label, err := r.ColumnLabel(2)
				require.NoError(t, err)
				assert.Equal(t, "name", label)
				assert.Equal(t, "BIGINT", r.ColumnTypeName(1))
				var rows [][]any
				for {
					ok, err := r.Next()
					require.NoError(t, err)
					if !ok {
						break
					}
					id, err := r.Value(1)
					require.NoError(t, err)
					name, err := r.Value(2)
					require.NoError(t, err)
					rows = append(rows, []any{id, name})
				}
				got = append(got, rows)
			}
			assert.Equal(t, tc.wantRows, got)
		})
	}
}

func TestExecutor_Exec(t *testing.T) {
	db0, mock0 := openMock(t)
	db1, mock1 := openMock(t)
	mock0.ExpectExec("UPDATE t_order_0 SET status = ? WHERE user_id = ?").
		WithArgs(1, 2).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock1.ExpectExec("UPDATE t_order_1 SET status = ? WHERE user_id = ?").
		WithArgs(1, 2).
		WillReturnResult(sqlmock.NewResult(0, 3))
	e := NewExecutor(map[string]*gorm.DB{"ds_1": db1, "ds_0": db0})
	assert.Equal(t, []string{"ds_0", "ds_1"}, e.DataSourceNames())

	affected, err := e.Exec(context.Background(), []Unit{
		{DataSource: "ds_0", SQL: "UPDATE t_order_0 SET status = ? WHERE user_id = ?", Args: []any{1, 2}},
		{DataSource: "ds_1", SQL: "UPDATE t_order_1 SET status = ? WHERE user_id = ?", Args: []any{1, 2}},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(5), affected)

	mock0.ExpectExec("DELETE FROM t_order_0").WillReturnError(errors.New("mock error"))
	_, err = e.Exec(context.Background(), []Unit{{DataSource: "ds_0", SQL: "DELETE FROM t_order_0"}})
	assert.Error(t, err)
}

func TestRowsQueryResult_ValueOutOfRange(t *testing.T) {
	db, mock := openMock(t)
	mock.ExpectQuery("SELECT id, name FROM t_order_0").
		WillReturnRows(orderRows(mock).AddRow(int64(1), "a"))
	rows, err := db.Raw("SELECT id, name FROM t_order_0").Rows()
	require.NoError(t, err)
	r, err := NewRowsQueryResult(rows)
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	_, err = r.Value(1)
	assert.ErrorIs(t, err, errs.ErrColumnIndexOutOfRange)
	ok, err := r.Next()
	require.NoError(t, err)
	require.True(t, ok)
	_, err = r.Value(3)
	assert.ErrorIs(t, err, errs.ErrColumnIndexOutOfRange)
	_, err = r.ColumnLabel(0)
	assert.ErrorIs(t, err, errs.ErrColumnIndexOutOfRange)
	assert.Equal(t, "", r.ColumnTypeName(3))
}

func TestNormalize(t *testing.T) {
	testCases := []struct {
		name     string
		value    any
		typeName string
		want     any
	}{
		{name: "整数", value: []byte("12"), typeName: "BIGINT", want: int64(12)},
		{name: "无符号整数", value: []byte("18446744073709551615"), typeName: "UNSIGNED BIGINT", want: uint64(18446744073709551615)},
		{name: "DECIMAL 保留字符串", value: []byte("1.50"), typeName: "DECIMAL", want: "1.50"},
		{name: "浮点数", value: []byte("1.5"), typeName: "DOUBLE", want: 1.5},
		{name: "字符串", value: []byte("tom"), typeName: "VARCHAR", want: "tom"},
		{name: "类型未知", value: []byte("12"), want: "12"},
		{name: "解析失败", value: []byte("abc"), typeName: "INT", want: "abc"},
		{name: "已经是数字", value: int64(3), typeName: "INT", want: int64(3)},
		{name: "NULL", typeName: "INT"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, normalize(tc.value, tc.typeName))
		})
	}
}
