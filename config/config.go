package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/meoying/shardingfed/internal/errs"
	"github.com/meoying/shardingfed/internal/sharding"
	"github.com/meoying/shardingfed/internal/sharding/strategy"
	"github.com/meoying/shardingfed/internal/statement"
	"github.com/spf13/viper"
)

type Config struct {
	DataSources []DB   `json:"dataSources" yaml:"dataSources"`
	Dialect     string `json:"dialect" yaml:"dialect"`
	Rule        Rule   `json:"rule" yaml:"rule"`
	Log         Log    `json:"log" yaml:"log"`
	Watch       Watch  `json:"watch" yaml:"watch"`
}

type DB struct {
	Name string `json:"name" yaml:"name"`
	DSN  string `json:"dsn" yaml:"dsn"`
}

type Rule struct {
	Tables []Table `json:"tables" yaml:"tables"`
	// Algorithms key 是算法名，被策略的 algorithm 引用
	Algorithms              map[string]Algorithm `json:"algorithms" yaml:"algorithms"`
	BindingTables           [][]string           `json:"bindingTables" yaml:"bindingTables"`
	BroadcastTables         []string             `json:"broadcastTables" yaml:"broadcastTables"`
	DefaultDatabaseStrategy *Strategy            `json:"defaultDatabaseStrategy" yaml:"defaultDatabaseStrategy"`
	DefaultTableStrategy    *Strategy            `json:"defaultTableStrategy" yaml:"defaultTableStrategy"`
}

type Table struct {
	LogicTable string `json:"logicTable" yaml:"logicTable"`
	// ActualDataNodes 行表达式，例如 ds_${0..1}.t_order_${0..1}，
	// 为空的时候逻辑表在每个数据源上都有一张同名的表
	ActualDataNodes  string    `json:"actualDataNodes" yaml:"actualDataNodes"`
	DatabaseStrategy *Strategy `json:"databaseStrategy" yaml:"databaseStrategy"`
	TableStrategy    *Strategy `json:"tableStrategy" yaml:"tableStrategy"`
}

type Strategy struct {
	// Type standard、complex、hint 或者 none
	Type string `json:"type" yaml:"type"`
	// Column 只有一个分片键的时候可以用它代替 Columns
	Column    string   `json:"column" yaml:"column"`
	Columns   []string `json:"columns" yaml:"columns"`
	Algorithm string   `json:"algorithm" yaml:"algorithm"`
}

type Algorithm struct {
	Type  string            `json:"type" yaml:"type"`
	Props map[string]string `json:"props" yaml:"props"`
}

type Log struct {
	SQLShow bool  `json:"sqlShow" yaml:"sqlShow"`
	Kafka   Kafka `json:"kafka" yaml:"kafka"`
}

type Kafka struct {
	Addr    string `json:"addr" yaml:"addr"`
	GroupID string `json:"groupID" yaml:"groupID"`
	Topic   string `json:"topic" yaml:"topic"`
}

type Watch struct {
	// Interval 为 0 的时候不重新加载规则
	Interval time.Duration `json:"interval" yaml:"interval"`
}

func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("读取配置文件失败 %w, path %s", err, path)
	}
	return LoadFrom(v)
}

func LoadFrom(v *viper.Viper) (Config, error) {
	var c Config
	if err := v.UnmarshalKey("dataSources", &c.DataSources); err != nil {
		return c, err
	}
	if err := v.UnmarshalKey("rule", &c.Rule); err != nil {
		return c, err
	}
	if err := v.UnmarshalKey("log", &c.Log); err != nil {
		return c, err
	}
	if err := v.UnmarshalKey("watch", &c.Watch); err != nil {
		return c, err
	}
	c.Dialect = v.GetString("dialect")
	if len(c.DataSources) == 0 {
		return c, errs.NewInvalidConfigError("没有配置数据源")
	}
	return c, nil
}

func (c Config) DataSourceNames() []string {
	res := make([]string, 0, len(c.DataSources))
	for _, db := range c.DataSources {
		res = append(res, db.Name)
	}
	return res
}

func (c Config) ParseDialect() (statement.Dialect, error) {
	d, err := statement.ParseDialect(c.Dialect)
	if err != nil {
		return d, errs.NewInvalidConfigError(err.Error())
	}
	return d, nil
}

// BuildRule 配置转成只读的分片规则
func (c Config) BuildRule() (*sharding.Rule, error) {
	return c.Rule.Build(c.DataSourceNames())
}

func (r Rule) Build(dataSources []string) (*sharding.Rule, error) {
	defaultDB, err := r.strategy(r.DefaultDatabaseStrategy)
	if err != nil {
		return nil, err
	}
	defaultTable, err := r.strategy(r.DefaultTableStrategy)
	if err != nil {
		return nil, err
	}
	if defaultDB == nil {
		defaultDB = strategy.NewNotSharding()
	}
	if defaultTable == nil {
		defaultTable = strategy.NewNotSharding()
	}
	tables := make([]*sharding.TableRule, 0, len(r.Tables))
	for _, t := range r.Tables {
		tr, err := r.tableRule(t, dataSources)
		if err != nil {
			return nil, err
		}
		tables = append(tables, tr)
	}
	return sharding.NewRule(dataSources, tables,
		sharding.WithBindingTables(r.BindingTables...),
		sharding.WithBroadcastTables(r.BroadcastTables...),
		sharding.WithDefaultStrategies(defaultDB, defaultTable))
}

func (r Rule) tableRule(t Table, dataSources []string) (*sharding.TableRule, error) {
	var nodes []sharding.DataNode
	if t.ActualDataNodes == "" {
		for _, ds := range dataSources {
			nodes = append(nodes, sharding.DataNode{DataSource: ds, Table: t.LogicTable})
		}
	} else {
		var err error
		nodes, err = strategy.ExpandDataNodes(t.ActualDataNodes)
		if err != nil {
			return nil, errs.NewInvalidConfigError(fmt.Sprintf("逻辑表 %s 的 actualDataNodes 格式错误: %s", t.LogicTable, err.Error()))
		}
	}
	db, err := r.strategy(t.DatabaseStrategy)
	if err != nil {
		return nil, err
	}
	table, err := r.strategy(t.TableStrategy)
	if err != nil {
		return nil, err
	}
	return sharding.NewTableRule(t.LogicTable, nodes, db, table)
}

// strategy 返回 nil 表示没有配置，使用默认策略
func (r Rule) strategy(s *Strategy) (sharding.Strategy, error) {
	if s == nil {
		return nil, nil
	}
	cfg := strategy.Config{Type: s.Type, Columns: s.Columns}
	if s.Column != "" {
		cfg.Columns = append([]string{s.Column}, cfg.Columns...)
	}
	if s.Algorithm != "" {
		algo, ok := r.algorithm(s.Algorithm)
		if !ok {
			return nil, errs.NewInvalidConfigError(fmt.Sprintf("未知的分片算法 %s", s.Algorithm))
		}
		cfg.Algorithm = algo.Type
		cfg.Props = algo.Props
	}
	return strategy.New(cfg)
}

// algorithm viper 会把 key 转成小写，所以这里忽略大小写
func (r Rule) algorithm(name string) (Algorithm, bool) {
	if a, ok := r.Algorithms[name]; ok {
		return a, true
	}
	for k, a := range r.Algorithms {
		if strings.EqualFold(k, name) {
			return a, true
		}
	}
	return Algorithm{}, false
}
