package strategy

import "github.com/meoying/shardingfed/internal/sharding"

// NotSharding 不分片，所有可用的目标都会命中。
// 单库或者单表的逻辑表在对应的维度上使用它
type NotSharding struct{}

func NewNotSharding() NotSharding {
	return NotSharding{}
}

func (n NotSharding) Name() string {
	return "none"
}

func (n NotSharding) Columns() []string {
	return nil
}

func (n NotSharding) DoSharding(available []string, _ []sharding.ShardingValue) ([]string, error) {
	return available, nil
}
