package job

import (
	"github.com/ecodeclub/ekit/syncx/atomicx"
	"github.com/meoying/shardingfed/internal/sharding"
)

// RuleHolder 持有当前生效的分片规则。
// 一次路由只读取一次规则，重新加载规则不会影响正在执行的语句
type RuleHolder struct {
	rule atomicx.Value[*sharding.Rule]
}

func NewRuleHolder(rule *sharding.Rule) *RuleHolder {
	h := &RuleHolder{}
	h.rule.Store(rule)
	return h
}

func (h *RuleHolder) Load() *sharding.Rule {
	return h.rule.Load()
}

func (h *RuleHolder) Store(rule *sharding.Rule) {
	h.rule.Store(rule)
}

// Router 基于当前规则快照的路由器
func (h *RuleHolder) Router() *sharding.Router {
	return sharding.NewRouter(h.Load())
}
