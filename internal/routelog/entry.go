package routelog

import (
	"encoding/json"
	"time"
)

// Entry 一条逻辑 SQL 的路由结果
type Entry struct {
	LogicSQL string `json:"logic_sql"`
	Units    []Unit `json:"units"`
	// Ctime 毫秒
	Ctime int64 `json:"ctime"`
}

type Unit struct {
	DataSource string `json:"data_source"`
	SQL        string `json:"sql"`
	Args       []any  `json:"args,omitempty"`
}

func NewEntry(logicSQL string, units ...Unit) Entry {
	return Entry{LogicSQL: logicSQL, Units: units, Ctime: time.Now().UnixMilli()}
}

func (e Entry) Encode() []byte {
	data, _ := json.Marshal(e)
	return data
}

func Decode(data []byte) (Entry, error) {
	var res Entry
	err := json.Unmarshal(data, &res)
	return res, err
}
