package site

import (
	"encoding/json"
	"fmt"
)

// Status 站点生命周期状态
type Status int

const (
	StatusUninitialized Status = iota
	StatusReadyHidden
	StatusReadyShown
	StatusStopped
	StatusExited
	StatusDeleted
)

var statusNames = map[Status]string{
	StatusUninitialized: "uninitialized",
	StatusReadyHidden:   "hidden",
	StatusReadyShown:    "shown",
	StatusStopped:       "stopped",
	StatusExited:        "exited",
	StatusDeleted:       "deleted",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "unknown"
}

// Code 返回推送给控制面板的整数状态：
// 显示=1，隐藏/未初始化/停止=0，退出=-1，删除=-2
func (s Status) Code() int {
	switch s {
	case StatusReadyShown:
		return 1
	case StatusExited:
		return -1
	case StatusDeleted:
		return -2
	default:
		return 0
	}
}

// Ready 表示托盘已构建（隐藏、显示、停止三种状态）
func (s Status) Ready() bool {
	return s == StatusReadyHidden || s == StatusReadyShown || s == StatusStopped
}

// MarshalJSON 以名称形式输出，便于前端展示
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON 解析 MarshalJSON 输出的名称
func (s *Status) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	for status, n := range statusNames {
		if n == name {
			*s = status
			return nil
		}
	}
	return fmt.Errorf("未知的站点状态 %q", name)
}
