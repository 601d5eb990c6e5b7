package site

import "errors"

var (
	// ErrNotFound 站点 ID 不存在（或已删除）
	ErrNotFound = errors.New("站点不存在")
	// ErrInvalidURL 站点地址无效
	ErrInvalidURL = errors.New("站点地址无效")
	// ErrReservedID 对控制面板实体执行了不允许的操作
	ErrReservedID = errors.New("控制面板站点不支持该操作")
)
