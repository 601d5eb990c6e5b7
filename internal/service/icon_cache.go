// Package service 提供业务逻辑层实现
// 图标缓存服务：在 IconStore 之上增加过期策略
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"traysites/internal/store"
)

// DefaultIconTTL 默认缓存 7 天
const DefaultIconTTL = 7 * 24 * time.Hour

type IconCacheService struct {
	store store.IconStore
	ttl   time.Duration
	now   func() time.Time
}

func NewIconCacheService(store store.IconStore, ttl time.Duration) *IconCacheService {
	if ttl <= 0 {
		ttl = DefaultIconTTL
	}
	return &IconCacheService{store: store, ttl: ttl, now: time.Now}
}

// Lookup 返回未过期的缓存图标；未命中或已过期返回 nil
func (s *IconCacheService) Lookup(ctx context.Context, host string) ([]byte, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	host = strings.ToLower(strings.TrimSpace(host))
	if host == "" {
		return nil, nil
	}

	record, err := s.store.Get(ctx, host)
	if err != nil {
		return nil, err
	}
	if record == nil || len(record.Data) == 0 {
		return nil, nil
	}
	if s.now().Sub(record.FetchedAt) > s.ttl {
		return nil, nil
	}
	return record.Data, nil
}

// Remember 写入（或刷新）缓存
func (s *IconCacheService) Remember(ctx context.Context, host string, data []byte, contentType string) error {
	if s == nil || s.store == nil {
		return nil
	}
	host = strings.ToLower(strings.TrimSpace(host))
	if host == "" {
		return fmt.Errorf("主机名不能为空")
	}
	return s.store.Put(ctx, &store.IconRecord{
		Host:        host,
		Data:        data,
		ContentType: contentType,
		FetchedAt:   s.now(),
	})
}

// PurgeExpired 清理过期缓存，返回删除条数
func (s *IconCacheService) PurgeExpired(ctx context.Context) (int64, error) {
	if s == nil || s.store == nil {
		return 0, nil
	}
	return s.store.PurgeBefore(ctx, s.now().Add(-s.ttl))
}
