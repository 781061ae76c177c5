package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"musichelper/model"

	"github.com/go-redis/redis/v8"
)

// RedisClient 由 server 启动时注入（与 db 包共用同一个连接）
var RedisClient *redis.Client

// chordTimelineTTL 和弦时间轴缓存的过期时间
const chordTimelineTTL = 6 * time.Hour

// Init 注入Redis客户端
func Init(client *redis.Client) {
	RedisClient = client
}

// ChordTimelineKey 根据上传ID生成和弦时间轴的Redis键
func ChordTimelineKey(uploadID int64) string {
	return fmt.Sprintf("chords:%d", uploadID)
}

// GetChordTimeline 读取缓存的和弦时间轴，未命中返回 (nil, nil)
func GetChordTimeline(ctx context.Context, uploadID int64) (*model.ChordTimeline, error) {
	if RedisClient == nil {
		return nil, nil
	}

	data, err := RedisClient.Get(ctx, ChordTimelineKey(uploadID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get cached timeline: %w", err)
	}

	var timeline model.ChordTimeline
	if err := json.Unmarshal(data, &timeline); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached timeline: %w", err)
	}
	return &timeline, nil
}

// SetChordTimeline 缓存和弦时间轴
func SetChordTimeline(ctx context.Context, uploadID int64, timeline *model.ChordTimeline) error {
	if RedisClient == nil || timeline == nil {
		return nil
	}

	data, err := json.Marshal(timeline)
	if err != nil {
		return fmt.Errorf("failed to marshal timeline: %w", err)
	}

	if err := RedisClient.Set(ctx, ChordTimelineKey(uploadID), data, chordTimelineTTL).Err(); err != nil {
		return fmt.Errorf("failed to cache timeline: %w", err)
	}
	return nil
}

// InvalidateChordTimeline 删除缓存的和弦时间轴（重新生成或删除上传后调用）
func InvalidateChordTimeline(ctx context.Context, uploadID int64) error {
	if RedisClient == nil {
		return nil
	}

	if err := RedisClient.Del(ctx, ChordTimelineKey(uploadID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate cached timeline: %w", err)
	}
	return nil
}
