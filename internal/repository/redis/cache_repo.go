package redis

import (
	"context"
	"encoding/json"

	"github.com/jimlawless/whereami"
	"github.com/pixloft/go-backend/internal/cfg"
	"github.com/pixloft/go-backend/internal/repository/redis/converter"
	"github.com/pixloft/go-backend/internal/usecase"
	"github.com/pixloft/go-backend/pkg/clients"
	"github.com/pixloft/go-backend/pkg/e"
	"github.com/pixloft/go-backend/pkg/logger"
)

const cacheKeyPrefix = "image:"

func cacheKey(id string) string {
	return cacheKeyPrefix + id
}

// CacheRepo держит горячие метаданные изображений в Redis.
// Запись и удаление работают по принципу best-effort: сбой кэша
// логируется, но не превращается в ошибку запроса.
type CacheRepo struct {
	client *clients.RedisClient
	conv   converter.ImageInfoConverter
	cfg    *cfg.RedisCfg
	logger logger.Logger
}

func NewCacheRepo(client *clients.RedisClient, conv converter.ImageInfoConverter,
	cfg *cfg.RedisCfg, logger logger.Logger) *CacheRepo {
	return &CacheRepo{
		client: client,
		conv:   conv,
		cfg:    cfg,
		logger: logger,
	}
}

// GetImages возвращает найденные в кэше метаданные по списку ID.
// Промахи и битые записи просто выпадают из результата.
func (r *CacheRepo) GetImages(ctx context.Context, ids []string) (map[string]usecase.ImageInfo, error) {
	result := make(map[string]usecase.ImageInfo, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = cacheKey(id)
	}

	values, err := r.client.Client.MGet(ctx, keys...).Result()
	if err != nil {
		wrapped := e.Wrap(whereami.WhereAmI(), err)
		r.logger.Warnf("redis mget: %v", wrapped)
		return nil, wrapped
	}

	for i, raw := range values {
		if raw == nil {
			continue
		}

		payload, ok := rawBytes(raw)
		if !ok {
			r.logger.Warnf("redis value for %s has unexpected type %T", keys[i], raw)
			continue
		}

		var model converter.ImageInfoRedisModel
		if err := json.Unmarshal(payload, &model); err != nil {
			r.logger.Warnf("broken cache entry %s skipped: %v", keys[i], err)
			continue
		}

		// Запись под чужим ключом свидетельствует о порче кэша, выселяем её.
		if model.ID != ids[i] {
			r.logger.Warnf("cache entry %s holds image %s, evicting", keys[i], model.ID)
			if err := r.client.Client.Del(context.Background(), keys[i]).Err(); err != nil {
				r.logger.Warnf("redis del %s: %v", keys[i], err)
			}
			continue
		}

		result[ids[i]] = *r.conv.ToUseCase(&model)
	}

	return result, nil
}

// SetImages кэширует метаданные пачкой через pipeline с TTL из конфигурации.
func (r *CacheRepo) SetImages(ctx context.Context, images []usecase.ImageInfo) error {
	pipe := r.client.Client.Pipeline()

	queued := 0
	for _, model := range r.conv.ToArrRedisModel(images) {
		data, err := json.Marshal(model)
		if err != nil {
			r.logger.Warnf("image %s not cached, marshal failed: %v", model.ID, err)
			continue
		}

		pipe.Set(ctx, cacheKey(model.ID), data, r.cfg.ImageTTL)
		queued++
	}

	if queued == 0 {
		return nil
	}

	if _, err := pipe.Exec(ctx); err != nil {
		r.logger.Warnf("cache pipeline: %v", e.Wrap(whereami.WhereAmI(), err))
	}

	return nil
}

// DeleteImages выселяет метаданные из кэша по списку ID.
func (r *CacheRepo) DeleteImages(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = cacheKey(id)
	}

	if err := r.client.Client.Del(ctx, keys...).Err(); err != nil {
		r.logger.Warnf("redis del: %v", e.Wrap(whereami.WhereAmI(), err))
	}

	return nil
}

// rawBytes приводит значение из ответа MGET к байтам.
func rawBytes(val any) ([]byte, bool) {
	switch v := val.(type) {
	case string:
		return []byte(v), true
	case []byte:
		return v, true
	default:
		return nil, false
	}
}
