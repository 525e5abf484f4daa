package shortcode

import (
	"context"
	"errors"
	"fmt"

	"shorturl-service/internal/metrics"
	"shorturl-service/internal/model"
	"shorturl-service/internal/store"

	"go.uber.org/zap"
)

// DefaultMaxAttempts 默认重试上限
const DefaultMaxAttempts = 5

// Reserver 预留短码需要的存储能力
type Reserver interface {
	ExistsByCode(ctx context.Context, code string) (bool, error)
	InsertIfAbsent(ctx context.Context, link *model.ShortLink) error
}

// Filter 已占用短码的快速过滤器，可选
type Filter interface {
	MightExist(code string) bool
	Add(code string)
}

// Resolver 反复生成候选短码，直到原子插入成功或重试次数用尽
type Resolver struct {
	generator   *Generator
	store       Reserver
	filter      Filter
	maxAttempts int
	logger      *zap.SugaredLogger
}

// NewResolver 创建解析器，maxAttempts <= 0 时使用 DefaultMaxAttempts，filter 可以为 nil
func NewResolver(generator *Generator, s Reserver, filter Filter, maxAttempts int, logger *zap.SugaredLogger) *Resolver {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Resolver{
		generator:   generator,
		store:       s,
		filter:      filter,
		maxAttempts: maxAttempts,
		logger:      logger.Named("shortcode_resolver"),
	}
}

// Reserve 为 input 预留一个唯一短码，build 根据短码构造待插入的记录
//
// 只有 InsertIfAbsent 成功的候选才会返回；存在性检查只用于提前跳过已占用的候选。
// 返回 model.ErrCollisionExhausted 表示重试用尽，插入时发现 (owner, url) 重复
// 返回 model.ErrDuplicateConflict。
func (r *Resolver) Reserve(ctx context.Context, input string, build func(code string) *model.ShortLink) (*model.ShortLink, error) {
	tried := make(map[string]struct{}, r.maxAttempts)

	for attempt := 0; attempt < r.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		code := r.generator.Generate(input, attempt)
		if _, dup := tried[code]; dup {
			metrics.ReservationAttempts.WithLabelValues("collision").Inc()
			continue
		}
		tried[code] = struct{}{}

		if r.filter == nil || r.filter.MightExist(code) {
			taken, err := r.store.ExistsByCode(ctx, code)
			if err != nil {
				metrics.ReservationAttempts.WithLabelValues("error").Inc()
				return nil, fmt.Errorf("check short code %s: %w", code, err)
			}
			if taken {
				metrics.ReservationAttempts.WithLabelValues("collision").Inc()
				r.logger.Debugf("短码冲突 attempt=%d code=%s", attempt, code)
				continue
			}
		}

		link := build(code)
		err := r.store.InsertIfAbsent(ctx, link)
		switch {
		case err == nil:
			metrics.ReservationAttempts.WithLabelValues("reserved").Inc()
			if r.filter != nil {
				r.filter.Add(code)
			}
			return link, nil
		case errors.Is(err, store.ErrCodeTaken):
			// 检查之后被并发请求抢占
			metrics.ReservationAttempts.WithLabelValues("collision").Inc()
			r.logger.Debugf("短码插入冲突 attempt=%d code=%s", attempt, code)
			continue
		case errors.Is(err, store.ErrOwnerURLTaken):
			metrics.ReservationAttempts.WithLabelValues("duplicate").Inc()
			return nil, model.ErrDuplicateConflict
		default:
			metrics.ReservationAttempts.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("insert short link: %w", err)
		}
	}

	metrics.ReservationExhausted.Inc()
	r.logger.Warnf("已尝试 %d 次仍未找到可用短码，考虑调大重试次数或短码长度", r.maxAttempts)
	return nil, model.ErrCollisionExhausted
}
