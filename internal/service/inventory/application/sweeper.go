// internal/service/inventory/application/sweeper.go
package application

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"stocknexus/internal/pkg/logger"
	"stocknexus/internal/service/inventory/domain"
)

// Leadership 决定本实例当前扫描周期是否有资格执行回收。
// 多实例部署时由 ZooKeeper 锁实现，保证同一时刻只有一个扫描器在工作；
// 单实例部署传 nil 即可。
type Leadership interface {
	TryAcquire() (bool, error)
}

// ExpirySweeper 周期性回收过期预留。
// 扫描是 at-least-once 的: 某个周期中途失败，下个周期会重扫同一批候选；
// 因为 Expire 对已终态的预留幂等，重复扫描是安全的。
type ExpirySweeper struct {
	ledger      *ReservationLedger
	repo        domain.LedgerRepository
	leadership  Leadership
	interval    time.Duration
	batchSize   int
	parallelism int
	now         func() time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewExpirySweeper 创建过期扫描器。
func NewExpirySweeper(ledger *ReservationLedger, repo domain.LedgerRepository, leadership Leadership, interval time.Duration, batchSize, parallelism int) *ExpirySweeper {
	if batchSize <= 0 {
		batchSize = 200
	}
	if parallelism <= 0 {
		parallelism = 1
	}
	return &ExpirySweeper{
		ledger:      ledger,
		repo:        repo,
		leadership:  leadership,
		interval:    interval,
		batchSize:   batchSize,
		parallelism: parallelism,
		now:         time.Now,
	}
}

// Start 启动扫描循环。这是一个长期运行的后台 goroutine。
func (s *ExpirySweeper) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		logger.Ctx(ctx).Info().
			Dur("interval", s.interval).
			Int("batch_size", s.batchSize).
			Msg("expiry sweeper started")

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.runCycle(ctx)
			case <-ctx.Done():
				logger.Ctx(ctx).Info().Msg("expiry sweeper shutting down")
				return
			}
		}
	}()
}

// Stop 优雅地停止扫描器，等待进行中的周期结束。
func (s *ExpirySweeper) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *ExpirySweeper) runCycle(ctx context.Context) {
	if s.leadership != nil {
		isLeader, err := s.leadership.TryAcquire()
		if err != nil {
			logger.Ctx(ctx).Warn().Err(err).Msg("leadership check failed, skipping sweep cycle")
			return
		}
		if !isLeader {
			return
		}
	}

	reclaimed, err := s.SweepOnce(ctx)
	if err != nil {
		// 周期失败整体走下个 tick 重试
		logger.Ctx(ctx).Error().Err(err).Msg("sweep cycle failed, will retry on next tick")
		return
	}
	if reclaimed > 0 {
		logger.Ctx(ctx).Info().Int("reclaimed", reclaimed).Msg("sweep cycle reclaimed expired reservations")
	}
}

// SweepOnce 执行一个完整的扫描周期，返回实际回收的预留数。
// 单个预留回收失败只记录日志并跳过，绝不中断本批其余预留的回收。
func (s *ExpirySweeper) SweepOnce(ctx context.Context) (int, error) {
	ctx, span := s.ledger.tracer.Start(ctx, "sweeper.SweepOnce")
	defer span.End()
	sweeperCycles.Inc()

	candidates, err := s.repo.FindExpired(ctx, s.now(), s.batchSize)
	if err != nil {
		span.RecordError(err)
		return 0, err
	}
	if len(candidates) == 0 {
		return 0, nil
	}

	var reclaimed int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallelism)
	for _, candidate := range candidates {
		reservationID := candidate.ID
		g.Go(func() error {
			err := s.ledger.Expire(gctx, reservationID)
			switch {
			case err == nil:
				atomic.AddInt64(&reclaimed, 1)
				sweeperReclaimed.Inc()
			case errors.Is(err, domain.ErrReservationNotActive):
				// 前台的 Consume/Release 抢先一步，预留已被解决，视为成功
			default:
				logger.Ctx(gctx).Warn().Err(err).
					Str("reservation_id", reservationID).
					Msg("failed to expire reservation, skipping")
			}
			// 永远返回 nil: errgroup 只用来限制并发，不让单个失败打断整批
			return nil
		})
	}
	// g.Wait 不会返回错误，但保留检查以防未来的处理函数改变约定
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return int(atomic.LoadInt64(&reclaimed)), err
	}

	return int(atomic.LoadInt64(&reclaimed)), nil
}
