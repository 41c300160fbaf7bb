package service

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// DefaultSweepSchedule 过期交易清理周期
const DefaultSweepSchedule = "@every 1m"

// PaymentSweeper 定时把过期未支付的交易写入失败
type PaymentSweeper struct {
	cron     *cron.Cron
	payments *PaymentService
	timeout  time.Duration
}

// NewPaymentSweeper 创建清理任务，schedule 为空时使用 DefaultSweepSchedule
func NewPaymentSweeper(payments *PaymentService, schedule string) (*PaymentSweeper, error) {
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}
	s := &PaymentSweeper{
		cron:     cron.New(),
		payments: payments,
		timeout:  30 * time.Second,
	}
	if _, err := s.cron.AddFunc(schedule, s.RunOnce); err != nil {
		return nil, err
	}
	return s, nil
}

// RunOnce 执行一次清理
func (s *PaymentSweeper) RunOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if _, err := s.payments.SweepExpired(ctx); err != nil {
		log.Error().Err(err).Msg("payment sweep failed")
	}
}

// Start 启动调度
func (s *PaymentSweeper) Start() {
	s.cron.Start()
	log.Info().Msg("payment sweeper started")
}

// Stop 停止调度并等待正在执行的任务结束
func (s *PaymentSweeper) Stop() {
	<-s.cron.Stop().Done()
	log.Info().Msg("payment sweeper stopped")
}
