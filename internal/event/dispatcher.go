package event

import (
	"context"

	"github.com/panjf2000/ants/v2"
	"github.com/trungbq8/openfund/internal/engine"
	"github.com/trungbq8/openfund/internal/logger"
	"github.com/trungbq8/openfund/internal/repository"
)

// Dispatcher 引擎事件分发器。
// 引擎在锁内只往队列塞事件，落库和记录生成由协程池异步完成。
type Dispatcher struct {
	repo   *repository.Repository
	pool   *ants.Pool
	events chan engine.Event
	ctx    context.Context
	cancel context.CancelFunc
}

// NewDispatcher 创建事件分发器
func NewDispatcher(repo *repository.Repository, workers int) (*Dispatcher, error) {
	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		repo:   repo,
		pool:   pool,
		events: make(chan engine.Event, 256),
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// Start 启动分发循环
func (d *Dispatcher) Start() {
	go d.loop()
	logger.Info("Event dispatcher started")
}

// Stop 停止分发循环并释放协程池
func (d *Dispatcher) Stop() {
	d.cancel()
	d.pool.Release()
	logger.Info("Event dispatcher stopped")
}

// Emit 实现引擎的EventSink。队列满时丢弃事件，不阻塞引擎。
func (d *Dispatcher) Emit(event engine.Event) {
	select {
	case d.events <- event:
	default:
		logger.Warn("Event queue full, dropping event %s for project %d", event.Type, event.ProjectID)
	}
}

// loop 分发循环
func (d *Dispatcher) loop() {
	for {
		select {
		case <-d.ctx.Done():
			return
		case ev := <-d.events:
			event := ev
			if err := d.pool.Submit(func() { d.process(event) }); err != nil {
				logger.Error("Failed to submit event %s for project %d: %v", event.Type, event.ProjectID, err)
			}
		}
	}
}

// process 事件落库，结算类事件额外生成对应记录
func (d *Dispatcher) process(event engine.Event) {
	if err := d.repo.SaveEvent(event); err != nil {
		logger.Error("Failed to save event %s for project %d: %v", event.Type, event.ProjectID, err)
	}

	switch event.Type {
	case engine.EventTokensRefunded:
		if err := d.repo.CreateRefundRecord(event); err != nil {
			logger.Error("Failed to create refund record for project %d: %v", event.ProjectID, err)
		}
	case engine.EventFundsClaimed:
		if err := d.repo.CreateSettlementRecord(event, "funds"); err != nil {
			logger.Error("Failed to create settlement record for project %d: %v", event.ProjectID, err)
		}
	case engine.EventPlatformFeeClaimed:
		if err := d.repo.CreateSettlementRecord(event, "platform_fee"); err != nil {
			logger.Error("Failed to create settlement record for project %d: %v", event.ProjectID, err)
		}
	case engine.EventUnsoldTokensClaimed:
		if err := d.repo.CreateSettlementRecord(event, "unsold_tokens"); err != nil {
			logger.Error("Failed to create settlement record for project %d: %v", event.ProjectID, err)
		}
	}

	logger.Debug("Processed engine event %s for project %d", event.Type, event.ProjectID)
}
