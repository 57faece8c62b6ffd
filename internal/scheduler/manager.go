package scheduler

import (
	"github.com/go-co-op/gocron/v2"
	"github.com/trungbq8/openfund/internal/config"
	"github.com/trungbq8/openfund/internal/engine"
	"github.com/trungbq8/openfund/internal/logger"
	"github.com/trungbq8/openfund/internal/repository"
)

// Manager 任务管理器
type Manager struct {
	scheduler gocron.Scheduler
	engine    *engine.Engine
	repo      *repository.Repository
	config    *config.Config
}

// NewManager 创建新的任务管理器
func NewManager(e *engine.Engine, repo *repository.Repository, cfg *config.Config) *Manager {
	s, err := gocron.NewScheduler()
	if err != nil {
		logger.Fatal("Failed to create scheduler: %v", err)
	}

	return &Manager{
		scheduler: s,
		engine:    e,
		repo:      repo,
		config:    cfg,
	}
}

// Start 启动任务管理器
func Start(e *engine.Engine, repo *repository.Repository, cfg *config.Config) *Manager {
	manager := NewManager(e, repo, cfg)

	// 注册所有任务
	manager.RegisterJobs()

	// 启动调度器
	manager.scheduler.Start()

	logger.Info("Task manager started successfully")
	return manager
}

// RegisterJobs 注册所有任务
func (m *Manager) RegisterJobs() {
	// 注册快照镜像任务
	m.RegisterProjectSyncJob()
}

// RegisterProjectSyncJob 注册快照镜像任务
func (m *Manager) RegisterProjectSyncJob() {
	job := NewProjectSyncJob(m.engine, m.repo, m.config)

	_, err := m.scheduler.NewJob(
		job.GetSchedule(),
		gocron.NewTask(job.Execute),
		gocron.WithName(job.GetName()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		logger.Error("Failed to register job %s: %v", job.GetName(), err)
	}
}

// Stop 停止任务管理器
func (m *Manager) Stop() {
	if err := m.scheduler.Shutdown(); err != nil {
		logger.Error("Failed to shutdown scheduler: %v", err)
	}
	logger.Info("Task manager stopped")
}
