package scheduler

import (
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/trungbq8/openfund/internal/config"
	"github.com/trungbq8/openfund/internal/engine"
	"github.com/trungbq8/openfund/internal/logger"
	"github.com/trungbq8/openfund/internal/repository"
)

// ProjectSyncJob 引擎快照镜像任务。
// 引擎内存态是账目权威，这个任务周期性把全量快照写进postgres，
// 供列表查询和重启恢复使用。
type ProjectSyncJob struct {
	engine *engine.Engine
	repo   *repository.Repository
	config *config.Config
}

// NewProjectSyncJob 创建快照镜像任务
func NewProjectSyncJob(e *engine.Engine, repo *repository.Repository, cfg *config.Config) *ProjectSyncJob {
	return &ProjectSyncJob{
		engine: e,
		repo:   repo,
		config: cfg,
	}
}

// GetName 获取任务名称
func (j *ProjectSyncJob) GetName() string {
	return "project_snapshot_sync"
}

// GetSchedule 获取调度配置
func (j *ProjectSyncJob) GetSchedule() gocron.JobDefinition {
	return gocron.DurationJob(time.Duration(j.config.Task.Interval) * time.Second)
}

// Execute 执行任务
func (j *ProjectSyncJob) Execute() {
	snap := j.engine.Snapshot()
	if len(snap.Projects) == 0 {
		return
	}

	start := time.Now()
	if err := j.repo.SyncSnapshot(snap); err != nil {
		logger.Error("Failed to sync engine snapshot: %v", err)
		return
	}

	logger.Info("Synced %d projects and %d investments in %v",
		len(snap.Projects), len(snap.Investments), time.Since(start))
}
