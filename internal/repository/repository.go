package repository

import (
	"fmt"
	"sort"

	"github.com/trungbq8/openfund/internal/engine"
	"github.com/trungbq8/openfund/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository 引擎状态的postgres镜像。
// 引擎内存态是账目权威，这里只做落库和查询。
type Repository struct {
	db *gorm.DB
}

// New 创建镜像仓库
func New(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// SyncSnapshot 把引擎快照写入镜像表
func (r *Repository) SyncSnapshot(snap engine.Snapshot) error {
	for i := range snap.Projects {
		p := toProjectModel(&snap.Projects[i])
		err := r.db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).Create(&p).Error
		if err != nil {
			return fmt.Errorf("failed to sync project %d: %w", p.Id, err)
		}
	}

	for i := range snap.Investments {
		inv := toInvestmentModel(&snap.Investments[i])
		err := r.db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "project_id"}, {Name: "address"}},
			DoUpdates: clause.AssignmentColumns([]string{"amount", "tokens_owed", "has_voted", "has_claimed_refund", "updated_at"}),
		}).Create(&inv).Error
		if err != nil {
			return fmt.Errorf("failed to sync investment %d/%s: %w", inv.ProjectId, inv.Address, err)
		}
	}

	for addr, ids := range snap.InvestorProjects {
		for pos, id := range ids {
			entry := model.InvestorProjectModel{
				Address:   addr,
				ProjectId: int64(id),
				Position:  pos,
			}
			err := r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&entry).Error
			if err != nil {
				return fmt.Errorf("failed to sync investor index %s/%d: %w", addr, id, err)
			}
		}
	}

	return nil
}

// LoadSnapshot 启动时从镜像表恢复引擎状态
func (r *Repository) LoadSnapshot() (engine.Snapshot, error) {
	snap := engine.Snapshot{InvestorProjects: make(map[string][]uint64)}

	var projects []model.ProjectModel
	if err := r.db.Find(&projects).Error; err != nil {
		return snap, fmt.Errorf("failed to load projects: %w", err)
	}
	for i := range projects {
		snap.Projects = append(snap.Projects, fromProjectModel(&projects[i]))
	}

	var investments []model.InvestmentModel
	if err := r.db.Find(&investments).Error; err != nil {
		return snap, fmt.Errorf("failed to load investments: %w", err)
	}
	for i := range investments {
		snap.Investments = append(snap.Investments, fromInvestmentModel(&investments[i]))
	}

	var entries []model.InvestorProjectModel
	if err := r.db.Find(&entries).Error; err != nil {
		return snap, fmt.Errorf("failed to load investor index: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Address != entries[j].Address {
			return entries[i].Address < entries[j].Address
		}
		return entries[i].Position < entries[j].Position
	})
	for _, entry := range entries {
		snap.InvestorProjects[entry.Address] = append(snap.InvestorProjects[entry.Address], uint64(entry.ProjectId))
	}

	return snap, nil
}

// SaveEvent 事件落库
func (r *Repository) SaveEvent(event engine.Event) error {
	record := model.EventModel{
		EventType: string(event.Type),
		ProjectId: int64(event.ProjectID),
		Address:   event.Address,
		Amount:    int64(event.Amount),
		Tokens:    int64(event.Tokens),
		CreatedAt: event.At,
	}
	if err := r.db.Create(&record).Error; err != nil {
		return fmt.Errorf("failed to save event: %w", err)
	}
	return nil
}

// CreateRefundRecord 写退款记录
func (r *Repository) CreateRefundRecord(event engine.Event) error {
	record := model.RefundRecordModel{
		ProjectId: int64(event.ProjectID),
		Address:   event.Address,
		Amount:    int64(event.Amount),
		Tokens:    int64(event.Tokens),
		CreatedAt: event.At,
	}
	if err := r.db.Create(&record).Error; err != nil {
		return fmt.Errorf("failed to create refund record: %w", err)
	}
	return nil
}

// CreateSettlementRecord 写结算记录
func (r *Repository) CreateSettlementRecord(event engine.Event, settlementType string) error {
	record := model.SettlementRecordModel{
		ProjectId:      int64(event.ProjectID),
		SettlementType: settlementType,
		Address:        event.Address,
		Amount:         int64(event.Amount),
		Tokens:         int64(event.Tokens),
		CreatedAt:      event.At,
	}
	if err := r.db.Create(&record).Error; err != nil {
		return fmt.Errorf("failed to create settlement record: %w", err)
	}
	return nil
}

// ListProjects 分页查询项目镜像
func (r *Repository) ListProjects(status string, page, pageSize int) ([]model.ProjectModel, int64, error) {
	var projects []model.ProjectModel
	var total int64

	query := r.db.Model(&model.ProjectModel{})
	if status != "" {
		query = query.Where("status = ?", status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count projects: %w", err)
	}

	offset := (page - 1) * pageSize
	if err := query.Order("id ASC").Offset(offset).Limit(pageSize).Find(&projects).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list projects: %w", err)
	}

	return projects, total, nil
}

// ListInvestments 分页查询项目的投资记录
func (r *Repository) ListInvestments(projectId int64, page, pageSize int) ([]model.InvestmentModel, int64, error) {
	var investments []model.InvestmentModel
	var total int64

	query := r.db.Model(&model.InvestmentModel{}).Where("project_id = ?", projectId)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count investments: %w", err)
	}

	offset := (page - 1) * pageSize
	if err := query.Order("created_at ASC").Offset(offset).Limit(pageSize).Find(&investments).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list investments: %w", err)
	}

	return investments, total, nil
}

// ListRefunds 分页查询项目的退款记录
func (r *Repository) ListRefunds(projectId int64, page, pageSize int) ([]model.RefundRecordModel, int64, error) {
	var refunds []model.RefundRecordModel
	var total int64

	query := r.db.Model(&model.RefundRecordModel{}).Where("project_id = ?", projectId)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count refund records: %w", err)
	}

	offset := (page - 1) * pageSize
	if err := query.Order("created_at DESC").Offset(offset).Limit(pageSize).Find(&refunds).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list refund records: %w", err)
	}

	return refunds, total, nil
}

func toProjectModel(p *engine.Project) model.ProjectModel {
	return model.ProjectModel{
		Id:                   int64(p.ID),
		Raiser:               p.Raiser,
		TokenAddress:         p.TokenAddress,
		TokenDecimals:        p.TokenDecimals,
		TokensToSell:         int64(p.TokensToSell),
		TokensSold:           int64(p.TokensSold),
		TokenPrice:           int64(p.TokenPrice),
		FundsRaised:          int64(p.FundsRaised),
		FundsRefunded:        int64(p.FundsRefunded),
		PlatformFee:          int64(p.PlatformFee),
		EndFundingTime:       p.EndFundingTime,
		Status:               p.Status.String(),
		InvestorsCount:       int64(p.InvestorsCount),
		VotersForRefundCount: int64(p.VotersForRefundCount),
		VoteForRefundAmount:  int64(p.VoteForRefundAmount),
		FundsClaimed:         p.FundsClaimed,
		PlatformFeeClaimed:   p.PlatformFeeClaimed,
		UnsoldTokensClaimed:  p.UnsoldTokensClaimed,
	}
}

func fromProjectModel(m *model.ProjectModel) engine.Project {
	return engine.Project{
		ID:                   uint64(m.Id),
		Raiser:               m.Raiser,
		TokenAddress:         m.TokenAddress,
		TokenDecimals:        m.TokenDecimals,
		TokensToSell:         uint64(m.TokensToSell),
		TokensSold:           uint64(m.TokensSold),
		TokenPrice:           uint64(m.TokenPrice),
		FundsRaised:          uint64(m.FundsRaised),
		FundsRefunded:        uint64(m.FundsRefunded),
		PlatformFee:          uint64(m.PlatformFee),
		EndFundingTime:       m.EndFundingTime,
		Status:               statusFromString(m.Status),
		InvestorsCount:       uint64(m.InvestorsCount),
		VotersForRefundCount: uint64(m.VotersForRefundCount),
		VoteForRefundAmount:  uint64(m.VoteForRefundAmount),
		FundsClaimed:         m.FundsClaimed,
		PlatformFeeClaimed:   m.PlatformFeeClaimed,
		UnsoldTokensClaimed:  m.UnsoldTokensClaimed,
	}
}

func toInvestmentModel(inv *engine.Investment) model.InvestmentModel {
	return model.InvestmentModel{
		ProjectId:        int64(inv.ProjectID),
		Address:          inv.Investor,
		Amount:           int64(inv.InvestmentAmount),
		TokensOwed:       int64(inv.TokensOwed),
		HasVoted:         inv.HasVoted,
		HasClaimedRefund: inv.HasClaimedRefund,
	}
}

func fromInvestmentModel(m *model.InvestmentModel) engine.Investment {
	return engine.Investment{
		ProjectID:        uint64(m.ProjectId),
		Investor:         m.Address,
		InvestmentAmount: uint64(m.Amount),
		TokensOwed:       uint64(m.TokensOwed),
		HasVoted:         m.HasVoted,
		HasClaimedRefund: m.HasClaimedRefund,
	}
}

func statusFromString(s string) engine.ProjectStatus {
	switch s {
	case "created":
		return engine.StatusCreated
	case "raising":
		return engine.StatusRaising
	case "voting":
		return engine.StatusVoting
	case "failed":
		return engine.StatusFailed
	case "completed":
		return engine.StatusCompleted
	default:
		return engine.StatusCreated
	}
}
