package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/trungbq8/openfund/internal/engine"
	"github.com/trungbq8/openfund/internal/repository"
)

// FundHandler 结算引擎的HTTP入口。
// 调用方地址由请求携带，钱包签名验证是宿主应用的职责。
type FundHandler struct {
	engine *engine.Engine
	repo   *repository.Repository
}

// NewFundHandler 创建引擎handler
func NewFundHandler(e *engine.Engine, repo *repository.Repository) *FundHandler {
	return &FundHandler{engine: e, repo: repo}
}

// CreateProject 创建项目（管理员）
func (h *FundHandler) CreateProject(c *gin.Context) {
	var req CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	err := h.engine.CreateProject(c.Request.Context(), req.Caller, req.ProjectId, req.Raiser,
		req.TokenAddress, req.TokensToSell, req.TokenPrice,
		time.Unix(req.EndFundingTime, 0), req.TokenDecimals)
	if err != nil {
		EngineErrorResponse(c, err)
		return
	}

	SuccessResponse(c, http.StatusCreated, "项目创建成功", gin.H{"project_id": req.ProjectId})
}

// DepositTokens 项目方存入待售token
func (h *FundHandler) DepositTokens(c *gin.Context) {
	id, ok := h.projectId(c)
	if !ok {
		return
	}

	var req CallerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.engine.DepositTokens(c.Request.Context(), req.Caller, id); err != nil {
		EngineErrorResponse(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "token存入成功", nil)
}

// Invest 投资
func (h *FundHandler) Invest(c *gin.Context) {
	id, ok := h.projectId(c)
	if !ok {
		return
	}

	var req InvestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.engine.Invest(c.Request.Context(), req.Caller, id, req.Units); err != nil {
		EngineErrorResponse(c, err)
		return
	}

	investment, err := h.engine.GetInvestmentDetails(id, req.Caller)
	if err != nil {
		EngineErrorResponse(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "投资成功", investment)
}

// VoteForRefund 投退款票
func (h *FundHandler) VoteForRefund(c *gin.Context) {
	id, ok := h.projectId(c)
	if !ok {
		return
	}

	var req CallerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.engine.VoteForRefund(c.Request.Context(), req.Caller, id); err != nil {
		EngineErrorResponse(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "投票成功", nil)
}

// GetRefund 募资失败后退款
func (h *FundHandler) GetRefund(c *gin.Context) {
	id, ok := h.projectId(c)
	if !ok {
		return
	}

	var req CallerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.engine.GetRefund(c.Request.Context(), req.Caller, id); err != nil {
		EngineErrorResponse(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "退款成功", nil)
}

// ClaimFunds 项目方领取募资款
func (h *FundHandler) ClaimFunds(c *gin.Context) {
	id, ok := h.projectId(c)
	if !ok {
		return
	}

	var req CallerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.engine.ClaimFunds(c.Request.Context(), req.Caller, id); err != nil {
		EngineErrorResponse(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "募资款领取成功", nil)
}

// ClaimPlatformFee 管理员领取平台手续费
func (h *FundHandler) ClaimPlatformFee(c *gin.Context) {
	id, ok := h.projectId(c)
	if !ok {
		return
	}

	var req CallerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.engine.ClaimPlatformFee(c.Request.Context(), req.Caller, id); err != nil {
		EngineErrorResponse(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "平台手续费领取成功", nil)
}

// ClaimUnsoldTokens 项目方取回未售出token
func (h *FundHandler) ClaimUnsoldTokens(c *gin.Context) {
	id, ok := h.projectId(c)
	if !ok {
		return
	}

	var req CallerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.engine.ClaimUnsoldTokens(c.Request.Context(), req.Caller, id); err != nil {
		EngineErrorResponse(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "未售token取回成功", nil)
}

// GetProject 项目快照（引擎权威数据）
func (h *FundHandler) GetProject(c *gin.Context) {
	id, ok := h.projectId(c)
	if !ok {
		return
	}

	project, err := h.engine.GetProjectDetails(id)
	if err != nil {
		EngineErrorResponse(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"project": project, "status": project.Status.String()})
}

// GetInvestment 投资快照
func (h *FundHandler) GetInvestment(c *gin.Context) {
	id, ok := h.projectId(c)
	if !ok {
		return
	}

	investment, err := h.engine.GetInvestmentDetails(id, c.Param("address"))
	if err != nil {
		EngineErrorResponse(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"investment": investment})
}

// GetInvestorProjects 投资人投过的项目id列表
func (h *FundHandler) GetInvestorProjects(c *gin.Context) {
	projects := h.engine.GetInvestorProjects(c.Param("address"))
	c.JSON(http.StatusOK, gin.H{"projects": projects})
}

// ListProjects 分页查询项目镜像
func (h *FundHandler) ListProjects(c *gin.Context) {
	status := c.Query("status")
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))

	projects, total, err := h.repo.ListProjects(status, page, pageSize)
	if err != nil {
		ErrorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"projects":  projects,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// ListInvestments 分页查询项目的投资记录
func (h *FundHandler) ListInvestments(c *gin.Context) {
	id, ok := h.projectId(c)
	if !ok {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	investments, total, err := h.repo.ListInvestments(int64(id), page, pageSize)
	if err != nil {
		ErrorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"investments": investments,
		"total":       total,
		"page":        page,
		"page_size":   pageSize,
	})
}

// ListRefunds 分页查询项目的退款记录
func (h *FundHandler) ListRefunds(c *gin.Context) {
	id, ok := h.projectId(c)
	if !ok {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	refunds, total, err := h.repo.ListRefunds(int64(id), page, pageSize)
	if err != nil {
		ErrorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"refunds":   refunds,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// projectId 解析路径里的项目ID
func (h *FundHandler) projectId(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "无效的项目ID")
		return 0, false
	}
	return id, true
}
