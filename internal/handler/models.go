package handler

// Response 统一响应结构
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

// CreateProjectRequest 创建项目请求
type CreateProjectRequest struct {
	Caller         string `json:"caller" binding:"required"`
	ProjectId      uint64 `json:"project_id" binding:"required"`
	Raiser         string `json:"raiser" binding:"required"`
	TokenAddress   string `json:"token_address" binding:"required"`
	TokensToSell   uint64 `json:"tokens_to_sell" binding:"required"`
	TokenPrice     uint64 `json:"token_price" binding:"required"`
	EndFundingTime int64  `json:"end_funding_time" binding:"required"` // unix秒
	TokenDecimals  uint8  `json:"token_decimals"`
}

// CallerRequest 只带调用方地址的请求
type CallerRequest struct {
	Caller string `json:"caller" binding:"required"`
}

// InvestRequest 投资请求
type InvestRequest struct {
	Caller string `json:"caller" binding:"required"`
	Units  uint64 `json:"units" binding:"required"`
}
