package dto

import "time"

// StockResponse saldo de un producto en una sucursal.
type StockResponse struct {
	ProductID         string    `json:"product_id"`
	BranchID          string    `json:"branch_id"`
	Quantity          int64     `json:"quantity"`
	Version           int64     `json:"version"`
	LowStockThreshold int64     `json:"low_stock_threshold"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// ManualAdjustRequest body para POST /api/stock/adjust.
// Delta puede ser positivo (entrada por conteo) o negativo (merma, daño).
type ManualAdjustRequest struct {
	ProductID string `json:"product_id" validate:"required"`
	BranchID  string `json:"branch_id" validate:"required"`
	Delta     int64  `json:"delta" validate:"required"`
	Reason    string `json:"reason" validate:"required,min=1"`
}

// AdjustResponse resultado de un ajuste aplicado.
type AdjustResponse struct {
	ProductID   string `json:"product_id"`
	BranchID    string `json:"branch_id"`
	NewQuantity int64  `json:"new_quantity"`
	NewVersion  int64  `json:"new_version"`
}
