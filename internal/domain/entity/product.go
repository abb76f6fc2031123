package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product producto del catálogo (multi-sucursal).
// MinPrice es el piso de precio: una venta por debajo requiere override
// explícito con justificación. LowStockThreshold se copia al StockRecord
// en su creación perezosa para comparación rápida.
type Product struct {
	ID                string
	SKU               string // código único
	Name              string
	Description       string
	Price             decimal.Decimal // precio de venta sugerido
	MinPrice          decimal.Decimal // piso de precio
	LowStockThreshold int64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
