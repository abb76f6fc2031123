package entity

import "time"

// StockRecord representa la cantidad autoritativa de un producto en una sucursal.
// Version es un contador monotónico: toda mutación exitosa lo incrementa en 1 y
// es el único mecanismo de control de concurrencia (compare-and-swap por fila).
// Invariante: Quantity >= 0 en todo momento.
//
// El registro se crea de forma perezosa en el primer evento de stock del par
// (producto, sucursal) y nunca se borra, solo se lleva a cero.
type StockRecord struct {
	ProductID         string
	BranchID          string
	Quantity          int64
	Version           int64 // inicia en 0
	LowStockThreshold int64 // copiado del catálogo para comparación rápida
	UpdatedAt         time.Time
}

// BelowThreshold indica si la cantidad está en o por debajo del umbral de stock bajo.
// Umbral 0 desactiva la alerta.
func (r *StockRecord) BelowThreshold() bool {
	return r.LowStockThreshold > 0 && r.Quantity <= r.LowStockThreshold
}
