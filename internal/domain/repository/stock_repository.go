package repository

import "github.com/mercaldo/pos-api/internal/domain/entity"

// StockRepository puerto de persistencia del libro de stock por (producto, sucursal).
// La actualización es compare-and-swap sobre la columna version: cero filas
// afectadas equivale a conflicto de versión.
type StockRepository interface {
	// Get devuelve el registro o nil si no existe (creación perezosa a cargo del caller).
	Get(productID, branchID string) (*entity.StockRecord, error)
	// CreateIfAbsent inserta el registro con cantidad 0 y versión 0 si no existe.
	CreateIfAbsent(rec *entity.StockRecord) error
	// UpdateQuantityCAS escribe {newQuantity, version+1} condicionado a que la
	// versión siga siendo expectedVersion. Devuelve false si ninguna fila cambió.
	UpdateQuantityCAS(productID, branchID string, newQuantity, expectedVersion int64) (bool, error)
	ListByBranch(branchID string) ([]*entity.StockRecord, error)
	// ListLowStock registros en o por debajo de su umbral (umbral > 0).
	ListLowStock(branchID string) ([]*entity.StockRecord, error)
}
