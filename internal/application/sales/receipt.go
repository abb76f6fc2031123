package sales

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/mercaldo/pos-api/internal/domain"
	"github.com/mercaldo/pos-api/internal/domain/entity"
)

// ReceiptLine línea de recibo resuelta con nombre de producto.
type ReceiptLine struct {
	ProductName string
	Quantity    int64
	UnitPrice   decimal.Decimal
	Subtotal    decimal.Decimal
}

// ReceiptGenerator puerto de generación del recibo en PDF.
type ReceiptGenerator interface {
	GenerateReceiptPDF(ctx context.Context, sale *entity.SaleTransaction, branch *entity.Branch, lines []ReceiptLine) ([]byte, error)
}

// ReceiptPDF arma las líneas del recibo (resolviendo nombres de producto) y
// delega la generación al puerto.
func (e *Engine) ReceiptPDF(ctx context.Context, saleID string, gen ReceiptGenerator) ([]byte, error) {
	sale, err := e.GetSale(ctx, saleID)
	if err != nil {
		return nil, err
	}
	branch, err := e.branchRepo.GetByID(sale.BranchID)
	if err != nil {
		return nil, err
	}
	if branch == nil {
		return nil, domain.ErrNotFound
	}

	lines := make([]ReceiptLine, 0, len(sale.Items))
	for _, item := range sale.Items {
		name := item.ProductID
		if product, err := e.productRepo.GetByID(item.ProductID); err == nil && product != nil {
			name = product.Name
		}
		lines = append(lines, ReceiptLine{
			ProductName: name,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			Subtotal:    item.Subtotal(),
		})
	}
	return gen.GenerateReceiptPDF(ctx, sale, branch, lines)
}
