package repository

import "github.com/mercaldo/pos-api/internal/domain/entity"

// ProductRepository puerto de persistencia del catálogo de productos.
// El motor de inventario lo lee (piso de precio, umbral) pero no lo posee.
type ProductRepository interface {
	Create(p *entity.Product) error
	GetByID(id string) (*entity.Product, error)
	GetBySKU(sku string) (*entity.Product, error)
	Update(p *entity.Product) error
	List(limit, offset int) ([]*entity.Product, error)
}
