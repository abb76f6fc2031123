package repository

import "github.com/mercaldo/pos-api/internal/domain/entity"

// BranchRepository puerto de persistencia de sucursales.
type BranchRepository interface {
	Create(b *entity.Branch) error
	GetByID(id string) (*entity.Branch, error)
	Update(b *entity.Branch) error
	List() ([]*entity.Branch, error)
}
