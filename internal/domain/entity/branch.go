package entity

import "time"

// Branch sucursal donde se vende y almacena inventario.
type Branch struct {
	ID        string
	Code      string // código corto para numerar recibos (ej. "SUC01")
	Name      string
	Address   string
	Phone     string
	CreatedAt time.Time
	UpdatedAt time.Time
}
