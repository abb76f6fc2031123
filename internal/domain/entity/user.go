package entity

import "time"

// Roles válidos para User. Aprobar, despachar, cancelar traslados y ajustar
// stock manualmente requieren rol elevado (admin o gerente).
const (
	RoleAdmin   = "admin"
	RoleGerente = "gerente"
	RoleCajero  = "cajero"
)

// User usuario del sistema, asignado a una sucursal.
type User struct {
	ID           string
	BranchID     string
	Email        string
	PasswordHash string // bcrypt, nunca plano en dominio después de persistir
	Name         string
	Role         string // admin, gerente, cajero
	Status       string // active, inactive, suspended
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Elevated indica si el rol puede ejecutar operaciones restringidas.
func (u *User) Elevated() bool {
	return u.Role == RoleAdmin || u.Role == RoleGerente
}
