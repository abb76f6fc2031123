// Package memory implementa los puertos de persistencia sobre mapas en
// memoria protegidos por mutex. Respaldo de los tests y del modo DB_MODE=memory
// para desarrollo sin PostgreSQL.
//
// Limitación conocida: los runners de transacción ejecutan el callback sin
// atomicidad real entre repos; cada operación individual sí es atómica (el
// CAS de stock y la marca de anulación toman el lock completo), que es lo que
// los motores de aplicación necesitan para sus guardias de concurrencia.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mercaldo/pos-api/internal/application/ledger"
	"github.com/mercaldo/pos-api/internal/application/sales"
	"github.com/mercaldo/pos-api/internal/application/transfers"
	"github.com/mercaldo/pos-api/internal/domain"
	"github.com/mercaldo/pos-api/internal/domain/entity"
	"github.com/mercaldo/pos-api/internal/domain/repository"
)

// Ensure Store implementa los runners de transacción de cada módulo.
var (
	_ ledger.TxRunner    = (*Store)(nil)
	_ sales.TxRunner     = (*Store)(nil)
	_ transfers.TxRunner = (*Store)(nil)
)

type stockKey struct {
	productID string
	branchID  string
}

// Store almacén en memoria. Cada puerto de repositorio se obtiene como una
// vista (Stock(), Sales(), ...) que comparte el mismo lock y los mismos datos.
type Store struct {
	mu        sync.RWMutex
	stock     map[stockKey]*entity.StockRecord
	sales     map[string]*entity.SaleTransaction
	transfers map[string]*entity.Transfer
	audit     []*entity.AuditEntry
	products  map[string]*entity.Product
	branches  map[string]*entity.Branch
	users     map[string]*entity.User
}

// NewStore crea un almacén vacío.
func NewStore() *Store {
	return &Store{
		stock:     make(map[stockKey]*entity.StockRecord),
		sales:     make(map[string]*entity.SaleTransaction),
		transfers: make(map[string]*entity.Transfer),
		products:  make(map[string]*entity.Product),
		branches:  make(map[string]*entity.Branch),
		users:     make(map[string]*entity.User),
	}
}

// Vistas por puerto.
func (s *Store) Stock() repository.StockRepository        { return stockView{s} }
func (s *Store) Sales() repository.SaleRepository         { return saleView{s} }
func (s *Store) Transfers() repository.TransferRepository { return transferView{s} }
func (s *Store) Audit() repository.AuditRepository        { return auditView{s} }
func (s *Store) Products() repository.ProductRepository   { return productView{s} }
func (s *Store) Branches() repository.BranchRepository    { return branchView{s} }
func (s *Store) Users() repository.UserRepository         { return userView{s} }

// ── Runners de transacción ────────────────────────────────────────────────────

// RunLedger ejecuta el callback con las vistas del store como repos.
func (s *Store) RunLedger(_ context.Context, fn func(
	stockRepo repository.StockRepository,
	auditRepo repository.AuditRepository,
) error) error {
	return fn(s.Stock(), s.Audit())
}

// RunSale ejecuta el callback con las vistas del store como repos.
func (s *Store) RunSale(_ context.Context, fn func(
	saleRepo repository.SaleRepository,
	auditRepo repository.AuditRepository,
) error) error {
	return fn(s.Sales(), s.Audit())
}

// RunTransfer ejecuta el callback con las vistas del store como repos.
func (s *Store) RunTransfer(_ context.Context, fn func(
	transferRepo repository.TransferRepository,
	auditRepo repository.AuditRepository,
) error) error {
	return fn(s.Transfers(), s.Audit())
}

// ── StockRepository ───────────────────────────────────────────────────────────

type stockView struct{ s *Store }

var _ repository.StockRepository = stockView{}

func (v stockView) Get(productID, branchID string) (*entity.StockRecord, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	rec, ok := v.s.stock[stockKey{productID, branchID}]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (v stockView) CreateIfAbsent(rec *entity.StockRecord) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	key := stockKey{rec.ProductID, rec.BranchID}
	if _, ok := v.s.stock[key]; ok {
		return nil
	}
	cp := *rec
	cp.UpdatedAt = time.Now()
	v.s.stock[key] = &cp
	return nil
}

// UpdateQuantityCAS compara la versión bajo el lock y escribe cantidad y
// versión+1 solo si coincide.
func (v stockView) UpdateQuantityCAS(productID, branchID string, newQuantity, expectedVersion int64) (bool, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	rec, ok := v.s.stock[stockKey{productID, branchID}]
	if !ok || rec.Version != expectedVersion {
		return false, nil
	}
	rec.Quantity = newQuantity
	rec.Version++
	rec.UpdatedAt = time.Now()
	return true, nil
}

func (v stockView) ListByBranch(branchID string) ([]*entity.StockRecord, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	var out []*entity.StockRecord
	for _, rec := range v.s.stock {
		if rec.BranchID == branchID {
			cp := *rec
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}

func (v stockView) ListLowStock(branchID string) ([]*entity.StockRecord, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	var out []*entity.StockRecord
	for _, rec := range v.s.stock {
		if rec.BranchID == branchID && rec.LowStockThreshold > 0 && rec.Quantity <= rec.LowStockThreshold {
			cp := *rec
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}

// ── SaleRepository ────────────────────────────────────────────────────────────

type saleView struct{ s *Store }

var _ repository.SaleRepository = saleView{}

func (v saleView) Create(sale *entity.SaleTransaction) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	if _, ok := v.s.sales[sale.ID]; ok {
		return domain.ErrDuplicate
	}
	v.s.sales[sale.ID] = copySale(sale)
	return nil
}

func (v saleView) GetByID(id string) (*entity.SaleTransaction, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	sale, ok := v.s.sales[id]
	if !ok {
		return nil, nil
	}
	return copySale(sale), nil
}

// MarkReversed marca la venta como anulada solo si no lo estaba: la
// comprobación y la escritura ocurren bajo el mismo lock.
func (v saleView) MarkReversed(id, reason string) (bool, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	sale, ok := v.s.sales[id]
	if !ok || sale.Reversed {
		return false, nil
	}
	sale.Reversed = true
	sale.ReversalReason = reason
	return true, nil
}

func (v saleView) UnmarkReversed(id string) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	sale, ok := v.s.sales[id]
	if !ok {
		return domain.ErrNotFound
	}
	sale.Reversed = false
	sale.ReversalReason = ""
	return nil
}

func (v saleView) AddPayment(payment *entity.CreditPayment) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	sale, ok := v.s.sales[payment.SaleID]
	if !ok {
		return domain.ErrNotFound
	}
	sale.Payments = append(sale.Payments, *payment)
	return nil
}

func (v saleView) UpdateCreditStatus(id, status string) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	sale, ok := v.s.sales[id]
	if !ok {
		return domain.ErrNotFound
	}
	sale.CreditStatus = status
	return nil
}

func (v saleView) ListByBranch(branchID string, limit, offset int) ([]*entity.SaleTransaction, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	var all []*entity.SaleTransaction
	for _, sale := range v.s.sales {
		if sale.BranchID == branchID {
			all = append(all, copySale(sale))
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return paginate(all, limit, offset), nil
}

// ── TransferRepository ────────────────────────────────────────────────────────

type transferView struct{ s *Store }

var _ repository.TransferRepository = transferView{}

func (v transferView) Create(t *entity.Transfer) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	if _, ok := v.s.transfers[t.ID]; ok {
		return domain.ErrDuplicate
	}
	v.s.transfers[t.ID] = copyTransfer(t)
	return nil
}

func (v transferView) GetByID(id string) (*entity.Transfer, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	t, ok := v.s.transfers[id]
	if !ok {
		return nil, nil
	}
	return copyTransfer(t), nil
}

// UpdateStatusCAS cambia el estado solo si el actual es from, bajo el lock.
func (v transferView) UpdateStatusCAS(id string, from, to entity.TransferStatus) (bool, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	t, ok := v.s.transfers[id]
	if !ok || t.Status != from {
		return false, nil
	}
	t.Status = to
	t.UpdatedAt = time.Now()
	return true, nil
}

func (v transferView) UpdateItems(id string, items []entity.TransferItem) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	t, ok := v.s.transfers[id]
	if !ok {
		return domain.ErrNotFound
	}
	t.Items = append([]entity.TransferItem(nil), items...)
	t.UpdatedAt = time.Now()
	return nil
}

func (v transferView) SetDiscrepancyNotes(id, notes string) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	t, ok := v.s.transfers[id]
	if !ok {
		return domain.ErrNotFound
	}
	t.DiscrepancyNotes = notes
	t.UpdatedAt = time.Now()
	return nil
}

func (v transferView) ListByBranch(branchID string, limit, offset int) ([]*entity.Transfer, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	var all []*entity.Transfer
	for _, t := range v.s.transfers {
		if t.FromBranchID == branchID || t.ToBranchID == branchID {
			all = append(all, copyTransfer(t))
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return paginate(all, limit, offset), nil
}

// ── AuditRepository ───────────────────────────────────────────────────────────

type auditView struct{ s *Store }

var _ repository.AuditRepository = auditView{}

func (v auditView) Append(e *entity.AuditEntry) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	cp := *e
	v.s.audit = append(v.s.audit, &cp)
	return nil
}

func (v auditView) ListByEntity(entityType, entityID string, limit, offset int) ([]*entity.AuditEntry, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	var out []*entity.AuditEntry
	for _, e := range v.s.audit {
		if e.EntityType == entityType && e.EntityID == entityID {
			cp := *e
			out = append(out, &cp)
		}
	}
	reverseEntries(out)
	return paginate(out, limit, offset), nil
}

func (v auditView) ListByActor(actorID string, limit, offset int) ([]*entity.AuditEntry, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	var out []*entity.AuditEntry
	for _, e := range v.s.audit {
		if e.ActorID == actorID {
			cp := *e
			out = append(out, &cp)
		}
	}
	reverseEntries(out)
	return paginate(out, limit, offset), nil
}

// ── ProductRepository ─────────────────────────────────────────────────────────

type productView struct{ s *Store }

var _ repository.ProductRepository = productView{}

func (v productView) Create(p *entity.Product) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	for _, existing := range v.s.products {
		if existing.SKU == p.SKU {
			return domain.ErrDuplicate
		}
	}
	cp := *p
	v.s.products[p.ID] = &cp
	return nil
}

func (v productView) GetByID(id string) (*entity.Product, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	p, ok := v.s.products[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (v productView) GetBySKU(sku string) (*entity.Product, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	for _, p := range v.s.products {
		if p.SKU == sku {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (v productView) Update(p *entity.Product) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	if _, ok := v.s.products[p.ID]; !ok {
		return domain.ErrNotFound
	}
	cp := *p
	v.s.products[p.ID] = &cp
	return nil
}

func (v productView) List(limit, offset int) ([]*entity.Product, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	var all []*entity.Product
	for _, p := range v.s.products {
		cp := *p
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	return paginate(all, limit, offset), nil
}

// ── BranchRepository ──────────────────────────────────────────────────────────

type branchView struct{ s *Store }

var _ repository.BranchRepository = branchView{}

func (v branchView) Create(b *entity.Branch) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	for _, existing := range v.s.branches {
		if existing.Code == b.Code {
			return domain.ErrDuplicate
		}
	}
	cp := *b
	v.s.branches[b.ID] = &cp
	return nil
}

func (v branchView) GetByID(id string) (*entity.Branch, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	b, ok := v.s.branches[id]
	if !ok {
		return nil, nil
	}
	cp := *b
	return &cp, nil
}

func (v branchView) Update(b *entity.Branch) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	if _, ok := v.s.branches[b.ID]; !ok {
		return domain.ErrNotFound
	}
	cp := *b
	v.s.branches[b.ID] = &cp
	return nil
}

func (v branchView) List() ([]*entity.Branch, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	var all []*entity.Branch
	for _, b := range v.s.branches {
		cp := *b
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Code < all[j].Code })
	return all, nil
}

// ── UserRepository ────────────────────────────────────────────────────────────

type userView struct{ s *Store }

var _ repository.UserRepository = userView{}

func (v userView) Create(u *entity.User) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	for _, existing := range v.s.users {
		if existing.Email == u.Email {
			return domain.ErrEmailAlreadyExists
		}
	}
	cp := *u
	v.s.users[u.ID] = &cp
	return nil
}

func (v userView) GetByID(id string) (*entity.User, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	u, ok := v.s.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (v userView) FindByEmail(email string) (*entity.User, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	for _, u := range v.s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

// ── Helpers ───────────────────────────────────────────────────────────────────

func copySale(sale *entity.SaleTransaction) *entity.SaleTransaction {
	cp := *sale
	cp.Items = append([]entity.SaleItem(nil), sale.Items...)
	cp.Payments = append([]entity.CreditPayment(nil), sale.Payments...)
	return &cp
}

func copyTransfer(t *entity.Transfer) *entity.Transfer {
	cp := *t
	cp.Items = append([]entity.TransferItem(nil), t.Items...)
	return &cp
}

func paginate[T any](all []T, limit, offset int) []T {
	if offset >= len(all) {
		return nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all
}

func reverseEntries(entries []*entity.AuditEntry) {
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
}
