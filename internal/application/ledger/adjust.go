package ledger

import (
	"context"
	"strings"

	"github.com/mercaldo/pos-api/internal/domain"
	"github.com/mercaldo/pos-api/internal/domain/entity"
)

// ManualAdjustInput ajuste manual de stock (merma, conteo físico, corrección).
// El motor confía en que el transporte ya validó el rol elevado del actor.
type ManualAdjustInput struct {
	ActorID   string
	ProductID string
	BranchID  string
	Delta     int64
	Reason    string // justificación obligatoria
}

// ManualAdjust aplica un ajuste manual a través de la primitiva única, con
// reintentos ante conflicto. La razón viaja como referencia en la auditoría.
func (l *StockLedger) ManualAdjust(ctx context.Context, in ManualAdjustInput) (*Adjustment, error) {
	if in.ProductID == "" || in.BranchID == "" || in.Delta == 0 {
		return nil, domain.ErrInvalidInput
	}
	if strings.TrimSpace(in.Reason) == "" {
		return nil, domain.ErrInvalidInput
	}
	return l.AdjustWithRetry(ctx, AdjustInput{
		ActorID:   in.ActorID,
		Action:    entity.AuditStockManualAdjust,
		Reference: in.Reason,
		ProductID: in.ProductID,
		BranchID:  in.BranchID,
		Delta:     in.Delta,
	})
}
