package storage

import (
	"context"
	"maps"
	"slices"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/yuandi/fulfillment/internal/core/domain"
	"github.com/yuandi/fulfillment/internal/port"
)

// memoryState is one snapshot of every table. Rows are stored by value and
// slices are append-only, so a shallow clone is enough for a transaction.
type memoryState struct {
	products  map[uuid.UUID]domain.Product
	orders    map[uuid.UUID]domain.Order
	shipments []domain.Shipment
	refunds   []domain.Refund
	inbounds  []domain.Inbound
	movements []domain.StockMovement
	ledger    []domain.CashbookTransaction
	balance   int64
	seq       int64
}

func (s *memoryState) clone() *memoryState {
	return &memoryState{
		products:  maps.Clone(s.products),
		orders:    maps.Clone(s.orders),
		shipments: slices.Clone(s.shipments),
		refunds:   slices.Clone(s.refunds),
		inbounds:  slices.Clone(s.inbounds),
		movements: slices.Clone(s.movements),
		ledger:    slices.Clone(s.ledger),
		balance:   s.balance,
		seq:       s.seq,
	}
}

// MemoryStore is a TransactionScope kept in process memory. Write
// transactions run one at a time against a copy of the state that replaces
// the committed state only when fn succeeds.
type MemoryStore struct {
	mu    sync.RWMutex
	state *memoryState
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: &memoryState{
		products: make(map[uuid.UUID]domain.Product),
		orders:   make(map[uuid.UUID]domain.Order),
	}}
}

func (m *MemoryStore) Execute(ctx context.Context, fn func(repos port.Repositories) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := m.state.clone()
	if err := fn(&memoryRepos{state: tx}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.state = tx
	return nil
}

func (m *MemoryStore) ExecuteReadOnly(ctx context.Context, fn func(repos port.Repositories) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.RLock()
	snapshot := m.state.clone()
	m.mu.RUnlock()
	return fn(&memoryRepos{state: snapshot})
}

// Ping always succeeds unless ctx is done.
func (m *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

type memoryRepos struct {
	state *memoryState
}

func (r *memoryRepos) Products() port.ProductRepository   { return memoryProducts{r.state} }
func (r *memoryRepos) Orders() port.OrderRepository       { return memoryOrders{r.state} }
func (r *memoryRepos) Shipments() port.ShipmentRepository { return memoryShipments{r.state} }
func (r *memoryRepos) Refunds() port.RefundRepository     { return memoryRefunds{r.state} }
func (r *memoryRepos) Inbounds() port.InboundRepository   { return memoryInbounds{r.state} }
func (r *memoryRepos) Movements() port.MovementRepository { return memoryMovements{r.state} }
func (r *memoryRepos) Ledger() port.LedgerRepository      { return memoryLedger{r.state} }

type memoryProducts struct{ s *memoryState }

func (p memoryProducts) Create(_ context.Context, product *domain.Product) error {
	for _, existing := range p.s.products {
		if existing.SKU == product.SKU {
			return domain.ErrAlreadyExists
		}
	}
	if _, ok := p.s.products[product.ID]; ok {
		return domain.ErrAlreadyExists
	}
	p.s.products[product.ID] = *product
	return nil
}

func (p memoryProducts) FindByID(_ context.Context, id uuid.UUID) (*domain.Product, error) {
	product, ok := p.s.products[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &product, nil
}

func (p memoryProducts) List(_ context.Context, activeOnly bool) ([]domain.Product, error) {
	out := make([]domain.Product, 0, len(p.s.products))
	for _, product := range p.s.products {
		if activeOnly && !product.Active {
			continue
		}
		out = append(out, product)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SKU < out[j].SKU })
	return out, nil
}

func (p memoryProducts) IncrementStock(_ context.Context, id uuid.UUID, quantity int) error {
	product, ok := p.s.products[id]
	if !ok {
		return domain.ErrNotFound
	}
	product.OnHand += quantity
	p.s.products[id] = product
	return nil
}

func (p memoryProducts) DecrementStock(_ context.Context, id uuid.UUID, quantity int) (bool, error) {
	product, ok := p.s.products[id]
	if !ok || !product.Active || product.OnHand < quantity {
		return false, nil
	}
	product.OnHand -= quantity
	p.s.products[id] = product
	return true, nil
}

func (p memoryProducts) Deactivate(_ context.Context, id uuid.UUID) error {
	product, ok := p.s.products[id]
	if !ok {
		return domain.ErrNotFound
	}
	product.Active = false
	p.s.products[id] = product
	return nil
}

type memoryOrders struct{ s *memoryState }

func (o memoryOrders) Create(_ context.Context, order *domain.Order) error {
	if _, ok := o.s.orders[order.ID]; ok {
		return domain.ErrAlreadyExists
	}
	stored := *order
	stored.Items = slices.Clone(order.Items)
	o.s.orders[order.ID] = stored
	return nil
}

func (o memoryOrders) FindByID(_ context.Context, id uuid.UUID) (*domain.Order, error) {
	order, ok := o.s.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	order.Items = slices.Clone(order.Items)
	return &order, nil
}

func (o memoryOrders) List(_ context.Context, filter port.OrderFilter) ([]domain.Order, error) {
	out := make([]domain.Order, 0, len(o.s.orders))
	for _, order := range o.s.orders {
		if filter.Status != "" && order.Status != filter.Status {
			continue
		}
		order.Items = slices.Clone(order.Items)
		out = append(out, order)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].OrderNumber > out[j].OrderNumber
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (o memoryOrders) UpdateStatus(_ context.Context, order *domain.Order) error {
	stored, ok := o.s.orders[order.ID]
	if !ok {
		return domain.ErrNotFound
	}
	items := stored.Items
	stored = *order
	stored.Items = items
	o.s.orders[order.ID] = stored
	return nil
}

type memoryShipments struct{ s *memoryState }

func (r memoryShipments) Create(_ context.Context, shipment *domain.Shipment) error {
	r.s.shipments = append(r.s.shipments, *shipment)
	return nil
}

func (r memoryShipments) ListByOrder(_ context.Context, orderID uuid.UUID) ([]domain.Shipment, error) {
	var out []domain.Shipment
	for _, sh := range r.s.shipments {
		if sh.OrderID == orderID {
			out = append(out, sh)
		}
	}
	return out, nil
}

func (r memoryShipments) OrderIDs(context.Context) (map[uuid.UUID]bool, error) {
	ids := make(map[uuid.UUID]bool, len(r.s.shipments))
	for _, sh := range r.s.shipments {
		ids[sh.OrderID] = true
	}
	return ids, nil
}

type memoryRefunds struct{ s *memoryState }

func (r memoryRefunds) Create(_ context.Context, refund *domain.Refund) error {
	r.s.refunds = append(r.s.refunds, *refund)
	return nil
}

func (r memoryRefunds) ListByOrder(_ context.Context, orderID uuid.UUID) ([]domain.Refund, error) {
	var out []domain.Refund
	for _, rf := range r.s.refunds {
		if rf.OrderID == orderID {
			out = append(out, rf)
		}
	}
	return out, nil
}

func (r memoryRefunds) OrderIDs(context.Context) (map[uuid.UUID]bool, error) {
	ids := make(map[uuid.UUID]bool, len(r.s.refunds))
	for _, rf := range r.s.refunds {
		ids[rf.OrderID] = true
	}
	return ids, nil
}

type memoryInbounds struct{ s *memoryState }

func (r memoryInbounds) Create(_ context.Context, inbound *domain.Inbound) error {
	r.s.inbounds = append(r.s.inbounds, *inbound)
	return nil
}

type memoryMovements struct{ s *memoryState }

func (r memoryMovements) Create(_ context.Context, movement *domain.StockMovement) error {
	r.s.movements = append(r.s.movements, *movement)
	return nil
}

func (r memoryMovements) SumByProduct(context.Context) (map[uuid.UUID]int, error) {
	sums := make(map[uuid.UUID]int)
	for _, m := range r.s.movements {
		sums[m.ProductID] += m.Quantity
	}
	return sums, nil
}

type memoryLedger struct{ s *memoryState }

func (l memoryLedger) Append(_ context.Context, entry *domain.CashbookTransaction) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	balance, err := domain.AddBalance(l.s.balance, entry.Amount)
	if err != nil {
		return err
	}
	l.s.seq++
	l.s.balance = balance
	entry.Seq = l.s.seq
	entry.Balance = l.s.balance
	l.s.ledger = append(l.s.ledger, *entry)
	return nil
}

func (l memoryLedger) Head(context.Context) (int64, int64, error) {
	return l.s.balance, l.s.seq, nil
}

func (l memoryLedger) Latest(context.Context) (*domain.CashbookTransaction, error) {
	if len(l.s.ledger) == 0 {
		return nil, nil
	}
	latest := l.s.ledger[len(l.s.ledger)-1]
	return &latest, nil
}

func (l memoryLedger) Sum(context.Context) (int64, int64, error) {
	var total int64
	for _, e := range l.s.ledger {
		total += e.Amount
	}
	return total, int64(len(l.s.ledger)), nil
}

func (l memoryLedger) List(_ context.Context, limit int) ([]domain.CashbookTransaction, error) {
	n := len(l.s.ledger)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]domain.CashbookTransaction, 0, n)
	for i := len(l.s.ledger) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, l.s.ledger[i])
	}
	return out, nil
}

var _ port.TransactionScope = (*MemoryStore)(nil)
