package procurement

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/papeleria/papeleria/internal/coordinator"
	"github.com/papeleria/papeleria/internal/inventory"
	"github.com/papeleria/papeleria/internal/inventory/inventorytest"
	"github.com/papeleria/papeleria/internal/shared"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fixture struct {
	store *inventorytest.Store
	repo  *memoryRepo
	svc   *Service
}

func newFixture() *fixture {
	store := inventorytest.NewStore()
	store.Put(inventory.StockItem{ProductID: 1, Name: "Resma carta", Price: dec("5.00"), Stock: 10, MinStock: 5, Active: true})
	store.Put(inventory.StockItem{ProductID: 2, Name: "Grapas", Price: dec("1.00"), Stock: 3, MinStock: 5, Active: true})
	store.Put(inventory.StockItem{ProductID: 3, Name: "Borrador viejo", Price: dec("0.50"), Stock: 0, MinStock: 0, Active: false})
	repo := newMemoryRepo(store)
	repo.suppliers[1] = SupplierRef{ID: 1, Name: "Distribuidora Sol", Active: true}
	repo.suppliers[2] = SupplierRef{ID: 2, Name: "Cerrado SA", Active: false}
	svc := NewService(repo, inventory.NewLedger(), coordinator.New(coordinator.Config{}), nil)
	return &fixture{store: store, repo: repo, svc: svc}
}

func pendingPurchase(qty int64) CreatePurchaseRequest {
	return CreatePurchaseRequest{
		SupplierID: 1,
		Lines:      []LineRequest{{ProductID: 1, Quantity: qty, UnitPrice: dec("3.20")}},
	}
}

func TestCreatePendingPurchaseLeavesStock(t *testing.T) {
	f := newFixture()
	p, err := f.svc.Create(context.Background(), CreatePurchaseRequest{
		SupplierID:   1,
		Observations: "  entrega lunes ",
		Lines: []LineRequest{
			{ProductID: 1, Quantity: 5, UnitPrice: dec("3.20")},
			{ProductID: 2, Quantity: 10, UnitPrice: dec("0.45")},
		},
	})
	require.NoError(t, err)
	require.Equal(t, shared.StatusPending, p.Status)
	require.Equal(t, DefaultPaymentMethod, p.PaymentMethod)
	require.Equal(t, "Distribuidora Sol", p.SupplierName)
	require.Equal(t, "entrega lunes", p.Observations)
	require.True(t, dec("20.50").Equal(p.Total), p.Total.String())

	require.Equal(t, int64(10), f.store.StockOf(1))
	require.Equal(t, int64(3), f.store.StockOf(2))
	require.Empty(t, f.store.Movements())

	fetched, err := f.svc.Get(context.Background(), p.ID)
	require.NoError(t, err)
	require.Len(t, fetched.Lines, 2)
	require.True(t, dec("16.00").Equal(fetched.Lines[0].Subtotal))
	require.True(t, dec("4.50").Equal(fetched.Lines[1].Subtotal))
	require.Equal(t, "Grapas", fetched.Lines[1].ProductName)
}

func TestCompletePurchaseReceivesStockOnce(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	p, err := f.svc.Create(ctx, pendingPurchase(5))
	require.NoError(t, err)

	p, err = f.svc.UpdateStatus(ctx, p.ID, StatusRequest{Status: shared.StatusCompleted})
	require.NoError(t, err)
	require.Equal(t, shared.StatusCompleted, p.Status)
	require.Equal(t, int64(15), f.store.StockOf(1))

	_, err = f.svc.UpdateStatus(ctx, p.ID, StatusRequest{Status: shared.StatusCompleted})
	require.NoError(t, err)
	require.Equal(t, int64(15), f.store.StockOf(1))

	_, err = f.svc.UpdateStatus(ctx, p.ID, StatusRequest{Status: shared.StatusPending})
	require.ErrorIs(t, err, shared.ErrInvalidState)
	require.Equal(t, int64(15), f.store.StockOf(1))

	moves := f.store.Movements()
	require.Len(t, moves, 1)
	require.Equal(t, inventory.MovementPurchase, moves[0].Type)
	require.Equal(t, int64(5), moves[0].Qty)
	require.Equal(t, int64(15), moves[0].BalanceAfter)
}

func TestConcurrentCompletionAppliesOnce(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	p, err := f.svc.Create(ctx, pendingPurchase(5))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.UpdateStatus(ctx, p.ID, StatusRequest{Status: shared.StatusCompleted})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	require.Equal(t, int64(15), f.store.StockOf(1))
	require.Len(t, f.store.Movements(), 1)
}

func TestDeleteCompletedPurchaseReversesStock(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	p, err := f.svc.Create(ctx, pendingPurchase(5))
	require.NoError(t, err)
	_, err = f.svc.UpdateStatus(ctx, p.ID, StatusRequest{Status: shared.StatusCompleted})
	require.NoError(t, err)
	require.Equal(t, int64(15), f.store.StockOf(1))

	require.NoError(t, f.svc.Delete(ctx, p.ID))
	require.Equal(t, int64(10), f.store.StockOf(1))
	require.Zero(t, f.repo.count())
	moves := f.store.Movements()
	require.Equal(t, inventory.MovementPurchaseReversal, moves[len(moves)-1].Type)

	_, err = f.svc.Get(ctx, p.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestDeletePendingPurchaseLeavesStock(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	p, err := f.svc.Create(ctx, pendingPurchase(5))
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, p.ID))
	require.Equal(t, int64(10), f.store.StockOf(1))
	require.Empty(t, f.store.Movements())
}

func TestDeleteAbortsWhenReversalFails(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	p, err := f.svc.Create(ctx, CreatePurchaseRequest{
		SupplierID: 1,
		Status:     shared.StatusCompleted,
		Lines: []LineRequest{
			{ProductID: 1, Quantity: 5, UnitPrice: dec("3.20")},
			{ProductID: 2, Quantity: 4, UnitPrice: dec("0.45")},
		},
	})
	require.NoError(t, err)
	require.Equal(t, int64(15), f.store.StockOf(1))
	require.Equal(t, int64(7), f.store.StockOf(2))

	// Most of the received grapas were sold in the meantime.
	restore := f.store.Snapshot()
	f.store.Put(inventory.StockItem{ProductID: 2, Name: "Grapas", Price: dec("1.00"), Stock: 1, MinStock: 5, Active: true})

	err = f.svc.Delete(ctx, p.ID)
	require.ErrorIs(t, err, shared.ErrInsufficientStock)
	require.ErrorIs(t, err, shared.ErrTransactionAborted)
	require.Equal(t, int64(15), f.store.StockOf(1))
	require.Equal(t, int64(1), f.store.StockOf(2))
	require.Equal(t, 1, f.repo.count())

	restore()
	f.store.Remove(1)
	err = f.svc.Delete(ctx, p.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.Equal(t, int64(7), f.store.StockOf(2))
	require.Equal(t, 1, f.repo.count())
}

func TestCreateCompletedPurchaseReceivesImmediately(t *testing.T) {
	f := newFixture()
	req := pendingPurchase(5)
	req.Status = shared.StatusCompleted
	_, err := f.svc.Create(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, int64(15), f.store.StockOf(1))
}

func TestCreatePurchaseRejections(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	req := pendingPurchase(5)
	req.SupplierID = 99
	_, err := f.svc.Create(ctx, req)
	require.ErrorIs(t, err, shared.ErrNotFound)

	req.SupplierID = 2
	_, err = f.svc.Create(ctx, req)
	require.ErrorIs(t, err, ErrSupplierInactive)

	req = pendingPurchase(5)
	req.Status = shared.StatusCompleted
	req.Lines = append(req.Lines, LineRequest{ProductID: 77, Quantity: 1, UnitPrice: dec("1")})
	_, err = f.svc.Create(ctx, req)
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.ErrorIs(t, err, shared.ErrTransactionAborted)

	req.Lines[1].ProductID = 3
	_, err = f.svc.Create(ctx, req)
	require.ErrorIs(t, err, inventory.ErrProductInactive)

	require.Equal(t, int64(10), f.store.StockOf(1))
	require.Zero(t, f.repo.count())
}

func TestCreatePurchaseValidation(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Create(context.Background(), CreatePurchaseRequest{
		Lines: []LineRequest{{ProductID: 1, Quantity: 2, UnitPrice: decimal.Zero}},
	})
	require.ErrorIs(t, err, shared.ErrInvalidInput)
	fields := []string{}
	for _, fe := range shared.FieldErrors(err) {
		fields = append(fields, fe.Field)
	}
	require.ElementsMatch(t, []string{"supplier_id", "lines[0].unit_price"}, fields)
}

func TestUpdatePurchaseReplacesLinesWhilePending(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	p, err := f.svc.Create(ctx, pendingPurchase(5))
	require.NoError(t, err)

	completed := shared.StatusCompleted
	p, err = f.svc.Update(ctx, p.ID, UpdatePurchaseRequest{
		Lines:  []LineRequest{{ProductID: 2, Quantity: 12, UnitPrice: dec("0.40")}},
		Status: &completed,
	})
	require.NoError(t, err)
	require.Len(t, p.Lines, 1)
	require.True(t, dec("4.80").Equal(p.Total))
	require.Equal(t, int64(10), f.store.StockOf(1))
	require.Equal(t, int64(15), f.store.StockOf(2))

	_, err = f.svc.Update(ctx, p.ID, UpdatePurchaseRequest{
		Lines: []LineRequest{{ProductID: 1, Quantity: 1, UnitPrice: dec("1")}},
	})
	require.ErrorIs(t, err, shared.ErrInvalidState)

	obs := "recibido completo"
	p, err = f.svc.Update(ctx, p.ID, UpdatePurchaseRequest{Observations: &obs})
	require.NoError(t, err)
	require.Equal(t, obs, p.Observations)
	require.Equal(t, int64(15), f.store.StockOf(2))
}

func TestUpdatePurchaseSupplier(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	p, err := f.svc.Create(ctx, pendingPurchase(1))
	require.NoError(t, err)

	inactive := int64(2)
	_, err = f.svc.Update(ctx, p.ID, UpdatePurchaseRequest{SupplierID: &inactive})
	require.ErrorIs(t, err, shared.ErrInvalidState)

	stored, err := f.svc.Get(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), stored.SupplierID)

	_, err = f.svc.Update(ctx, 404, UpdatePurchaseRequest{SupplierID: &inactive})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

// staleReads drops the newest line from pre-transaction reads, as if the
// lines were replaced between the read and the lock.
type staleReads struct {
	*memoryRepo
}

func (s staleReads) Get(ctx context.Context, id int64) (Purchase, error) {
	p, err := s.memoryRepo.Get(ctx, id)
	if err == nil && len(p.Lines) > 0 {
		p.Lines = p.Lines[:len(p.Lines)-1]
	}
	return p, err
}

func TestStaleLockSetAbortsUpdateAndDelete(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	p, err := f.svc.Create(ctx, CreatePurchaseRequest{
		SupplierID: 1,
		Lines: []LineRequest{
			{ProductID: 1, Quantity: 2, UnitPrice: dec("3.20")},
			{ProductID: 2, Quantity: 4, UnitPrice: dec("0.80")},
		},
	})
	require.NoError(t, err)

	svc := NewService(staleReads{f.repo}, inventory.NewLedger(), coordinator.New(coordinator.Config{}), nil)
	status := shared.StatusCompleted
	_, err = svc.Update(ctx, p.ID, UpdatePurchaseRequest{Status: &status})
	require.ErrorIs(t, err, coordinator.ErrStaleLocks)
	require.Equal(t, int64(10), f.store.StockOf(1))
	require.Equal(t, int64(3), f.store.StockOf(2))

	err = svc.Delete(ctx, p.ID)
	require.ErrorIs(t, err, shared.ErrBusy)
	require.Equal(t, 1, f.repo.count())

	_, err = f.svc.Update(ctx, p.ID, UpdatePurchaseRequest{Status: &status})
	require.NoError(t, err)
	require.Equal(t, int64(12), f.store.StockOf(1))
	require.Equal(t, int64(7), f.store.StockOf(2))
}
