package inventory_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/papeleria/papeleria/internal/coordinator"
	"github.com/papeleria/papeleria/internal/inventory"
	"github.com/papeleria/papeleria/internal/inventory/inventorytest"
	"github.com/papeleria/papeleria/internal/shared"
)

func newService(t *testing.T) (*inventory.Service, *inventorytest.Store) {
	t.Helper()
	store := inventorytest.NewStore()
	store.Put(inventory.StockItem{ProductID: 1, Name: "Boligrafo azul", Price: decimal.RequireFromString("0.80"), Stock: 10, MinStock: 5, Active: true})
	return inventory.NewService(store, inventory.NewLedger(), coordinator.New(coordinator.Config{})), store
}

func TestLedgerAdjustRecordsMovement(t *testing.T) {
	store := inventorytest.NewStore()
	store.Put(inventory.StockItem{ProductID: 1, Name: "Goma", Stock: 3, Active: true})
	ledger := inventory.NewLedger()
	ctx := context.Background()

	mv, err := ledger.Adjust(ctx, store, inventory.Adjustment{ProductID: 1, Delta: 5, Type: inventory.MovementPurchase, RefModule: "purchases", RefID: "9"})
	require.NoError(t, err)
	require.Equal(t, int64(8), mv.BalanceAfter)
	require.Equal(t, inventory.MovementPurchase, mv.Type)
	require.Equal(t, int64(8), store.StockOf(1))
	require.Len(t, store.Movements(), 1)
}

func TestLedgerAdjustGuards(t *testing.T) {
	store := inventorytest.NewStore()
	store.Put(inventory.StockItem{ProductID: 1, Name: "Goma", Stock: 3, Active: true})
	ledger := inventory.NewLedger()
	ctx := context.Background()

	_, err := ledger.Adjust(ctx, store, inventory.Adjustment{ProductID: 1, Delta: -4})
	require.ErrorIs(t, err, shared.ErrInsufficientStock)
	var stockErr *shared.StockError
	require.ErrorAs(t, err, &stockErr)
	require.Equal(t, "Goma", stockErr.ProductName)
	require.Equal(t, int64(3), stockErr.Available)
	require.Equal(t, int64(4), stockErr.Requested)
	require.Equal(t, int64(3), store.StockOf(1))

	_, err = ledger.Adjust(ctx, store, inventory.Adjustment{ProductID: 1, Delta: 0})
	require.ErrorIs(t, err, shared.ErrInvalidInput)

	_, err = ledger.Adjust(ctx, store, inventory.Adjustment{ProductID: 99, Delta: 1})
	require.ErrorIs(t, err, shared.ErrNotFound)

	mv, err := ledger.Adjust(ctx, store, inventory.Adjustment{ProductID: 1, Delta: -3})
	require.NoError(t, err)
	require.Zero(t, mv.BalanceAfter)
}

func TestServiceSetStock(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	target := int64(25)
	item, err := svc.SetStock(ctx, 1, inventory.SetStockRequest{Stock: &target})
	require.NoError(t, err)
	require.Equal(t, int64(25), item.Stock)
	require.Equal(t, int64(25), store.StockOf(1))

	moves := store.Movements()
	require.Len(t, moves, 1)
	require.Equal(t, int64(15), moves[0].Qty)

	item, err = svc.SetStock(ctx, 1, inventory.SetStockRequest{Stock: &target})
	require.NoError(t, err)
	require.Equal(t, int64(25), item.Stock)
	require.Len(t, store.Movements(), 1)

	negative := int64(-1)
	_, err = svc.SetStock(ctx, 1, inventory.SetStockRequest{Stock: &negative})
	require.ErrorIs(t, err, shared.ErrInvalidInput)

	_, err = svc.SetStock(ctx, 42, inventory.SetStockRequest{Stock: &target})
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.ErrorIs(t, err, shared.ErrTransactionAborted)
}

func TestServiceAdjustRollsBackOnShortage(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	_, err := svc.Adjust(ctx, inventory.AdjustRequest{ProductID: 1, Delta: -11, Note: "merma"})
	require.ErrorIs(t, err, shared.ErrInsufficientStock)
	require.Equal(t, int64(10), store.StockOf(1))
	require.Empty(t, store.Movements())

	mv, err := svc.Adjust(ctx, inventory.AdjustRequest{ProductID: 1, Delta: -4, Note: " merma "})
	require.NoError(t, err)
	require.Equal(t, int64(6), mv.BalanceAfter)
	require.Equal(t, "merma", mv.Note)

	cards, err := svc.Movements(ctx, inventory.MovementFilter{ProductID: 1})
	require.NoError(t, err)
	require.Len(t, cards, 1)
}

func TestServiceMovementsRequiresProduct(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.Movements(context.Background(), inventory.MovementFilter{})
	require.ErrorIs(t, err, shared.ErrInvalidInput)
}
