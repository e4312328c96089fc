package shared

import "fmt"

// StockLockKey builds redis keys guarding a product's stock counter.
func StockLockKey(productID int64) string {
	return fmt.Sprintf("stock:product:%d:lock", productID)
}
