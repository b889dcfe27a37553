package cache

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"net/url"
)

const (
	cartKeyFormat           = "cart:%s"
	productKeyFormat        = "product:%s"
	productListSpace        = "products:list:"
	orderKeyFormat          = "order:%s"
	orderListSpace          = "orders:user:%s:"
	stockDecrementKeyFormat = "stock:decrement:%s"
)

func CartKey(userID string) string { return fmt.Sprintf(cartKeyFormat, userID) }

func ProductKey(productID string) string { return fmt.Sprintf(productKeyFormat, productID) }

// ProductListKey hashes the canonical query string so every paginated or
// filtered listing lands under the products:list: prefix and can be
// invalidated in one sweep.
func ProductListKey(params url.Values) string {
	return productListSpace + hashParams(params)
}

func ProductListPrefix() string { return productListSpace }

func OrderKey(orderID string) string { return fmt.Sprintf(orderKeyFormat, orderID) }

func OrderListKey(userID string, params url.Values) string {
	return OrderListPrefix(userID) + hashParams(params)
}

func OrderListPrefix(userID string) string {
	return fmt.Sprintf(orderListSpace, userID)
}

// StockDecrementKey marks an order's decrement as applied so a
// re-delivered request becomes a no-op.
func StockDecrementKey(orderID string) string {
	return fmt.Sprintf(stockDecrementKeyFormat, orderID)
}

func hashParams(params url.Values) string {
	sum := sha1.Sum([]byte(params.Encode()))
	return hex.EncodeToString(sum[:])
}
