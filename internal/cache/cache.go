package cache

import "fmt"

// Key builds the composite cache key for a resolved price.
func Key(token, network string, ts int64) string {
	return fmt.Sprintf("price:%s:%s:%d", token, network, ts)
}

// entryPayload is the JSON value stored under a price key.
type entryPayload struct {
	Price  float64 `json:"price"`
	Source string  `json:"source"`
}
