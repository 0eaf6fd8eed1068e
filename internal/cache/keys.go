package cache

import "strings"

const earningsPrefix = "affiliate:earnings:"

// KeyResellerEarnings returns the cache key holding a reseller's earnings report.
func KeyResellerEarnings(resellerID string) string {
	return earningsPrefix + strings.ToLower(strings.TrimSpace(resellerID))
}
