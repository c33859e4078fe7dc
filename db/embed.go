// Package db embeds the SQL schema of the kart service.
package db

import _ "embed"

// Schema creates the products, coupons, orders and order_items tables. It is
// idempotent.
//
//go:embed migrations/001_schema.sql
var Schema string
