package redisx

import "time"

const (
	// Dedupe shortcut for processed webhooks: webhook:done:{provider_ref}.
	// The database stays authoritative; this only skips work on retries.
	KeyWebhookDone = "webhook:done:%s"

	// Cache of available stock: avail:{product_id} -> int
	KeyAvailable = "avail:%s"
)

var (
	TTLWebhookDone = 48 * time.Hour
	TTLAvailable   = 10 * time.Second
)
