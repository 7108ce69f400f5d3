package ports

import "time"

const (
	DefaultSyncInterval   = 5 * time.Minute // Background reconciliation period when not configured
	MaxConcurrentSyncs    = 8               // Users reconciled in parallel by the background worker
	ProviderClientTimeout = 10 * time.Second
)
