package config

import "time"

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "turfbook"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultPort     = "8080"
	DefaultLogLevel = "info"

	DefaultRateLimitRequests = 30
	DefaultRateLimitWindow   = time.Minute

	DefaultRequestTimeout = 15 * time.Second
	DefaultIdempotencyTTL = 24 * time.Hour
	DefaultMaxRequestSize = 1 << 20 // 1 MiB

	DefaultReadTimeout     = 10 * time.Second
	DefaultWriteTimeout    = 10 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultDefaultHoldMinutes = 10
	DefaultMinHoldMinutes     = 1
	DefaultMaxHoldMinutes     = 60

	DefaultRetryMaxAttempts = 4
	DefaultRetryBaseDelay   = 100 * time.Millisecond
	DefaultRetryMaxJitter   = 50 * time.Millisecond

	DefaultEventsEnabled      = false
	DefaultBookingEventsTopic = "turfbook.booking-events"

	DefaultPaginationLimit = 100
)
