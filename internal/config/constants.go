package config

import "time"

// Spam detection
const (
	RateWindow       = 60 * time.Second
	RateThreshold    = 6
	RateCooldown     = 5 * time.Minute
	StaffReplyGrace  = 5 * time.Second
	RateSweepPeriod  = time.Minute
	DedupCapacity    = 100
	StaffAlertMaxLen = 1000
)

// Ticket threads
const (
	ThreadAutoArchiveMinutes = 1440
	ThreadNamePrefix         = "📩 "
	CloseButtonPrefix        = "closeticket_"
)

// HTTP server timeouts
const (
	ServerRequestTimeout  = 10 * time.Second
	ServerReadTimeout     = 15 * time.Second
	ServerIdleTimeout     = 120 * time.Second
	ServerShutdownTimeout = 10 * time.Second
)

// Database connection pool settings
const (
	DBMaxOpenConns    = 5
	DBMaxIdleConns    = 2
	DBConnMaxLifetime = 5 * time.Minute
)

// External calls
const (
	DefaultEventTimeout = 30 * time.Second
	DBPingTimeout       = 5 * time.Second
	AttachmentMaxBytes  = 25 << 20
)
