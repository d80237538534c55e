package constants

import "time"

const (
	ServiceName = "audience-service"
)

const (
	DefaultCollection   = "customers"
	DefaultMongoDBName  = "audience"
	DefaultQueryTimeout = 10 * time.Second
)

const (
	DriverMongoDB  = "mongodb"
	DriverEmbedded = "embedded"
)

const (
	CombinePolicyLegacy  = "legacy"
	CombinePolicyGrouped = "grouped"
)

const (
	ShutdownTimeout     = 5 * time.Second
	StoreConnectTimeout = 30 * time.Second
	HealthCheckTimeout  = 5 * time.Second
	RequestIDHeader     = "X-Request-ID"
	RequestIDContextKey = "request_id"
	MaxRequestBodyBytes = 1 << 20
)

const (
	FieldLastVisit   = "last_visit"
	FieldVisits      = "visits"
	FieldTotalSpends = "total_spends"
)
