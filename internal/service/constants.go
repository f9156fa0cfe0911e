package service

const (
	// Pagination limits
	SyncActivitiesPerPage = 100
	SyncStreamsBatchSize  = 50
	RecomputeJobsLimit    = 50
	RecomputePageSize     = 200

	// Resolver cache bound; cleared wholesale when exceeded
	ResolverCacheSize = 4096

	// Sync state keys
	SyncStateLastActivitySync = "last_activity_sync"
)

// DefaultRunTypes are the Strava activity types classified into pace zones.
var DefaultRunTypes = []string{"Run", "TrailRun", "VirtualRun", "Treadmill"}
