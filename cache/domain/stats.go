package domain

// Stats é um retrato dos contadores do Manager.
type Stats struct {
	MemoryHits  int64 `json:"memory_hits"`
	RedisHits   int64 `json:"redis_hits"`
	Misses      int64 `json:"misses"`
	Fetches     int64 `json:"fetches"`
	Coalesced   int64 `json:"coalesced"`
	FetchErrors int64 `json:"fetch_errors"`
	StaleServed int64 `json:"stale_served"`

	Entries int   `json:"entries"`
	Bytes   int64 `json:"bytes"`
}
