package types

import "time"

// CollectionStats counts what happened while records were merged into the
// session registry.
type CollectionStats struct {
	StartTime         time.Time `json:"start_time"`
	LastUpdate        time.Time `json:"last_update"`
	RecordsSeen       int64     `json:"records_seen"`
	SessionsInserted  int64     `json:"sessions_inserted"`
	SessionsCompleted int64     `json:"sessions_completed"`
	PartialsDiscarded int64     `json:"partials_discarded"`
	Duplicates        int64     `json:"duplicates"`
	OpenSessions      int       `json:"open_sessions"`
	Users             int       `json:"users"`
}
