package domain

import "time"

// FrontierEntry is a URL a job has discovered. The set of entries per job is
// kept across attempts so items_found survives a retry.
type FrontierEntry struct {
	JobID        string    `db:"job_id"        json:"job_id"`
	URLHash      string    `db:"url_hash"      json:"url_hash"`
	URL          string    `db:"url"           json:"url"`
	Depth        int       `db:"depth"         json:"depth"`
	DiscoveredAt time.Time `db:"discovered_at" json:"discovered_at"`
}
