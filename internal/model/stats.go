package model

// HistoryStats aggregates a user's notification history.
type HistoryStats struct {
	Total        int64            `json:"total"`
	Unread       int64            `json:"unread"`
	ByEventType  map[string]int64 `json:"by_event_type"`
	ByChannel    map[string]int64 `json:"by_channel"`
	Last24Hours  int64            `json:"last_24_hours"`
	Last7Days    int64            `json:"last_7_days"`
	Last30Days   int64            `json:"last_30_days"`
}

// ChannelHealthReport summarizes one channel's delivery health over the
// trailing 24 hours, derived from the channel audit log.
type ChannelHealthReport struct {
	Channel     string   `json:"channel"`
	Healthy     bool     `json:"healthy"`
	NoTraffic   bool     `json:"no_traffic"`
	Attempts    int64    `json:"attempts"`
	Successes   int64    `json:"successes"`
	SuccessRate float64  `json:"success_rate"`
	Issues      []string `json:"issues,omitempty"`
}
