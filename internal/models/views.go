package models

// DayActivity is one UTC calendar-day bucket of message activity.
type DayActivity struct {
	Date     string `json:"date"`
	Total    int64  `json:"total"`
	Posts    int64  `json:"posts"`
	Comments int64  `json:"comments"`
}

type TagCount struct {
	Tag   string `json:"tag"`
	Count int64  `json:"count"`
}

// BehaviorDistribution partitions messages by their dominant score.
// PureAgent + HumanControl + Mixed == Total.
type BehaviorDistribution struct {
	PureAgent    int64 `json:"pureAgent"`
	HumanControl int64 `json:"humanControl"`
	Mixed        int64 `json:"mixed"`
	Total        int64 `json:"totalEntries"`
}
