package models

import (
	"encoding/json"
	"fmt"
	"time"
)

type BatchSummary struct {
	BatchId   string        `json:"batchId"`
	SourceUrl string        `json:"sourceUrl"`
	ItemCount int64         `json:"itemCount"`
	CreatedAt AggregateTime `gorm:"column:created_at" json:"createdAt"`
}

type PartitionSummary struct {
	Ano      string `json:"ano"`
	Total    int64  `json:"total"`
	Synced   int64  `json:"synced"`
	Complete bool   `json:"complete"`
}

type BatchStatus struct {
	Total       int64 `json:"total"`
	Pending     int64 `json:"pending"`
	Synced      int64 `json:"synced"`
	AllComplete bool  `json:"allComplete"`
}

// AggregateTime scans MAX()/MIN() of timestamp columns, which sqlite returns as text.
type AggregateTime time.Time

var aggregateTimeLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// Scan implements the sql.Scanner interface
func (t *AggregateTime) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*t = AggregateTime(time.Time{})
		return nil
	case time.Time:
		*t = AggregateTime(v)
		return nil
	case []byte:
		return t.parse(string(v))
	case string:
		return t.parse(v)
	default:
		return fmt.Errorf("cannot convert %T to AggregateTime", value)
	}
}

func (t *AggregateTime) parse(s string) error {
	for _, layout := range aggregateTimeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			*t = AggregateTime(parsed)
			return nil
		}
	}
	return fmt.Errorf("cannot parse %q as time", s)
}

func (t AggregateTime) Time() time.Time {
	return time.Time(t)
}

func (t AggregateTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Time(t))
}
