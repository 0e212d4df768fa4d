package util

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// TimeAsUnixMilli is stored as an UNIX timestamp in milliseconds but used as
// a time.Time
type TimeAsUnixMilli time.Time

func NewTimeAsUnixMilli(t time.Time) TimeAsUnixMilli {
	return TimeAsUnixMilli(time.UnixMilli(t.UnixMilli()))
}

func (t TimeAsUnixMilli) Value() (driver.Value, error) {
	return driver.Value(time.Time(t).UnixMilli()), nil
}

func (t TimeAsUnixMilli) Time() time.Time {
	return time.Time(t)
}

func (t *TimeAsUnixMilli) Scan(src interface{}) error {
	switch src := src.(type) {
	case []byte:
		tmp, err := strconv.ParseInt(string(src), 10, 64)
		if err != nil {
			return err
		}

		*t = TimeAsUnixMilli(time.UnixMilli(tmp))
	case int64:
		*t = TimeAsUnixMilli(time.UnixMilli(src))
	default:
		return fmt.Errorf("expected []byte or int64, got %T", src)
	}

	return nil
}

func (t TimeAsUnixMilli) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Time().UTC())
}

func (t *TimeAsUnixMilli) UnmarshalJSON(b []byte) error {
	var tmp time.Time
	if err := json.Unmarshal(b, &tmp); err != nil {
		return err
	}

	*t = TimeAsUnixMilli(tmp)
	return nil
}
