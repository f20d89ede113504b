package series

import (
	"fmt"
	"time"
)

// Timeframe represents different chart timeframes.
type Timeframe string

const (
	TF1m  Timeframe = "1m"
	TF5m  Timeframe = "5m"
	TF15m Timeframe = "15m"
	TF1h  Timeframe = "1h"
	TF4h  Timeframe = "4h"
	TF1d  Timeframe = "1d"
)

// Duration returns the bar interval of the timeframe.
func (tf Timeframe) Duration() (time.Duration, error) {
	switch tf {
	case TF1m:
		return time.Minute, nil
	case TF5m:
		return 5 * time.Minute, nil
	case TF15m:
		return 15 * time.Minute, nil
	case TF1h:
		return time.Hour, nil
	case TF4h:
		return 4 * time.Hour, nil
	case TF1d:
		return 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("unknown timeframe %q", tf)
	}
}

// Aggregate rolls a fine-grained series up into a coarser timeframe. Buckets
// are aligned to the unix epoch; buckets with no bars are simply absent, so
// gaps in the input stay gaps in the output.
func Aggregate(s *Series, tf Timeframe) (*Series, error) {
	step, err := tf.Duration()
	if err != nil {
		return nil, err
	}
	if s.Len() == 0 {
		return nil, ErrEmpty
	}

	var out []Bar
	var cur *Bar
	var curBucket time.Time
	for i := 0; i < s.Len(); i++ {
		b := s.At(i)
		bucket := b.Time.Truncate(step)
		if cur == nil || !bucket.Equal(curBucket) {
			if cur != nil {
				out = append(out, *cur)
			}
			nb := Bar{Time: bucket, Open: b.Open, High: b.High, Low: b.Low, Close: b.Close, Volume: b.Volume}
			cur = &nb
			curBucket = bucket
			continue
		}
		if b.High > cur.High {
			cur.High = b.High
		}
		if b.Low < cur.Low {
			cur.Low = b.Low
		}
		cur.Close = b.Close
		cur.Volume += b.Volume
	}
	if cur != nil {
		out = append(out, *cur)
	}
	return New(out)
}

// PreviousDayLevels returns the high and low of the last completed day
// before t in a daily series. ok is false when no prior day exists yet.
func PreviousDayLevels(daily *Series, t time.Time) (pdh, pdl float64, ok bool) {
	if daily == nil || daily.Len() == 0 {
		return 0, 0, false
	}
	dayStart := t.Truncate(24 * time.Hour)
	i := daily.IndexAtOrBefore(dayStart.Add(-time.Nanosecond))
	if i < 0 {
		return 0, 0, false
	}
	return daily.High(i), daily.Low(i), true
}
