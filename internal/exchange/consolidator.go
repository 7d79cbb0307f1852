package exchange

import (
	"time"

	"chikoubot-go/internal/signal"
)

// Consolidator folds fine-grained bars into fixed periods. Periods that divide a
// day start on UTC midnight.
// It is not safe for concurrent use.
type Consolidator struct {
	period time.Duration
	cur    signal.Bar
	open   bool
	last   time.Time // end of the newest emitted period
}

// NewConsolidator aggregates into bars of the given period.
func NewConsolidator(period time.Duration) *Consolidator {
	if period <= 0 {
		period = defaultInterval
	}
	return &Consolidator{period: period}
}

// Period returns the output bar period.
func (c *Consolidator) Period() time.Duration { return c.period }

// periodEnd returns the boundary closing the period that contains end.
func (c *Consolidator) periodEnd(end time.Time) time.Time {
	boundary := end.Truncate(c.period)
	if boundary.Before(end) {
		boundary = boundary.Add(c.period)
	}
	return boundary
}

// Update folds one input bar. It returns the bars completed by it: the previous
// period when bar opens a new one, and the current period when bar ends exactly on
// its boundary. Bars older than the open period are dropped.
func (c *Consolidator) Update(bar signal.Bar) []signal.Bar {
	end := c.periodEnd(bar.End)
	if !c.last.IsZero() && !end.After(c.last) {
		return nil
	}

	var done []signal.Bar
	if c.open {
		switch {
		case end.Before(c.cur.End):
			return nil
		case end.After(c.cur.End):
			c.cur.Closed = true
			done = append(done, c.cur)
			c.open, c.last = false, c.cur.End
		}
	}

	if !c.open {
		c.cur = signal.Bar{
			Symbol: bar.Symbol,
			Open:   bar.Open,
			High:   bar.High,
			Low:    bar.Low,
			Close:  bar.Close,
			Volume: bar.Volume,
			End:    end,
		}
		c.open = true
	} else {
		c.cur.High = max(c.cur.High, bar.High)
		c.cur.Low = min(c.cur.Low, bar.Low)
		c.cur.Close = bar.Close
		c.cur.Volume += bar.Volume
	}

	if bar.End.Equal(end) {
		c.cur.Closed = true
		done = append(done, c.cur)
		c.open, c.last = false, c.cur.End
	}
	return done
}

// Flush returns the open partial period, if any, with Closed unset.
func (c *Consolidator) Flush() (signal.Bar, bool) {
	if !c.open {
		return signal.Bar{}, false
	}
	c.open = false
	bar := c.cur
	bar.Closed = false
	return bar, true
}
