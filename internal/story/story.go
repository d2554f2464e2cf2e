package story

import (
	"context"
	"net/url"

	"golang.org/x/sync/errgroup"
)

// Story is the root of one archived village.
type Story struct {
	Name      string
	VillageID string
	State     VillageState
	Base      *url.URL
	GraveIcon *url.URL
	Periods   []*Period
	Cast      *Cast
}

// New returns an empty story with an empty cast.
func New() *Story {
	return &Story{Cast: NewCast()}
}

// AddPeriod appends p and fixes its index to its position.
func (s *Story) AddPeriod(p *Period) {
	p.Index = len(s.Periods)
	s.Periods = append(s.Periods, p)
}

// PeriodByDay returns the period with the given day number.
func (s *Story) PeriodByDay(day int) (*Period, bool) {
	for _, p := range s.Periods {
		if p.Day == day {
			return p, true
		}
	}
	return nil, false
}

// Prefetch readies every period on up to limit workers. Each period is loaded
// by exactly one worker. It returns the first load error; periods that failed
// stay unready and can be retried.
func (s *Story) Prefetch(ctx context.Context, limit int) error {
	if limit <= 0 {
		limit = 1
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, p := range s.Periods {
		if p.IsReady() {
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return p.Ready()
		})
	}
	return g.Wait()
}
