package probe

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/MrSnakeDoc/switchboard/internal/clash"
	"github.com/MrSnakeDoc/switchboard/internal/domain"
	"github.com/MrSnakeDoc/switchboard/internal/limiter"
	"github.com/MrSnakeDoc/switchboard/internal/sources/sites"
)

// ProbeSites measures group against each site. The daemon routes the
// request through the group's current selection. Results are returned in
// site order and are not written to the store.
func (s *Scheduler) ProbeSites(ctx context.Context, group string, list []sites.Site, timeout time.Duration) []domain.SiteResult {
	if timeout <= 0 {
		timeout = s.timeout
	}

	futures := make([]*limiter.Future[domain.SiteResult], len(list))
	for i, site := range list {
		futures[i] = limiter.Submit(ctx, s.limiter, func(ctx context.Context) (domain.SiteResult, error) {
			return s.measureSite(ctx, group, site, timeout), nil
		})
	}

	out := make([]domain.SiteResult, len(list))
	var wg sync.WaitGroup
	for i, f := range futures {
		wg.Add(1)
		go func(i int, f *limiter.Future[domain.SiteResult]) {
			defer wg.Done()
			res, err := f.Wait(ctx)
			if err != nil {
				res = domain.SiteResult{
					Site:    list[i].Name,
					URL:     list[i].URL,
					Outcome: domain.OutcomeError,
					Reason:  err.Error(),
				}
			}
			out[i] = res
		}(i, f)
	}
	wg.Wait()
	return out
}

func (s *Scheduler) measureSite(ctx context.Context, group string, site sites.Site, timeout time.Duration) domain.SiteResult {
	res := domain.SiteResult{Site: site.Name, URL: site.URL}

	delay, err := s.prober.ProxyDelay(ctx, group, site.URL, timeout)
	switch {
	case errors.Is(err, clash.ErrTimeout) || errors.Is(err, context.DeadlineExceeded):
		res.Outcome = domain.OutcomeTimeout
		res.Reason = err.Error()
	case err != nil:
		res.Outcome = domain.OutcomeError
		res.Reason = err.Error()
	case delay <= 0:
		res.Outcome = domain.OutcomeTimeout
	default:
		res.Outcome = domain.OutcomeSuccess
		res.LatencyMs = delay
	}
	return res
}
