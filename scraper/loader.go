package scraper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"olx-scraper/config"
	"olx-scraper/utils"
)

// OutcomeKind tags the result of one reveal attempt.
type OutcomeKind int

const (
	Grew OutcomeKind = iota
	NoGrowth
	Faulted
)

func (k OutcomeKind) String() string {
	switch k {
	case Grew:
		return "grew"
	case NoGrowth:
		return "no-growth"
	case Faulted:
		return "faulted"
	}
	return fmt.Sprintf("OutcomeKind(%d)", int(k))
}

// Outcome is the result of one reveal attempt. Count is the rendered item
// count after a Grew or NoGrowth attempt; Err is set for Faulted.
type Outcome struct {
	Kind  OutcomeKind
	Count int
	Err   error
}

// LoadSession is the state of one page acquisition.
type LoadSession struct {
	ItemsRendered       int
	ConsecutiveNoGrowth int
	Attempts            int
}

// Apply folds an attempt outcome into the session. Faults count as no growth.
func (s *LoadSession) Apply(o Outcome) {
	s.Attempts++
	if o.Kind == Grew && o.Count > s.ItemsRendered {
		s.ItemsRendered = o.Count
		s.ConsecutiveNoGrowth = 0
		return
	}
	s.ConsecutiveNoGrowth++
}

// StopReason names the bound that ended the reveal loop.
type StopReason string

const (
	StopNoGrowth    StopReason = "no-growth"
	StopMaxAttempts StopReason = "max-attempts"
	StopTimeBudget  StopReason = "time-budget"
)

// LoadResult is the final markup plus how the session ended.
type LoadResult struct {
	HTML    string
	Session LoadSession
	Stop    StopReason
	Elapsed time.Duration
}

// Loader reveals listings by clicking "load more" or scrolling until the
// item count stops growing, the attempt cap is hit or the time budget runs out.
type Loader struct {
	cfg          config.LoadConfig
	itemSelector string
	loadMore     string
	popups       []string
	logger       *utils.Logger

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// NewLoader creates a Loader counting itemSelector and clicking loadMore.
// popups are dismissed opportunistically before each attempt.
func NewLoader(cfg config.LoadConfig, itemSelector, loadMore string, popups []string, logger *utils.Logger) *Loader {
	return &Loader{
		cfg:          cfg,
		itemSelector: itemSelector,
		loadMore:     loadMore,
		popups:       popups,
		logger:       logger,
		sleep:        utils.Sleep,
		now:          time.Now,
	}
}

// Run drives the reveal loop on page and returns the final rendered markup.
// Running out of time budget is not an error. An error is returned only when
// ctx itself is done or the final markup cannot be captured.
func (l *Loader) Run(ctx context.Context, page Page) (*LoadResult, error) {
	start := l.now()
	budgetCtx, cancel := context.WithTimeout(ctx, l.cfg.TimeBudget)
	defer cancel()

	var session LoadSession
	if n, err := page.Count(budgetCtx, l.itemSelector); err == nil {
		session.ItemsRendered = n
	} else {
		l.logger.Warn("[loader] Initial item count failed: %v", err)
	}
	l.logger.Info("[loader] Starting with %d items rendered", session.ItemsRendered)

	var stop StopReason
	for {
		if session.ConsecutiveNoGrowth >= l.cfg.NoGrowthThreshold {
			stop = StopNoGrowth
			break
		}
		if session.Attempts >= l.cfg.MaxAttempts {
			stop = StopMaxAttempts
			break
		}
		if budgetCtx.Err() != nil {
			stop = StopTimeBudget
			break
		}

		o := l.attempt(budgetCtx, page, session.ItemsRendered)
		session.Apply(o)

		switch o.Kind {
		case Grew:
			l.logger.Info("[loader] Attempt %d: %d items rendered", session.Attempts, session.ItemsRendered)
		case NoGrowth:
			l.logger.Debug("[loader] Attempt %d: no growth (%d/%d)",
				session.Attempts, session.ConsecutiveNoGrowth, l.cfg.NoGrowthThreshold)
		case Faulted:
			if budgetCtx.Err() == nil {
				l.logger.Warn("[loader] Attempt %d faulted, counting as no growth: %v", session.Attempts, o.Err)
			}
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("loader: interrupted after %d attempts: %w", session.Attempts, err)
	}

	l.logger.Info("[loader] Stopped (%s) after %d attempts with %d items", stop, session.Attempts, session.ItemsRendered)

	captureCtx, cancelCapture := context.WithTimeout(ctx, l.cfg.CaptureLimit())
	html, err := page.HTML(captureCtx)
	cancelCapture()
	if err != nil {
		return nil, fmt.Errorf("loader: capture html: %w", err)
	}

	return &LoadResult{
		HTML:    html,
		Session: session,
		Stop:    stop,
		Elapsed: l.now().Sub(start),
	}, nil
}

// attempt runs one reveal step and reports what happened to the item count.
func (l *Loader) attempt(ctx context.Context, page Page, prev int) Outcome {
	l.dismissPopups(ctx, page)

	clicked := false
	if l.loadMore != "" {
		clickCtx, cancel := context.WithTimeout(ctx, l.cfg.ClickTimeout)
		ok, err := page.Click(clickCtx, l.loadMore)
		cancel()
		if err != nil {
			l.logger.Debug("[loader] Load-more click failed, scrolling instead: %v", err)
		}
		clicked = ok && err == nil
	}

	if !clicked {
		if err := page.ScrollToBottom(ctx); err != nil {
			return Outcome{Kind: Faulted, Err: err}
		}
	}

	if err := l.sleep(ctx, l.cfg.SettleWait); err != nil {
		return Outcome{Kind: Faulted, Err: err}
	}

	n, err := page.Count(ctx, l.itemSelector)
	if err != nil {
		return Outcome{Kind: Faulted, Err: err}
	}
	if n > prev {
		return Outcome{Kind: Grew, Count: n}
	}
	return Outcome{Kind: NoGrowth, Count: n}
}

func (l *Loader) dismissPopups(ctx context.Context, page Page) {
	for _, sel := range l.popups {
		dismissCtx, cancel := context.WithTimeout(ctx, l.cfg.DismissTimeout)
		ok, err := page.Click(dismissCtx, sel)
		cancel()
		switch {
		case err != nil && !errors.Is(err, context.DeadlineExceeded):
			l.logger.Debug("[loader] Dismiss %q failed: %v", sel, err)
		case ok:
			l.logger.Debug("[loader] Dismissed pop-up %q", sel)
		}
	}
}
