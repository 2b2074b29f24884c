package githubapi

import (
	"net/http"
	"strconv"
	"time"
)

// Rate-limit decision reasons.
const (
	ReasonNoHeaders      = "no_rate_headers"
	ReasonWithinBudget   = "within_budget"
	ReasonResetElapsed   = "reset_elapsed"
	ReasonBudgetLow      = "remaining_below_threshold"
	ReasonSecondaryLimit = "secondary_limit"
)

// Rate-limit resources reported by GitHub.
const (
	ResourceGraphQL = "graphql"
	ResourceCore    = "core"
)

// RateLimitHeaders contains parsed GitHub rate-limit response headers.
//
// GraphQL and REST calls draw from separate budgets; Resource names the one a
// response was charged to. GraphQL budgets are counted in query points.
type RateLimitHeaders struct {
	Resource         string
	Limit            int
	Remaining        int
	Used             int
	ResetUnix        int64
	RetryAfter       time.Duration
	SecondaryLimited bool
	// Present is false when the response carried no X-RateLimit-Remaining header.
	Present bool
}

// ResetAt returns the time the budget refills, or the zero time when unknown.
func (h RateLimitHeaders) ResetAt() time.Time {
	if h.ResetUnix <= 0 {
		return time.Time{}
	}
	return time.Unix(h.ResetUnix, 0)
}

// Exhausted reports whether the response spent the last unit of its budget.
func (h RateLimitHeaders) Exhausted() bool {
	return h.Present && h.Remaining <= 0
}

// Decision represents a rate-limit action decision.
type Decision struct {
	Allow   bool
	WaitFor time.Duration
	Reason  string
}

// RateLimitPolicy decides whether the next request may go out immediately.
type RateLimitPolicy struct {
	MinRemainingThreshold int
	MinResetBuffer        time.Duration
	SecondaryLimitBackoff time.Duration
	Now                   func() time.Time
}

// ParseRateLimitHeaders parses rate-limit and retry headers.
//
// A 429, or a 403 carrying Retry-After, marks a secondary (abuse) limit.
func ParseRateLimitHeaders(header http.Header, statusCode int) RateLimitHeaders {
	parsed := RateLimitHeaders{
		Resource: header.Get("X-RateLimit-Resource"),
		Limit:    parseInt(header.Get("X-RateLimit-Limit")),
		Used:     parseInt(header.Get("X-RateLimit-Used")),
	}
	if raw := header.Get("X-RateLimit-Remaining"); raw != "" {
		if remaining, err := strconv.Atoi(raw); err == nil {
			parsed.Remaining = remaining
			parsed.Present = true
		}
	}
	parsed.ResetUnix = parseInt64(header.Get("X-RateLimit-Reset"))

	if seconds := parseInt(header.Get("Retry-After")); seconds > 0 {
		parsed.RetryAfter = time.Duration(seconds) * time.Second
	}

	switch {
	case statusCode == http.StatusTooManyRequests:
		parsed.SecondaryLimited = true
	case statusCode == http.StatusForbidden && parsed.RetryAfter > 0:
		parsed.SecondaryLimited = true
	}
	return parsed
}

// Evaluate decides whether calls may continue or should pause.
func (p RateLimitPolicy) Evaluate(headers RateLimitHeaders) Decision {
	now := time.Now()
	if p.Now != nil {
		now = p.Now()
	}

	if headers.SecondaryLimited {
		waitFor := max(p.SecondaryLimitBackoff, headers.RetryAfter)
		return Decision{Allow: false, WaitFor: waitFor, Reason: ReasonSecondaryLimit}
	}
	if !headers.Present {
		return Decision{Allow: true, Reason: ReasonNoHeaders}
	}
	if headers.Remaining >= p.MinRemainingThreshold {
		return Decision{Allow: true, Reason: ReasonWithinBudget}
	}

	resetAt := headers.ResetAt()
	if !resetAt.After(now) {
		return Decision{Allow: true, Reason: ReasonResetElapsed}
	}
	return Decision{
		Allow:   false,
		WaitFor: resetAt.Sub(now) + p.MinResetBuffer,
		Reason:  ReasonBudgetLow,
	}
}

func parseInt(raw string) int {
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return parsed
}

func parseInt64(raw string) int64 {
	parsed, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return parsed
}
