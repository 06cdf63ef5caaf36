package api

import (
	"context"
	"net"
	"net/http"
	"slices"
	"strconv"
	"time"

	"projectbank/cmd/internal/auth/backend"
)

type lockoutTier struct {
	Threshold int
	Duration  time.Duration
}

// evaluateWindowThrottle blocks once max failures fall inside window.
// retry is when enough of them age out to drop below max.
func evaluateWindowThrottle(now time.Time, failures []time.Time, max int, window time.Duration) (bool, time.Duration) {
	if max <= 0 || window <= 0 {
		return false, 0
	}
	cut := now.Add(-window)
	inWindow := make([]time.Time, 0, len(failures))
	for _, f := range failures {
		if f.After(cut) && !f.After(now) {
			inWindow = append(inWindow, f)
		}
	}
	if len(inWindow) < max {
		return false, 0
	}
	slices.SortFunc(inWindow, func(a, b time.Time) int { return a.Compare(b) })

	retry := inWindow[len(inWindow)-max].Add(window).Sub(now)
	if retry <= 0 {
		return false, 0
	}
	return true, retry
}

// evaluateProgressiveLockout applies the highest tier whose threshold is met.
// The lock runs from the most recent failure.
func evaluateProgressiveLockout(now time.Time, failures []time.Time, tiers []lockoutTier) (bool, time.Duration) {
	if len(failures) == 0 || len(tiers) == 0 {
		return false, 0
	}
	tiers = slices.Clone(tiers)
	slices.SortFunc(tiers, func(a, b lockoutTier) int { return b.Threshold - a.Threshold })

	latest := failures[0]
	for _, f := range failures[1:] {
		if f.After(latest) {
			latest = f
		}
	}

	for _, t := range tiers {
		if t.Threshold <= 0 || len(failures) < t.Threshold {
			continue
		}
		retry := latest.Add(t.Duration).Sub(now)
		if retry <= 0 {
			return false, 0
		}
		return true, retry
	}
	return false, 0
}

func ipKey(ip net.IP) string       { return "ip:" + ip.String() }
func emailKey(email string) string { return "email:" + email }

// checkLoginThrottle reports whether a login from ip for email must wait.
func (h *Handler) checkLoginThrottle(ctx context.Context, ip net.IP, email string, now time.Time) (bool, time.Duration, error) {
	if ip != nil {
		failures, err := h.failures.Recent(ctx, ipKey(ip), now.Add(-h.cfg.LoginIPWindow))
		if err != nil {
			return false, 0, err
		}
		if blocked, retry := evaluateWindowThrottle(now, failures, h.cfg.LoginIPMax, h.cfg.LoginIPWindow); blocked {
			return true, retry, nil
		}
	}
	if email != "" {
		failures, err := h.failures.Recent(ctx, emailKey(email), now.Add(-h.cfg.LoginEmailWindow))
		if err != nil {
			return false, 0, err
		}
		if blocked, retry := evaluateProgressiveLockout(now, failures, h.cfg.lockoutTiers()); blocked {
			return true, retry, nil
		}
	}
	return false, 0, nil
}

func (h *Handler) recordLoginFailure(ctx context.Context, ip net.IP, email string, now time.Time) {
	if ip != nil {
		if err := h.failures.Record(ctx, ipKey(ip), now); err != nil {
			h.log.Warn("auth.login.throttle_record.fail", "err", err)
		}
	}
	if email != "" {
		if err := h.failures.Record(ctx, emailKey(email), now); err != nil {
			h.log.Warn("auth.login.throttle_record.fail", "err", err)
		}
	}
}

func writeRateLimited(w http.ResponseWriter, retryAfter time.Duration) {
	if retryAfter > 0 {
		secs := int64((retryAfter + time.Second - 1) / time.Second)
		w.Header().Set("Retry-After", strconv.FormatInt(secs, 10))
	}
	writeError(w, http.StatusTooManyRequests, backend.CodeRateLimited, backend.MsgRateLimited)
}
