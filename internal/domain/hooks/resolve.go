// Package hooks turns untrusted oracle output into renderable clip specs.
package hooks

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/forPelevin/hookcut/internal/types"
)

type DurationMode string

const (
	// DurationReject drops candidates whose total length is out of range.
	DurationReject DurationMode = "reject"
	// DurationClamp trims trailing segments of over-long candidates down to
	// MaxTotal. Too-short candidates are still rejected.
	DurationClamp DurationMode = "clamp"
)

type Policy struct {
	MinTotal time.Duration
	// MaxTotal of 0 means no upper bound.
	MaxTotal time.Duration
	Mode     DurationMode
}

func DefaultPolicy() Policy {
	return Policy{MinTotal: 60 * time.Second, MaxTotal: 180 * time.Second, Mode: DurationReject}
}

func (p Policy) Validate() error {
	if p.MinTotal < 0 || p.MaxTotal < 0 {
		return errors.New("hook duration bounds must be >= 0")
	}
	if p.MaxTotal > 0 && p.MaxTotal < p.MinTotal {
		return fmt.Errorf("hook max duration %s is below min %s", p.MaxTotal, p.MinTotal)
	}
	switch p.Mode {
	case "", DurationReject, DurationClamp:
		return nil
	default:
		return fmt.Errorf("unknown hook duration mode %q (want reject or clamp)", p.Mode)
	}
}

type RejectionReason string

const (
	ReasonNoSegments     RejectionReason = "no_segments"
	ReasonInvalidSegment RejectionReason = "invalid_segment"
	ReasonTooShort       RejectionReason = "too_short"
	ReasonTooLong        RejectionReason = "too_long"
)

// Rejection is a candidate that failed validation. Index is its position in
// the oracle batch.
type Rejection struct {
	Index  int
	Reason RejectionReason
	Detail string
}

func (r *Rejection) Error() string {
	if r.Detail == "" {
		return fmt.Sprintf("hook %d rejected: %s", r.Index, r.Reason)
	}
	return fmt.Sprintf("hook %d rejected: %s (%s)", r.Index, r.Reason, r.Detail)
}

// Resolve validates c and promotes it to a ClipSpec without captions. Rules
// run in order and the first failure wins: segments present, every segment
// well-formed, total length within policy, then the score is clamped into
// [0,100]. The returned error is always a *Rejection.
func Resolve(c types.HookCandidate, p Policy) (types.ClipSpec, error) {
	spec, rej := resolve(0, c, p)
	if rej != nil {
		return types.ClipSpec{}, rej
	}
	return spec, nil
}

func resolve(idx int, c types.HookCandidate, p Policy) (types.ClipSpec, *Rejection) {
	if len(c.Segments) == 0 {
		return types.ClipSpec{}, &Rejection{Index: idx, Reason: ReasonNoSegments}
	}

	var total time.Duration
	for i, s := range c.Segments {
		if s.Start < 0 || s.End <= s.Start {
			return types.ClipSpec{}, &Rejection{
				Index:  idx,
				Reason: ReasonInvalidSegment,
				Detail: fmt.Sprintf("segment %d is [%.2fs, %.2fs)", i, s.Start.Seconds(), s.End.Seconds()),
			}
		}
		total += s.Duration()
	}

	segs := append([]types.Segment(nil), c.Segments...)
	if total < p.MinTotal {
		return types.ClipSpec{}, &Rejection{
			Index:  idx,
			Reason: ReasonTooShort,
			Detail: fmt.Sprintf("%.2fs < %.2fs", total.Seconds(), p.MinTotal.Seconds()),
		}
	}
	if p.MaxTotal > 0 && total > p.MaxTotal {
		if p.Mode != DurationClamp {
			return types.ClipSpec{}, &Rejection{
				Index:  idx,
				Reason: ReasonTooLong,
				Detail: fmt.Sprintf("%.2fs > %.2fs", total.Seconds(), p.MaxTotal.Seconds()),
			}
		}
		segs, total = clampSegments(segs, p.MaxTotal)
	}

	return types.ClipSpec{
		Segments:      segs,
		TotalDuration: total,
		ViralityScore: clampScore(c.ViralityScore),
		Type:          c.Type,
		Title:         c.Title,
	}, nil
}

// clampSegments keeps segments in order until budget is used up, cutting the
// last one short.
func clampSegments(segs []types.Segment, budget time.Duration) ([]types.Segment, time.Duration) {
	out := make([]types.Segment, 0, len(segs))
	var total time.Duration
	for _, s := range segs {
		left := budget - total
		if left <= 0 {
			break
		}
		if s.Duration() > left {
			s.End = s.Start + left
		}
		out = append(out, s)
		total += s.Duration()
	}
	return out, total
}

func clampScore(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}

// ResolveAll resolves every candidate independently. Rejected candidates are
// logged and returned alongside the accepted specs; they never stop the batch.
func ResolveAll(cands []types.HookCandidate, p Policy, log *slog.Logger) ([]types.ClipSpec, []*Rejection) {
	if log == nil {
		log = slog.Default()
	}
	var (
		specs    []types.ClipSpec
		rejected []*Rejection
	)
	for i, c := range cands {
		spec, rej := resolve(i, c, p)
		if rej != nil {
			log.Warn("hook rejected", "index", i, "reason", rej.Reason, "detail", rej.Detail)
			rejected = append(rejected, rej)
			continue
		}
		specs = append(specs, spec)
	}
	return specs, rejected
}
