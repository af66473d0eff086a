// orchestrator.go - Provider selection, dispatch and outcome recording

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/bosocmputer/receipt_vision_ocr/internal/ai"
	"github.com/bosocmputer/receipt_vision_ocr/internal/cleanser"
	"github.com/bosocmputer/receipt_vision_ocr/internal/common"
	"github.com/bosocmputer/receipt_vision_ocr/internal/health"
	"github.com/bosocmputer/receipt_vision_ocr/internal/metrics"
	"github.com/bosocmputer/receipt_vision_ocr/internal/processor"
	"github.com/bosocmputer/receipt_vision_ocr/internal/ratelimit"
	"github.com/bosocmputer/receipt_vision_ocr/internal/receipt"
	"github.com/bosocmputer/receipt_vision_ocr/internal/storage"
)

// shortRateWait is the longest rate-window wait worth blocking on before
// moving to the next candidate.
const shortRateWait = 5 * time.Second

// ComplexityClassifier decides whether a request gets the longer timeout
type ComplexityClassifier func(req *receipt.ExtractionRequest) bool

// complexKeywords are filename hints for large multi-item receipts
var complexKeywords = []string{
	"costco", "tesco", "walmart", "sainsbury", "aldi", "lidl",
	"carrefour", "wholesale", "hypermarket",
}

const complexSizeBytes = 4 << 20

// DefaultClassifier flags large-chain filenames and big images as complex
func DefaultClassifier(req *receipt.ExtractionRequest) bool {
	name := strings.ToLower(req.Filename)
	for _, kw := range complexKeywords {
		if strings.Contains(name, kw) {
			return true
		}
	}
	return len(req.Image) > complexSizeBytes
}

// Options tunes one orchestrator instance
type Options struct {
	Preprocess      processor.Options
	DefaultTimeout  time.Duration
	ComplexTimeout  time.Duration
	CacheEnabled    bool
	CacheByProvider bool // namespace cache keys by provider name
	MaxConcurrent   int64
	Classifier      ComplexityClassifier
}

// Orchestrator drives one extraction end to end: preprocessing, cache,
// admission control, provider fan-out, merge, rescue and cleansing.
type Orchestrator struct {
	providers map[string]ai.VisionProvider
	order     []string // configured attempt order: primary then fallbacks
	health    *health.Tracker
	gate      *ratelimit.RateGate
	cache     storage.ResultCache
	usage     *metrics.UsageTracker
	cleanser  *cleanser.Cleanser
	sem       *semaphore.Weighted
	opts      Options
}

// New wires an orchestrator from its shared components.
func New(
	providers map[string]ai.VisionProvider,
	order []string,
	healthTracker *health.Tracker,
	gate *ratelimit.RateGate,
	cache storage.ResultCache,
	usage *metrics.UsageTracker,
	clean *cleanser.Cleanser,
	opts Options,
) *Orchestrator {
	if opts.DefaultTimeout <= 0 {
		opts.DefaultTimeout = 60 * time.Second
	}
	if opts.ComplexTimeout <= 0 {
		opts.ComplexTimeout = 150 * time.Second
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 8
	}
	if opts.Classifier == nil {
		opts.Classifier = DefaultClassifier
	}

	return &Orchestrator{
		providers: providers,
		order:     order,
		health:    healthTracker,
		gate:      gate,
		cache:     cache,
		usage:     usage,
		cleanser:  clean,
		sem:       semaphore.NewWeighted(opts.MaxConcurrent),
		opts:      opts,
	}
}

// Extract processes one receipt image and returns the cleansed result.
// Failure modes: *RateLimitedError when the global window is full, or
// *ExhaustionError when every candidate failed or was unavailable.
func (o *Orchestrator) Extract(ctx context.Context, req *receipt.ExtractionRequest) (*receipt.ExtractionResult, error) {
	reqCtx := common.NewRequestContext(req.Filename)
	start := time.Now()

	if err := o.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("extraction slot unavailable: %w", err)
	}
	defer o.sem.Release(1)

	reqCtx.StartStep("prepare_image")
	prep, err := processor.Prepare(req.Image, o.opts.Preprocess)
	if err != nil {
		reqCtx.EndStep("failed", nil, err)
		return nil, fmt.Errorf("image preparation failed: %w", err)
	}
	if req.HighFidelity {
		forceHighDetail(prep)
	}
	reqCtx.EndStep("success", nil, nil)
	reqCtx.LogInfo("🧩 Prepared %d segment(s), lighting: %s, detail: %s", len(prep.Segments), prep.Lighting, prep.Detail)

	candidates, unavailable := o.candidates(req.PreferredProvider)

	if o.cache != nil && o.opts.CacheEnabled {
		reqCtx.StartStep("cache_lookup")
		if cached, ok := o.cacheLookup(ctx, prep.Hash, candidates); ok {
			metrics.CacheLookups.WithLabelValues("hit").Inc()
			reqCtx.EndStep("success", nil, nil)
			reqCtx.LogInfo("🎯 Cache hit, no provider contacted")

			// Return a copy so the cached entry is never mutated
			out := *cached
			out.Metadata.CacheHit = true
			out.Metadata.ElapsedMs = time.Since(start).Milliseconds()
			return &out, nil
		}
		metrics.CacheLookups.WithLabelValues("miss").Inc()
		reqCtx.EndStep("success", nil, nil)
	}

	if len(candidates) == 0 {
		reqCtx.LogError("No available providers, request fails without any network call")
		return nil, &ExhaustionError{Attempts: unavailable}
	}

	if err := o.admitGlobal(ctx, reqCtx); err != nil {
		return nil, err
	}

	timeout := o.opts.DefaultTimeout
	if o.opts.Classifier(req) {
		timeout = o.opts.ComplexTimeout
		reqCtx.LogInfo("🧮 Request classified complex, timeout %s", timeout)
	}

	attempts := append([]AttemptFailure{}, unavailable...)
	var attempted []string

	for _, name := range candidates {
		provider := o.providers[name]

		if !o.admitProvider(ctx, name, reqCtx) {
			reqCtx.LogWarning("Provider %s rate window full, skipping", name)
			attempts = append(attempts, AttemptFailure{Provider: name, Reason: "rate_limited"})
			continue
		}

		attempted = append(attempted, name)
		attemptStart := time.Now()

		reqCtx.StartStep("provider_extract")
		raw, usage, err := o.attempt(ctx, provider, prep.Segments, timeout, reqCtx)
		latency := time.Since(attemptStart)

		if err != nil {
			reqCtx.EndStep("failed", usage, err)
			o.health.RecordFailure(name)
			o.usage.Record(name, false, latency, usageCost(usage))
			attempts = append(attempts, AttemptFailure{Provider: name, Reason: failureReason(err)})
			reqCtx.LogWarning("Provider %s failed (%s), moving to next candidate", name, failureReason(err))
			continue
		}
		reqCtx.EndStep("success", usage, nil)

		totalUsage := common.TokenUsage{}
		totalUsage.Add(usage)

		if needsRescue(raw) {
			reqCtx.StartStep("rescue_pass")
			rescueUsage := o.rescue(ctx, provider, prep.Segments, raw, reqCtx)
			reqCtx.EndStep("success", rescueUsage, nil)
			totalUsage.Add(rescueUsage)
		}

		o.health.RecordSuccess(name)
		o.usage.Record(name, true, latency, totalUsage.CostUSD)

		reqCtx.StartStep("cleanse_and_score")
		result := o.cleanser.Cleanse(raw, reqCtx)
		reqCtx.EndStep("success", nil, nil)

		result.Metadata = receipt.Metadata{
			ProviderUsed:       name,
			AttemptedProviders: attempted,
			ElapsedMs:          time.Since(start).Milliseconds(),
			CostEstimateUSD:    totalUsage.CostUSD,
			SegmentCount:       len(prep.Segments),
			TotalTokens:        totalUsage.TotalTokens,
			FallbackUsed:       len(attempted) > 1,
		}

		if o.cache != nil && o.opts.CacheEnabled {
			o.cache.Set(ctx, o.cacheKey(prep.Hash, name), result)
		}

		reqCtx.GetSummary()
		return result, nil
	}

	reqCtx.LogError("All candidates exhausted")
	return nil, &ExhaustionError{Attempts: attempts}
}

// candidates builds the ordered attempt list: preferred provider first,
// then the configured order, deduplicated. Providers whose breaker is
// open are dropped and reported separately. The available remainder is
// stable-sorted by recent average latency; unknown providers sort last.
func (o *Orchestrator) candidates(preferred string) ([]string, []AttemptFailure) {
	seen := make(map[string]bool)
	var ordered []string

	appendName := func(name string) {
		if name == "" || seen[name] {
			return
		}
		if _, exists := o.providers[name]; !exists {
			return
		}
		seen[name] = true
		ordered = append(ordered, name)
	}

	appendName(preferred)
	for _, name := range o.order {
		appendName(name)
	}

	var available []string
	var unavailable []AttemptFailure
	for _, name := range ordered {
		if o.health.IsAvailable(name) {
			available = append(available, name)
		} else {
			unavailable = append(unavailable, AttemptFailure{Provider: name, Reason: "unavailable"})
		}
	}

	sort.SliceStable(available, func(i, j int) bool {
		li, iKnown := o.usage.AvgLatency(available[i])
		lj, jKnown := o.usage.AvgLatency(available[j])
		if iKnown != jKnown {
			return iKnown
		}
		if !iKnown {
			return false
		}
		return li < lj
	})

	return available, unavailable
}

// attempt dispatches all segments to one provider concurrently and merges
// the results by segment index. The attempt timeout cancels only this
// candidate's in-flight calls.
func (o *Orchestrator) attempt(ctx context.Context, provider ai.VisionProvider, segments []processor.ImageSegment, timeout time.Duration, reqCtx *common.RequestContext) (*ai.RawExtraction, *common.TokenUsage, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	results := make([]*ai.RawExtraction, len(segments))
	usages := make([]*common.TokenUsage, len(segments))

	reqCtx.StartSubStep("segment_dispatch")
	g, gctx := errgroup.WithContext(attemptCtx)
	for i, seg := range segments {
		g.Go(func() error {
			schema := ai.SchemaItemsOnly
			if seg.Index == 0 {
				schema = ai.SchemaFull
			}

			// Each segment call carries its own timer under the attempt context
			callCtx, cancel := context.WithTimeout(gctx, timeout)
			defer cancel()

			raw, usage, err := provider.Extract(callCtx, seg, schema, reqCtx)
			if err != nil {
				return err
			}
			results[i] = raw
			usages[i] = usage
			return nil
		})
	}

	err := g.Wait()
	total := sumUsages(usages)
	if err != nil {
		reqCtx.EndSubStep("")
		return nil, total, err
	}
	reqCtx.EndSubStep(fmt.Sprintf("%d segment(s)", len(segments)))

	reqCtx.StartSubStep("merge_segments")
	merged := mergeSegments(results)
	reqCtx.EndSubStep(fmt.Sprintf("%d line item(s)", len(merged.LineItems)))

	return merged, total, nil
}

// rescue issues one cheap totals-only call against the last segment.
// A rescue failure is logged and swallowed; the merged result stands.
func (o *Orchestrator) rescue(ctx context.Context, provider ai.VisionProvider, segments []processor.ImageSegment, raw *ai.RawExtraction, reqCtx *common.RequestContext) *common.TokenUsage {
	last := segments[len(segments)-1]

	rescueCtx, cancel := context.WithTimeout(ctx, o.opts.DefaultTimeout)
	defer cancel()

	reqCtx.StartSubStep("rescue_call")
	rescued, usage, err := provider.Extract(rescueCtx, last, ai.SchemaRescue, reqCtx)
	reqCtx.EndSubStep("")
	if err != nil {
		reqCtx.LogWarning("Rescue pass failed, keeping merged values: %v", err)
		return usage
	}

	applyRescue(raw, rescued)
	return usage
}

// admitGlobal enforces the cross-provider window. Short waits are slept
// through once; longer waits surface as a retryable error.
func (o *Orchestrator) admitGlobal(ctx context.Context, reqCtx *common.RequestContext) error {
	if o.gate.Admit(ratelimit.GlobalScope) {
		return nil
	}

	wait := o.gate.WaitTime(ratelimit.GlobalScope)
	if wait > shortRateWait {
		reqCtx.LogWarning("Global rate window full, retry after %s", wait.Round(time.Millisecond))
		return &RateLimitedError{Scope: ratelimit.GlobalScope, RetryAfter: wait}
	}

	reqCtx.LogInfo("⏳ Global rate window full, waiting %s", wait.Round(time.Millisecond))
	if err := sleepCtx(ctx, wait); err != nil {
		return err
	}
	if o.gate.Admit(ratelimit.GlobalScope) {
		return nil
	}
	return &RateLimitedError{Scope: ratelimit.GlobalScope, RetryAfter: o.gate.WaitTime(ratelimit.GlobalScope)}
}

// admitProvider enforces one provider's window: wait-and-retry once for
// short waits, otherwise the candidate is skipped for this request.
func (o *Orchestrator) admitProvider(ctx context.Context, name string, reqCtx *common.RequestContext) bool {
	if o.gate.Admit(name) {
		return true
	}

	wait := o.gate.WaitTime(name)
	if wait > shortRateWait {
		return false
	}

	reqCtx.LogInfo("⏳ Waiting %s for %s rate window", wait.Round(time.Millisecond), name)
	if err := sleepCtx(ctx, wait); err != nil {
		return false
	}
	return o.gate.Admit(name)
}

// cacheLookup tries the content-hash key, or each candidate's namespaced
// key in attempt order when results are not provider-interchangeable.
func (o *Orchestrator) cacheLookup(ctx context.Context, hash string, candidates []string) (*receipt.ExtractionResult, bool) {
	if !o.opts.CacheByProvider {
		return o.cache.Get(ctx, hash)
	}

	for _, name := range candidates {
		if result, ok := o.cache.Get(ctx, o.cacheKey(hash, name)); ok {
			return result, true
		}
	}
	return nil, false
}

func (o *Orchestrator) cacheKey(hash, provider string) string {
	if !o.opts.CacheByProvider {
		return hash
	}
	return hash + ":" + provider
}

func forceHighDetail(prep *processor.Prepared) {
	prep.Detail = processor.DetailHigh
	for i := range prep.Segments {
		prep.Segments[i].Detail = processor.DetailHigh
	}
}

func failureReason(err error) string {
	var pe *ai.ProviderError
	if errors.As(err, &pe) {
		return string(pe.Kind)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return string(ai.KindTimeout)
	}
	return string(ai.KindUpstream)
}

func sumUsages(usages []*common.TokenUsage) *common.TokenUsage {
	total := &common.TokenUsage{}
	for _, u := range usages {
		total.Add(u)
	}
	return total
}

func usageCost(usage *common.TokenUsage) float64 {
	if usage == nil {
		return 0
	}
	return usage.CostUSD
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
