// Package pipeline drives the structure-preserving translation run: it
// dispatches chunk translation jobs with bounded concurrency, governs
// retries for transient failures, and reassembles results strictly in chunk
// sequence order regardless of completion order.
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"markdown-translator/internal/document"
	"markdown-translator/internal/logger"
	"markdown-translator/internal/types"
)

// FallbackMarker precedes a chunk whose translation was abandoned; its
// original-language content is kept verbatim. HTML comments are invisible in
// rendered Markdown.
const FallbackMarker = "<!-- 未翻译：保留原文 -->"

// DefaultConcurrency is the default number of in-flight translation jobs
const DefaultConcurrency = 3

// JobState 任务状态
type JobState string

const (
	JobPending         JobState = "pending"
	JobInFlight        JobState = "in-flight"
	JobSucceeded       JobState = "succeeded"
	JobFailedPermanent JobState = "failed-permanent"
)

// TranslationJob tracks one chunk through the pipeline. Jobs are owned
// exclusively by the orchestrator; state transitions happen only under the
// orchestrator's lock, driven by the retry policy or a successful response.
type TranslationJob struct {
	Chunk    *document.Chunk
	Attempts int
	State    JobState
	LastErr  error

	tokens    int
	fromCache bool
}

// ChunkTranslator is the translation service boundary. The markup-safe
// engine satisfies it; tests substitute stubs.
type ChunkTranslator interface {
	TranslateChunk(ctx context.Context, chunk *document.Chunk) (tokensUsed int, err error)
}

// Progress is called after every chunk settles (success, cache hit or
// permanent failure).
type Progress func(completed, total int, message string)

// Result is the outcome of a pipeline run. Blocks holds every block of the
// document in original order: translated content where translation
// succeeded, original-language content for failed chunks.
type Result struct {
	Chunks       []*document.Chunk
	FailedChunks []int
	TokensUsed   int
	CachedChunks int
}

// Markdown assembles the final document by iterating chunks in sequence
// order. Failed chunks are preceded by the provenance marker.
func (r *Result) Markdown() string {
	failed := make(map[int]bool, len(r.FailedChunks))
	for _, seq := range r.FailedChunks {
		failed[seq] = true
	}

	var sb strings.Builder
	for i, chunk := range r.Chunks {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		if failed[chunk.Sequence] {
			sb.WriteString(FallbackMarker)
			sb.WriteString("\n\n")
		}
		rendered := document.Render(chunk.Blocks)
		sb.WriteString(strings.TrimRight(rendered, "\n"))
	}
	if sb.Len() > 0 {
		sb.WriteString("\n")
	}
	return sb.String()
}

// Blocks returns all blocks in sequence order.
func (r *Result) Blocks() []*document.Block {
	var blocks []*document.Block
	for _, chunk := range r.Chunks {
		blocks = append(blocks, chunk.Blocks...)
	}
	return blocks
}

// Orchestrator runs translation jobs over a bounded worker pool.
// Configuration is run-scoped: one orchestrator per conversion run, no
// process-wide state.
type Orchestrator struct {
	translator  ChunkTranslator
	concurrency int
	policy      *retryPolicy
	cache       *ChunkCache
	progress    Progress

	mu        sync.Mutex // guards jobs, tallies; the single mutation point
	jobs      []*TranslationJob
	completed int
}

// Options configures an Orchestrator.
type Options struct {
	Concurrency int
	MaxAttempts int
	Cache       *ChunkCache
	Progress    Progress
}

// NewOrchestrator creates an orchestrator around the given translator.
func NewOrchestrator(translator ChunkTranslator, opts Options) *Orchestrator {
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Orchestrator{
		translator:  translator,
		concurrency: concurrency,
		policy:      newRetryPolicy(opts.MaxAttempts),
		cache:       opts.Cache,
		progress:    opts.Progress,
	}
}

// Run translates all chunks and returns the assembled result. Single-chunk
// failures are never fatal: failed chunks fall back to original-language
// content. The run itself fails only when chunks exist and none succeeded.
func (o *Orchestrator) Run(ctx context.Context, chunks []*document.Chunk) (*Result, error) {
	total := len(chunks)
	logger.Info("starting translation run",
		logger.Int("chunks", total),
		logger.Int("concurrency", o.concurrency))

	result := &Result{Chunks: chunks}
	if total == 0 {
		return result, nil
	}

	o.jobs = make([]*TranslationJob, total)
	for i, chunk := range chunks {
		o.jobs[i] = &TranslationJob{Chunk: chunk, State: JobPending}
	}
	o.completed = 0

	sem := make(chan struct{}, o.concurrency)
	var wg sync.WaitGroup

	for _, job := range o.jobs {
		// Stop admitting new jobs once the run is cancelled; pending jobs
		// settle as failed-permanent fallback below.
		if ctx.Err() != nil {
			break
		}

		wg.Add(1)
		go func(job *TranslationJob) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			o.runJob(ctx, job)
		}(job)
	}

	wg.Wait()

	// Settle anything still pending (cancellation) and tally.
	var failed []int
	var firstErr error
	succeeded := 0

	o.mu.Lock()
	for _, job := range o.jobs {
		switch job.State {
		case JobSucceeded:
			succeeded++
			result.TokensUsed += job.tokens
			if job.fromCache {
				result.CachedChunks++
			}
		default:
			if job.State != JobFailedPermanent {
				job.State = JobFailedPermanent
				if job.LastErr == nil {
					job.LastErr = types.NewAppError(types.ErrCancelled, "translation run cancelled", ctx.Err())
				}
			}
			failed = append(failed, job.Chunk.Sequence)
			if firstErr == nil || (!isPermanentClass(firstErr) && isPermanentClass(job.LastErr)) {
				firstErr = job.LastErr
			}
		}
	}
	o.mu.Unlock()

	sort.Ints(failed)
	result.FailedChunks = failed

	logger.Info("translation run finished",
		logger.Int("succeeded", succeeded),
		logger.Int("failed", len(failed)),
		logger.Int("cached", result.CachedChunks),
		logger.Int("tokensUsed", result.TokensUsed))

	if succeeded == 0 {
		if firstErr == nil {
			firstErr = types.NewAppError(types.ErrInternal, "no chunk translated", nil)
		}
		return result, types.NewAppErrorWithDetails(
			types.CodeOf(firstErr),
			"translation run failed",
			fmt.Sprintf("0 of %d chunks succeeded: %s", total, firstErr.Error()),
			firstErr,
		)
	}
	return result, nil
}

// runJob drives one job through cache lookup, translation attempts and the
// retry policy until it settles.
func (o *Orchestrator) runJob(ctx context.Context, job *TranslationJob) {
	seq := job.Chunk.Sequence
	sourceHash := hashChunk(job.Chunk)

	if o.cache != nil {
		if contents, ok := o.cache.Get(job.Chunk); ok {
			for i, b := range job.Chunk.Blocks {
				b.Content = contents[i]
			}
			o.settle(job, JobSucceeded, nil, 0, true)
			logger.Debug("chunk served from cache", logger.Int("sequence", seq))
			return
		}
	}

	for {
		o.mu.Lock()
		job.Attempts++
		job.State = JobInFlight
		attempt := job.Attempts
		o.mu.Unlock()

		tokens, err := o.translator.TranslateChunk(ctx, job.Chunk)
		if err == nil {
			if o.cache != nil {
				contents := make([]string, len(job.Chunk.Blocks))
				for i, b := range job.Chunk.Blocks {
					contents[i] = b.Content
				}
				o.cache.put(sourceHash, contents)
			}
			o.settle(job, JobSucceeded, nil, tokens, false)
			logger.Debug("chunk translated",
				logger.Int("sequence", seq),
				logger.Int("attempt", attempt),
				logger.Int("tokensUsed", tokens))
			return
		}

		logger.Warn("chunk translation attempt failed",
			logger.Int("sequence", seq),
			logger.Int("attempt", attempt),
			logger.Err(err))

		d := o.policy.Decide(attempt, err)
		if !d.retry {
			o.settle(job, JobFailedPermanent, err, 0, false)
			logger.Error("chunk abandoned, keeping original text", err,
				logger.Int("sequence", seq),
				logger.Int("attempts", attempt))
			return
		}

		// Backoff delays are cancellation points: an in-flight job is
		// abandoned at the next retry decision when the run is cancelled.
		select {
		case <-ctx.Done():
			o.settle(job, JobFailedPermanent,
				types.NewAppError(types.ErrCancelled, "translation run cancelled", ctx.Err()), 0, false)
			return
		case <-time.After(d.delay):
		}
	}
}

// settle records a job's terminal state and reports progress. It is the only
// writer of terminal job state.
func (o *Orchestrator) settle(job *TranslationJob, state JobState, err error, tokens int, fromCache bool) {
	o.mu.Lock()
	job.State = state
	job.LastErr = err
	job.tokens = tokens
	job.fromCache = fromCache
	o.completed++
	completed := o.completed
	total := len(o.jobs)
	o.mu.Unlock()

	if o.progress != nil {
		o.progress(completed, total, fmt.Sprintf("翻译中 (%d/%d 分块)...", completed, total))
	}
}
