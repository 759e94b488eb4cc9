// Package queue runs background AI passes over batches of newly arrived
// messages. A batch is processed in fixed-size chunks with two lanes per
// chunk: a serial generative categorize pass and a concurrent lightweight
// spam pass. A monotonically increasing generation counter arbitrates which
// in-flight batch may mutate shared progress state, so a superseded batch
// can finish its chunk work without corrupting the counters of its
// replacement.
package queue

import (
	"context"
	"runtime"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"mailmind/pkg/types"
)

const (
	defaultChunkSize   = 50
	defaultSpamWorkers = 4
)

// Categorizer is the generative lane. Implementations are not required to
// be safe for concurrent use; the queue calls it serially.
type Categorizer interface {
	Categorize(ctx context.Context, msg types.Message) (string, error)
}

// SpamChecker is the lightweight lane. It must be safe for concurrent use.
type SpamChecker interface {
	IsSpam(ctx context.Context, msg types.Message) (bool, error)
}

// Config carries the queue collaborators.
type Config struct {
	Categorizer Categorizer
	Spam        SpamChecker
	ChunkSize   int
	SpamWorkers int
	Logger      zerolog.Logger
}

// Queue is the background processing queue. One batch runs at a time;
// enqueueing a new batch supersedes the old one.
type Queue struct {
	categorizer Categorizer
	spam        SpamChecker
	chunkSize   int
	spamWorkers int
	log         zerolog.Logger

	mu         sync.Mutex
	generation uint64
	cancel     context.CancelFunc
	processing bool
	processed  int
	total      int
	lastCat    int
	lastSpam   int
	seen       map[string]bool
}

func New(cfg Config) *Queue {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = defaultChunkSize
	}
	if cfg.SpamWorkers <= 0 {
		cfg.SpamWorkers = defaultSpamWorkers
	}
	return &Queue{
		categorizer: cfg.Categorizer,
		spam:        cfg.Spam,
		chunkSize:   cfg.ChunkSize,
		spamWorkers: cfg.SpamWorkers,
		log:         cfg.Logger,
		seen:        make(map[string]bool),
	}
}

// Enqueue filters items down to those not yet processed and, when any
// remain, supersedes the running batch: the generation counter is bumped,
// progress counters reset, and the new batch starts in the background.
// It returns the number of items accepted.
func (q *Queue) Enqueue(items []types.Message) int {
	q.mu.Lock()
	fresh := make([]types.Message, 0, len(items))
	for _, it := range items {
		if !q.seen[it.ID] {
			fresh = append(fresh, it)
		}
	}
	if len(fresh) == 0 {
		q.mu.Unlock()
		return 0
	}

	if q.cancel != nil {
		q.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	q.cancel = cancel
	q.generation++
	gen := q.generation
	q.processing = true
	q.processed = 0
	q.total = len(fresh)
	q.lastCat = 0
	q.lastSpam = 0
	q.mu.Unlock()

	batchesTotal.Inc()
	q.log.Info().Uint64("generation", gen).Int("items", len(fresh)).Msg("batch enqueued")
	go q.run(ctx, gen, fresh)
	return len(fresh)
}

// Cancel stops the active batch and clears the processing flag immediately,
// without waiting for the chunk in flight to observe it.
func (q *Queue) Cancel() {
	q.mu.Lock()
	if q.cancel != nil {
		q.cancel()
	}
	q.processing = false
	q.mu.Unlock()
}

// State snapshots the queue counters.
func (q *Queue) State() types.QueueState {
	q.mu.Lock()
	defer q.mu.Unlock()
	return types.QueueState{
		Processing:      q.processing,
		ProcessedCount:  q.processed,
		TotalCount:      q.total,
		LastCategorized: q.lastCat,
		LastSpam:        q.lastSpam,
		Generation:      q.generation,
	}
}

func (q *Queue) run(ctx context.Context, gen uint64, items []types.Message) {
	for start := 0; start < len(items); start += q.chunkSize {
		if !q.current(gen) || ctx.Err() != nil {
			return
		}
		end := start + q.chunkSize
		if end > len(items) {
			end = len(items)
		}
		chunk := items[start:end]

		catOK := q.categorizeChunk(ctx, chunk)
		spamHits := q.spamChunk(ctx, chunk)

		// Guard again before touching shared state: the chunk work above
		// may have outlived a cancellation or supersession.
		if ctx.Err() != nil {
			return
		}
		if !q.publish(gen, chunk, catOK, spamHits) {
			return
		}
		runtime.Gosched()
	}

	q.mu.Lock()
	if gen == q.generation {
		q.processing = false
	}
	q.mu.Unlock()
	q.log.Debug().Uint64("generation", gen).Msg("batch complete")
}

// categorizeChunk runs the generative lane serially and returns how many
// items were categorized.
func (q *Queue) categorizeChunk(ctx context.Context, chunk []types.Message) int {
	ok := 0
	for _, msg := range chunk {
		if ctx.Err() != nil {
			return ok
		}
		if _, err := q.categorizer.Categorize(ctx, msg); err != nil {
			q.log.Debug().Err(err).Str("message", msg.ID).Msg("categorize failed")
			continue
		}
		ok++
	}
	return ok
}

// spamChunk runs the lightweight lane concurrently with a worker limit and
// returns how many items were flagged.
func (q *Queue) spamChunk(ctx context.Context, chunk []types.Message) int {
	var mu sync.Mutex
	hits := 0
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(q.spamWorkers)
	for _, msg := range chunk {
		g.Go(func() error {
			spam, err := q.spam.IsSpam(gctx, msg)
			if err != nil || !spam {
				return nil
			}
			mu.Lock()
			hits++
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return hits
}

func (q *Queue) current(gen uint64) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return gen == q.generation
}

// publish applies a chunk's results to the shared counters, or refuses when
// the batch has been superseded. Items count as processed only here, so a
// cancelled batch's unpublished items remain eligible for a later enqueue.
func (q *Queue) publish(gen uint64, chunk []types.Message, catOK, spamHits int) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if gen != q.generation {
		return false
	}
	q.processed += len(chunk)
	q.lastCat += catOK
	q.lastSpam += spamHits
	for _, msg := range chunk {
		q.seen[msg.ID] = true
	}
	messagesProcessed.Add(float64(len(chunk)))
	return true
}
