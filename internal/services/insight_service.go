package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"financeai/internal/auth"
	"financeai/internal/cache"
	"financeai/internal/core"
	"financeai/internal/insights"
	"financeai/internal/ledger"
	"financeai/internal/log"
)

// InsightRequester is satisfied by *insights.Pipeline.
type InsightRequester interface {
	Request(ctx context.Context, txs []core.Transaction) ([]core.Insight, error)
}

// InsightStatus is the last committed outcome for one user.
type InsightStatus struct {
	State      insights.State `json:"state"`
	Insights   []core.Insight `json:"insights"`
	Message    string         `json:"message,omitempty"`
	Generation uint64         `json:"generation"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

type InsightOptions struct {
	// CacheTTL of zero disables result caching.
	CacheTTL  time.Duration
	CacheSize int
	// AutoRefresh regenerates a user's insights whenever their ledger changes.
	AutoRefresh bool
}

// InsightService runs the insight pipeline on behalf of users. Every request
// takes a new per-user generation number and only the newest generation may
// update the user's status or the cache, so a slow older response can never
// replace a newer one. Identical in-flight requests share one upstream call.
type InsightService struct {
	store     ledger.Store
	requester InsightRequester
	cache     *cache.LRUCache[[]core.Insight]
	group     singleflight.Group
	opts      InsightOptions
	logger    *log.Logger

	mu       sync.Mutex
	gens     map[string]uint64
	statuses map[string]InsightStatus
}

func NewInsightService(store ledger.Store, requester InsightRequester, opts InsightOptions, logger *log.Logger) *InsightService {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = 1000
	}
	s := &InsightService{
		store:     store,
		requester: requester,
		opts:      opts,
		logger:    logger.WithComponent(log.ComponentInsights),
		gens:      make(map[string]uint64),
		statuses:  make(map[string]InsightStatus),
	}
	if opts.CacheTTL > 0 {
		s.cache = cache.NewLRUCache[[]core.Insight](opts.CacheSize, opts.CacheTTL)
	}
	return s
}

// Cache returns the result cache, or nil when caching is disabled.
func (s *InsightService) Cache() *cache.LRUCache[[]core.Insight] {
	return s.cache
}

// ForUser loads the user's most recent transactions and requests insights
// for them.
func (s *InsightService) ForUser(ctx context.Context, user auth.User) ([]core.Insight, error) {
	if user.ID == "" {
		return nil, auth.ErrAuthRequired
	}
	txs, err := s.store.Query(ctx, user.ID, ledger.QueryOptions{Limit: insights.MaxTransactions})
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to load ledger for insights",
			log.FieldUserID, user.ID,
			log.FieldError, err)
		return nil, fmt.Errorf("load transactions for insights: %w", err)
	}
	return s.Generate(ctx, user.ID, txs)
}

// Generate requests insights for txs on behalf of userID. The error is nil,
// a *insights.Failure, or auth.ErrAuthRequired.
func (s *InsightService) Generate(ctx context.Context, userID string, txs []core.Transaction) ([]core.Insight, error) {
	if userID == "" {
		return nil, auth.ErrAuthRequired
	}
	bounded := insights.Bound(txs)
	key := userID + ":" + cache.HashKey(insights.Summarize(bounded))

	if s.cache != nil {
		if cached, ok := s.cache.Get(key); ok {
			// A cache hit is still the newest outcome and supersedes any
			// generation in flight.
			s.commit(userID, s.begin(userID), cached, nil)
			s.logger.DebugContext(ctx, "Serving cached insights", log.FieldUserID, userID)
			return cached, nil
		}
	}

	gen := s.begin(userID)

	ch := s.group.DoChan(key, func() (any, error) {
		return s.requester.Request(context.WithoutCancel(ctx), bounded)
	})

	select {
	case <-ctx.Done():
		// The shared call keeps running; its result still lands in the
		// status and cache if gen is the newest generation by then.
		go s.settle(context.WithoutCancel(ctx), userID, gen, key, ch)
		return nil, &insights.Failure{Kind: insights.GenerationFailed, Err: ctx.Err()}
	case res := <-ch:
		return s.record(ctx, userID, gen, key, res)
	}
}

func (s *InsightService) settle(ctx context.Context, userID string, gen uint64, key string, ch <-chan singleflight.Result) {
	_, _ = s.record(ctx, userID, gen, key, <-ch)
}

func (s *InsightService) record(ctx context.Context, userID string, gen uint64, key string, res singleflight.Result) ([]core.Insight, error) {
	out, _ := res.Val.([]core.Insight)
	err := res.Err
	if s.commit(userID, gen, out, err) {
		if err == nil && s.cache != nil {
			s.cache.Set(key, out)
		}
	} else {
		s.logger.InfoContext(ctx, "Discarding stale insight response",
			log.FieldUserID, userID,
			log.FieldGeneration, gen)
	}
	return out, err
}

// Refresh regenerates insights for userID in the background of a ledger
// change. Failures are recorded in the status and logged by the pipeline.
func (s *InsightService) Refresh(ctx context.Context, userID string) {
	_, _ = s.ForUser(ctx, auth.User{ID: userID})
}

// Status reports the last committed outcome for userID.
func (s *InsightService) Status(userID string) InsightStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.statuses[userID]
	if !ok {
		return InsightStatus{State: insights.StateIdle, Insights: []core.Insight{}}
	}
	return st
}

// Watch invalidates cached insights on ledger changes and, when
// AutoRefresh is set, regenerates them. Call the returned function to stop.
func (s *InsightService) Watch(ctx context.Context, notifier ledger.Notifier) (func(), error) {
	sub, err := notifier.Subscribe("", func(c ledger.Change) {
		if s.cache != nil {
			s.cache.DeletePrefix(c.UserID + ":")
		}
		if s.opts.AutoRefresh && c.UserID != "" {
			go s.Refresh(ctx, c.UserID)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe to ledger changes: %w", err)
	}
	return sub.Unsubscribe, nil
}

func (s *InsightService) begin(userID string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gens[userID]++
	gen := s.gens[userID]
	st := s.statuses[userID]
	st.State = insights.StateRequesting
	st.Generation = gen
	if st.Insights == nil {
		st.Insights = []core.Insight{}
	}
	s.statuses[userID] = st
	return gen
}

// commit records the outcome if gen is still the newest generation.
func (s *InsightService) commit(userID string, gen uint64, out []core.Insight, err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gens[userID] != gen {
		return false
	}
	st := InsightStatus{
		State:      insights.StateOf(err),
		Insights:   out,
		Generation: gen,
		UpdatedAt:  time.Now().UTC(),
	}
	if st.Insights == nil {
		st.Insights = []core.Insight{}
	}
	if f, ok := err.(*insights.Failure); ok {
		st.Message = f.Message()
	} else if err != nil {
		st.Message = insights.MsgGenerationFailed
	}
	s.statuses[userID] = st
	return true
}
