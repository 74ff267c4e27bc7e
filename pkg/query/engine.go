package query

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/graphmem/graphmem/pkg/clock"
	"github.com/graphmem/graphmem/pkg/errors"
	"github.com/graphmem/graphmem/pkg/index"
	"github.com/graphmem/graphmem/pkg/memory"
	"github.com/graphmem/graphmem/pkg/observability"
)

// Ordering fields for query results.
type OrderBy string

const (
	OrderByCreatedAt OrderBy = "created_at"
	OrderByUpdatedAt OrderBy = "updated_at"
	OrderByRelevance OrderBy = "relevance"
)

// Sort directions.
type Order string

const (
	OrderAsc  Order = "asc"
	OrderDesc Order = "desc"
)

// wildcardLimit bounds wildcard listings so "*" cannot dump an entire
// large store in one call.
const wildcardLimit = 100

// Config wires the engine's collaborators.
type Config struct {
	// Scorer ranks content queries. Nil falls back to TokenOverlap.
	Scorer Scorer
	// IDPrefixes extends DefaultIDPrefixes for the classifier.
	IDPrefixes []string
	// Logger receives debug output. Nil falls back to log.Default.
	Logger *log.Logger
}

// Engine answers queries over the node store, dispatching between exact-ID
// lookup and ranked content search.
type Engine struct {
	store    *memory.Store
	index    *index.Index
	clk      clock.Clock
	scorer   Scorer
	prefixes []string
	logger   *log.Logger
}

// New creates a query engine over the store and index.
func New(store *memory.Store, ix *index.Index, clk clock.Clock, cfg Config) *Engine {
	scorer := cfg.Scorer
	if scorer == nil {
		scorer = TokenOverlap{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{
		store:    store,
		index:    ix,
		clk:      clk,
		scorer:   scorer,
		prefixes: cfg.IDPrefixes,
		logger:   logger,
	}
}

// Options filters and orders a query.
type Options struct {
	Type   string
	Scope  memory.Scope
	Limit  int
	Offset int
	// OrderBy defaults to created_at; Order defaults to desc.
	OrderBy OrderBy
	Order   Order
}

// Query resolves text as either an exact-ID lookup or a content search.
//
// ID probes bypass ranking: the node is fetched directly (across all scopes
// when none is given) and returned as a single-element result, or an empty
// result on a miss. Content queries are filtered, scored, ordered with a
// deterministic ID tie-break, and paginated. An offset past the end yields
// an empty result, not an error.
func (e *Engine) Query(ctx context.Context, text string, opts Options) ([]memory.GraphNode, error) {
	started := time.Now()
	nodes, err := e.query(ctx, text, opts)
	observability.Query().OnQuery(ctx, "query", len(nodes), time.Since(started))
	return nodes, err
}

func (e *Engine) query(ctx context.Context, text string, opts Options) ([]memory.GraphNode, error) {
	opts, err := e.normalize(opts)
	if err != nil {
		return nil, err
	}

	c := Classify(text, e.prefixes)
	switch c.Kind {
	case KindExactID:
		e.logger.Debug("query classified as ID probe", "id", c.ID)
		node, err := e.store.Resolve(ctx, opts.Scope, c.ID)
		if errors.Is(err, errors.ErrCodeNotFound) {
			return []memory.GraphNode{}, nil
		}
		if err != nil {
			return nil, err
		}
		return []memory.GraphNode{node}, nil

	case KindWildcard:
		e.logger.Debug("query classified as wildcard listing")
		nodes, err := e.store.List(ctx, memory.ListOptions{Scope: opts.Scope, Type: opts.Type})
		if err != nil {
			return nil, err
		}
		sortNodes(nodes, opts.OrderBy, opts.Order, nil)
		limit := opts.Limit
		if limit <= 0 || limit > wildcardLimit {
			limit = wildcardLimit
		}
		return paginate(nodes, limit, opts.Offset), nil

	default:
		e.logger.Debug("query classified as content search", "text", text)
		scored, err := e.contentSearch(ctx, text, opts.Scope, opts.Type)
		if err != nil {
			return nil, err
		}
		nodes := make([]memory.GraphNode, len(scored))
		scores := make(map[string]float64, len(scored))
		for i, sn := range scored {
			nodes[i] = sn.node
			scores[scoreKey(sn.node)] = sn.score
		}
		sortNodes(nodes, opts.OrderBy, opts.Order, scores)
		return paginate(nodes, opts.Limit, opts.Offset), nil
	}
}

// SearchOptions filters Search.
type SearchOptions struct {
	Limit int
	// Threshold drops candidates scoring below it. Zero keeps everything
	// the scorer matched.
	Threshold float64
	Scope     memory.Scope
}

// Search runs the content-query path and drops candidates whose relevance
// falls below the threshold. Results are ordered by relevance descending.
func (e *Engine) Search(ctx context.Context, text string, opts SearchOptions) ([]memory.GraphNode, error) {
	started := time.Now()
	if opts.Scope != "" && !opts.Scope.Valid() {
		return nil, errors.New(errors.ErrCodeInvalidScope, "unknown scope: %q", opts.Scope)
	}

	scored, err := e.contentSearch(ctx, text, opts.Scope, "")
	if err != nil {
		return nil, err
	}

	var nodes []memory.GraphNode
	scores := make(map[string]float64)
	for _, sn := range scored {
		if sn.score < opts.Threshold {
			continue
		}
		nodes = append(nodes, sn.node)
		scores[scoreKey(sn.node)] = sn.score
	}
	sortNodes(nodes, OrderByRelevance, OrderDesc, scores)
	nodes = paginate(nodes, opts.Limit, 0)

	observability.Query().OnQuery(ctx, "search", len(nodes), time.Since(started))
	return nodes, nil
}

// RelatedOptions filters Related.
type RelatedOptions struct {
	Limit            int
	RelationshipType string
}

// Related returns the nodes connected to id through derived edges, both
// directions, ordered by edge weight descending then far-endpoint ID
// ascending.
func (e *Engine) Related(ctx context.Context, id string, opts RelatedOptions) ([]memory.GraphNode, error) {
	edges, err := e.index.Related(ctx, id, opts.RelationshipType, opts.Limit)
	if err != nil {
		return nil, err
	}

	nodes := make([]memory.GraphNode, 0, len(edges))
	for _, edge := range edges {
		node, err := e.store.Resolve(ctx, "", index.OtherEnd(edge, id))
		if errors.Is(err, errors.ErrCodeNotFound) {
			// The edge set can briefly outlive a deletion.
			continue
		}
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

// TimelineOptions selects the timeline range.
type TimelineOptions struct {
	Start      time.Time
	End        time.Time
	BucketSize string
	Scope      memory.Scope
	Type       string
}

// TimelineResult pairs the full matching node set with its bucket counts.
// Total equals both len(Memories) and the sum of all bucket counts.
type TimelineResult struct {
	Memories []memory.GraphNode `json:"memories"`
	Buckets  map[string]int     `json:"buckets"`
	Start    time.Time          `json:"start_time"`
	End      time.Time          `json:"end_time"`
	Total    int                `json:"total"`
}

// Timeline delegates bucketing to the index and keys buckets by their
// RFC 3339 start time.
func (e *Engine) Timeline(ctx context.Context, opts TimelineOptions) (TimelineResult, error) {
	size, err := index.ParseBucketSize(opts.BucketSize)
	if err != nil {
		return TimelineResult{}, err
	}
	if opts.Scope != "" && !opts.Scope.Valid() {
		return TimelineResult{}, errors.New(errors.ErrCodeInvalidScope, "unknown scope: %q", opts.Scope)
	}

	res, err := e.index.Timeline(ctx, index.TimelineQuery{
		Start: opts.Start,
		End:   opts.End,
		Size:  size,
		Scope: opts.Scope,
		Type:  opts.Type,
	})
	if err != nil {
		return TimelineResult{}, err
	}

	buckets := make(map[string]int, len(res.Buckets))
	for _, b := range res.Buckets {
		buckets[b.Start.Format(time.RFC3339)] = b.Count
	}
	return TimelineResult{
		Memories: res.Nodes,
		Buckets:  buckets,
		Start:    res.Start,
		End:      res.End,
		Total:    res.Total,
	}, nil
}

// Stats summarizes the store's contents.
type Stats struct {
	TotalNodes   int            `json:"total_nodes"`
	NodesByType  map[string]int `json:"nodes_by_type"`
	NodesByScope map[string]int `json:"nodes_by_scope"`
	Recent24h    int            `json:"recent_nodes_24h"`
	OldestNode   time.Time      `json:"oldest_node_date,omitzero"`
	NewestNode   time.Time      `json:"newest_node_date,omitzero"`
}

// StatsFor aggregates counts and date bounds over live nodes.
func (e *Engine) StatsFor(ctx context.Context, scope memory.Scope) (Stats, error) {
	nodes, err := e.store.List(ctx, memory.ListOptions{Scope: scope})
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{
		NodesByType:  make(map[string]int),
		NodesByScope: make(map[string]int),
	}
	cutoff := e.clk.Now().Add(-24 * time.Hour)
	for _, n := range nodes {
		stats.TotalNodes++
		stats.NodesByType[n.Type]++
		stats.NodesByScope[string(n.Scope)]++
		if n.CreatedAt.After(cutoff) {
			stats.Recent24h++
		}
		if stats.OldestNode.IsZero() || n.CreatedAt.Before(stats.OldestNode) {
			stats.OldestNode = n.CreatedAt
		}
		if n.CreatedAt.After(stats.NewestNode) {
			stats.NewestNode = n.CreatedAt
		}
	}
	return stats, nil
}

// =============================================================================
// Internal Helpers
// =============================================================================

type scoredNode struct {
	node  memory.GraphNode
	score float64
}

// contentSearch collects candidates and scores them. When the query text is
// a case-sensitive prefix of any candidate's attribute keys, prefix matching
// wins and those candidates score 1.0; otherwise the pluggable scorer ranks
// everything and zero-score candidates drop out.
func (e *Engine) contentSearch(ctx context.Context, text string, scope memory.Scope, nodeType string) ([]scoredNode, error) {
	candidates, err := e.store.List(ctx, memory.ListOptions{Scope: scope, Type: nodeType})
	if err != nil {
		return nil, err
	}

	var prefixed []scoredNode
	for _, n := range candidates {
		if hasKeyPrefix(n, text) {
			prefixed = append(prefixed, scoredNode{node: n, score: 1.0})
		}
	}
	if len(prefixed) > 0 {
		return prefixed, nil
	}

	var scored []scoredNode
	for _, n := range candidates {
		if s := e.scorer.Score(text, n); s > 0 {
			scored = append(scored, scoredNode{node: n, score: s})
		}
	}
	return scored, nil
}

func hasKeyPrefix(n memory.GraphNode, text string) bool {
	if text == "" {
		return false
	}
	for key := range n.Attributes {
		if strings.HasPrefix(key, text) {
			return true
		}
	}
	return false
}

func (e *Engine) normalize(opts Options) (Options, error) {
	if opts.OrderBy == "" {
		opts.OrderBy = OrderByCreatedAt
	}
	switch opts.OrderBy {
	case OrderByCreatedAt, OrderByUpdatedAt, OrderByRelevance:
	default:
		return opts, errors.New(errors.ErrCodeInvalidOrderBy, "unknown order_by: %q", opts.OrderBy)
	}

	if opts.Order == "" {
		opts.Order = OrderDesc
	}
	switch opts.Order {
	case OrderAsc, OrderDesc:
	default:
		return opts, errors.New(errors.ErrCodeValidation, "unknown order: %q", opts.Order)
	}

	if opts.Scope != "" && !opts.Scope.Valid() {
		return opts, errors.New(errors.ErrCodeInvalidScope, "unknown scope: %q", opts.Scope)
	}
	return opts, nil
}

func scoreKey(n memory.GraphNode) string {
	return string(n.Scope) + "/" + n.ID
}

// sortNodes orders nodes by the requested field with ties broken by ID
// ascending so pagination stays stable across calls.
func sortNodes(nodes []memory.GraphNode, orderBy OrderBy, order Order, scores map[string]float64) {
	slices.SortFunc(nodes, func(a, b memory.GraphNode) int {
		var c int
		switch orderBy {
		case OrderByUpdatedAt:
			c = a.UpdatedAt.Compare(b.UpdatedAt)
		case OrderByRelevance:
			c = cmp.Compare(scores[scoreKey(a)], scores[scoreKey(b)])
		default:
			c = a.CreatedAt.Compare(b.CreatedAt)
		}
		if order == OrderDesc {
			c = -c
		}
		if c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

// paginate applies offset then limit. An offset past the end yields an
// empty slice.
func paginate(nodes []memory.GraphNode, limit, offset int) []memory.GraphNode {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(nodes) {
		return []memory.GraphNode{}
	}
	nodes = nodes[offset:]
	if limit > 0 && len(nodes) > limit {
		nodes = nodes[:limit]
	}
	return nodes
}
