// Package memory provides an in-memory partition source for tests and
// development. Partitions are created lazily on first use and support the
// subset of aggregation stages the analytics layer relies on ($match and
// $group with $sum).
package memory

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"sync"

	"github.com/abhiyaanhq/abhiyaan/shard"
)

// Compile-time interface checks.
var (
	_ shard.Source    = (*Source)(nil)
	_ shard.Partition = (*partition)(nil)
)

// Source is a thread-safe in-memory partition source.
type Source struct {
	mu         sync.Mutex
	partitions map[string]*partition
}

// New creates a new in-memory source.
func New() *Source {
	return &Source{partitions: make(map[string]*partition)}
}

// Partition returns the named partition, creating it empty on first use.
func (s *Source) Partition(name string) shard.Partition {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.partitions[name]
	if !ok {
		p = &partition{name: name}
		s.partitions[name] = p
	}
	return p
}

// Ping is a no-op for the memory source.
func (s *Source) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory source.
func (s *Source) Close(_ context.Context) error { return nil }

type partition struct {
	name string

	mu   sync.RWMutex
	rows []shard.Row
}

func (p *partition) Name() string { return p.name }

func (p *partition) Find(_ context.Context, q shard.Query) ([]shard.Row, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var out []shard.Row
	for _, r := range p.rows {
		if matches(r, q.Filter) {
			out = append(out, maps.Clone(r))
		}
	}
	for i := len(q.Sort) - 1; i >= 0; i-- {
		sf := q.Sort[i]
		sort.SliceStable(out, func(a, b int) bool {
			c := compare(out[a][sf.Field], out[b][sf.Field])
			if sf.Desc {
				return c > 0
			}
			return c < 0
		})
	}
	if q.Limit > 0 && int64(len(out)) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (p *partition) Count(_ context.Context, q shard.Query) (int64, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var n int64
	for _, r := range p.rows {
		if matches(r, q.Filter) {
			n++
		}
	}
	return n, nil
}

func (p *partition) Aggregate(_ context.Context, pipeline []map[string]any) ([]shard.Row, error) {
	p.mu.RLock()
	rows := make([]shard.Row, len(p.rows))
	for i, r := range p.rows {
		rows[i] = maps.Clone(r)
	}
	p.mu.RUnlock()

	for _, stage := range pipeline {
		var err error
		rows, err = applyStage(rows, stage)
		if err != nil {
			return nil, err
		}
	}
	return rows, nil
}

func (p *partition) Insert(_ context.Context, rows ...shard.Row) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, r := range rows {
		p.rows = append(p.rows, maps.Clone(r))
	}
	return nil
}

func (p *partition) Update(_ context.Context, filter map[string]any, set map[string]any) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var n int64
	for _, r := range p.rows {
		if matches(r, filter) {
			maps.Copy(r, set)
			n++
		}
	}
	return n, nil
}

func matches(r shard.Row, filter map[string]any) bool {
	for k, want := range filter {
		if compare(r[k], want) != 0 {
			return false
		}
	}
	return true
}

// applyStage evaluates one aggregation stage. Only $match and $group (with
// $sum accumulators) are implemented; that is the full vocabulary the stats
// materializer emits.
func applyStage(rows []shard.Row, stage map[string]any) ([]shard.Row, error) {
	if len(stage) != 1 {
		return nil, fmt.Errorf("memory: stage must have exactly one operator, got %d", len(stage))
	}
	for op, spec := range stage {
		switch op {
		case "$match":
			filter, ok := spec.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("memory: $match spec must be a document")
			}
			var out []shard.Row
			for _, r := range rows {
				if matches(r, filter) {
					out = append(out, r)
				}
			}
			return out, nil
		case "$group":
			spec, ok := spec.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("memory: $group spec must be a document")
			}
			return applyGroup(rows, spec)
		default:
			return nil, fmt.Errorf("memory: unsupported stage %q", op)
		}
	}
	return rows, nil
}

func applyGroup(rows []shard.Row, spec map[string]any) ([]shard.Row, error) {
	keyExpr, ok := spec["_id"]
	if !ok {
		return nil, fmt.Errorf("memory: $group requires _id")
	}

	groups := make(map[any]shard.Row)
	var order []any
	for _, r := range rows {
		key := evalExpr(r, keyExpr)
		g, seen := groups[key]
		if !seen {
			g = shard.Row{"_id": key}
			groups[key] = g
			order = append(order, key)
		}
		for field, accum := range spec {
			if field == "_id" {
				continue
			}
			acc, ok := accum.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("memory: accumulator for %q must be a document", field)
			}
			sumExpr, ok := acc["$sum"]
			if !ok {
				return nil, fmt.Errorf("memory: only $sum accumulators are supported")
			}
			cur, _ := g[field].(int64)
			g[field] = cur + toInt64(evalExpr(r, sumExpr))
		}
	}

	sort.Slice(order, func(i, j int) bool { return compare(order[i], order[j]) < 0 })
	out := make([]shard.Row, 0, len(order))
	for _, key := range order {
		out = append(out, groups[key])
	}
	return out, nil
}

// evalExpr evaluates a $group expression: "$field" reads the field, any
// other value is a literal.
func evalExpr(r shard.Row, expr any) any {
	if s, ok := expr.(string); ok && len(s) > 1 && s[0] == '$' {
		return r[s[1:]]
	}
	return expr
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case int64:
		return n
	case float64:
		return int64(n)
	default:
		return 0
	}
}

// compare orders two loosely-typed values. Numbers compare numerically,
// strings lexically; mismatched kinds compare by kind name so sorts stay
// deterministic.
func compare(a, b any) int {
	an, aok := toFloat(a)
	bn, bok := toFloat(b)
	if aok && bok {
		switch {
		case an < bn:
			return -1
		case an > bn:
			return 1
		default:
			return 0
		}
	}
	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		switch {
		case as < bs:
			return -1
		case as > bs:
			return 1
		default:
			return 0
		}
	}
	ab, aok := a.(bool)
	bb, bok := b.(bool)
	if aok && bok {
		switch {
		case ab == bb:
			return 0
		case !ab:
			return -1
		default:
			return 1
		}
	}
	at, bt := fmt.Sprintf("%T", a), fmt.Sprintf("%T", b)
	switch {
	case at < bt:
		return -1
	case at > bt:
		return 1
	default:
		return 0
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return float64(n), true
	default:
		return 0, false
	}
}
