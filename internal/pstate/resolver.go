package pstate

import (
	"context"
	"errors"
	"fmt"

	"github.com/ledgerstate/ledgerstate/internal/ref"
)

// Infinite requests unbounded resolution depth, bounded only by cycle
// detection.
const Infinite = -1

// ErrResolutionCycle is the sentinel wrapped by ResolutionCycleError.
var ErrResolutionCycle = errors.New("pstate: resolution cycle")

// ResolutionCycleError is raised when get_resolved's traversal loops back
// to the entity currently being expanded via its own field — a primary
// spine cycle, as opposed to a benign back-edge to an earlier ancestor.
type ResolutionCycleError struct {
	Key  string
	Path []string
}

func (e *ResolutionCycleError) Error() string {
	return fmt.Sprintf("pstate: resolution cycle at %q (path %v)", e.Key, e.Path)
}

func (e *ResolutionCycleError) Unwrap() error { return ErrResolutionCycle }

// GetResolved returns the entity at key with Ref fields eagerly expanded
// to their target entities, up to depth hops (Infinite for unbounded).
// ok is false if key itself is absent. A Ref whose target is absent is
// returned as the Ref value itself, not nulled.
func (p *PState) GetResolved(ctx context.Context, key string, depth int) (any, bool, error) {
	value, ok, err := p.Fetch(ctx, key)
	if err != nil || !ok {
		return value, ok, err
	}
	if depth == 0 {
		return value, true, nil
	}

	if cached, ok := p.refCacheGet(key, depth); ok {
		return cached, true, nil
	}

	resolved, err := p.resolveValue(ctx, value, depth, []string{key})
	if err != nil {
		return nil, false, err
	}

	p.refCacheSet(key, depth, resolved)
	return resolved, true, nil
}

func (p *PState) refCacheGet(key string, depth int) (any, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	v, ok := p.refCache[refCacheKey(key, depth)]
	return v, ok
}

func (p *PState) refCacheSet(key string, depth int, value any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.refCache[refCacheKey(key, depth)] = value
}

func refCacheKey(key string, depth int) string {
	return fmt.Sprintf("%s\x00%d", key, depth)
}

// resolveValue walks v (the value currently being expanded, whose entity
// key is path[len(path)-1]) and replaces every Ref field with its target
// entity, subject to the cycle policy:
//
//   - A Ref whose target equals the entity currently being walked (the
//     last element of path) is a direct, zero-hop self-loop through the
//     primary spine and raises ResolutionCycleError.
//   - A Ref whose target equals any other ancestor on path is a benign
//     back-edge (e.g. a child collection pointing back to its parent) and
//     is left unresolved.
func (p *PState) resolveValue(ctx context.Context, v any, depth int, path []string) (any, error) {
	switch val := v.(type) {
	case ref.Ref:
		return p.resolveRef(ctx, val, depth, path)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			rv, err := p.resolveValue(ctx, inner, depth, path)
			if err != nil {
				return nil, err
			}
			out[k] = rv
		}
		return out, nil
	case []any:
		out := make([]any, len(val))
		for i, inner := range val {
			rv, err := p.resolveValue(ctx, inner, depth, path)
			if err != nil {
				return nil, err
			}
			out[i] = rv
		}
		return out, nil
	default:
		return v, nil
	}
}

func (p *PState) resolveRef(ctx context.Context, r ref.Ref, depth int, path []string) (any, error) {
	targetKey := r.Key
	current := path[len(path)-1]

	for _, ancestor := range path {
		if ancestor != targetKey {
			continue
		}
		if ancestor == current {
			return nil, &ResolutionCycleError{Key: targetKey, Path: append([]string{}, path...)}
		}
		return r, nil
	}

	target, ok, err := p.Fetch(ctx, targetKey)
	if err != nil {
		return nil, err
	}
	if !ok {
		return r, nil
	}

	if depth == 1 {
		return target, nil
	}

	nextDepth := depth - 1
	if depth == Infinite {
		nextDepth = Infinite
	}
	return p.resolveValue(ctx, target, nextDepth, append(path, targetKey))
}
