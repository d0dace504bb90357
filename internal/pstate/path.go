package pstate

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// FetchPath resolves a dotted accessor against the projection, e.g.
// "card:c1.translations.t1" or "card:c1.tags[0]". pathExpr may chain
// alternatives with "|" ("a.b|a.c|a.d"); the first alternative that
// resolves to a present value wins. def is returned if every alternative
// is absent.
func (p *PState) FetchPath(ctx context.Context, pathExpr string, def any) (any, error) {
	for _, alt := range strings.Split(pathExpr, "|") {
		v, ok, err := p.fetchOnePath(ctx, alt)
		if err != nil {
			return nil, err
		}
		if ok {
			return v, nil
		}
	}
	return def, nil
}

func (p *PState) fetchOnePath(ctx context.Context, path string) (any, bool, error) {
	segments, err := splitPath(path)
	if err != nil {
		return nil, false, err
	}
	if len(segments) == 0 {
		return nil, false, nil
	}

	root, ok, err := p.Fetch(ctx, segments[0].field)
	if err != nil || !ok {
		return nil, false, err
	}
	current := any(root)
	for _, seg := range segments[1:] {
		current, ok = descend(current, seg)
		if !ok {
			return nil, false, nil
		}
	}
	return current, true, nil
}

// PutPath writes value at a dotted path, fetching the root entity,
// creating intermediate maps as needed, then writing the root back.
func (p *PState) PutPath(ctx context.Context, path string, value any) error {
	segments, err := splitPath(path)
	if err != nil {
		return err
	}
	if len(segments) == 0 {
		return fmt.Errorf("pstate: empty path")
	}

	root, ok, err := p.Fetch(ctx, segments[0].field)
	if err != nil {
		return err
	}
	if !ok {
		root = map[string]any{}
	}

	if len(segments) == 1 {
		return p.Put(ctx, segments[0].field, value)
	}

	if err := setPath(root, segments[1:], value); err != nil {
		return err
	}
	return p.Put(ctx, segments[0].field, root)
}

// pathSegment is either a plain map field access (index == nil) or a list
// index access on the preceding field ("tags[0]").
type pathSegment struct {
	field string
	index *int
}

func splitPath(path string) ([]pathSegment, error) {
	parts := strings.Split(path, ".")
	segments := make([]pathSegment, 0, len(parts))
	for _, part := range parts {
		field, idx, hasIdx, err := parseIndexed(part)
		if err != nil {
			return nil, err
		}
		segments = append(segments, pathSegment{field: field})
		if hasIdx {
			segments = append(segments, pathSegment{index: &idx})
		}
	}
	return segments, nil
}

func parseIndexed(part string) (field string, index int, hasIndex bool, err error) {
	open := strings.IndexByte(part, '[')
	if open < 0 {
		return part, 0, false, nil
	}
	if !strings.HasSuffix(part, "]") {
		return "", 0, false, fmt.Errorf("pstate: malformed path segment %q", part)
	}
	field = part[:open]
	idxStr := part[open+1 : len(part)-1]
	idx, err := strconv.Atoi(idxStr)
	if err != nil {
		return "", 0, false, fmt.Errorf("pstate: malformed index in %q: %w", part, err)
	}
	return field, idx, true, nil
}

func descend(current any, seg pathSegment) (any, bool) {
	if seg.index != nil {
		list, ok := current.([]any)
		if !ok || *seg.index < 0 || *seg.index >= len(list) {
			return nil, false
		}
		return list[*seg.index], true
	}
	m, ok := current.(map[string]any)
	if !ok {
		return nil, false
	}
	v, ok := m[seg.field]
	return v, ok
}

func setPath(root any, segments []pathSegment, value any) error {
	current := root
	for i, seg := range segments {
		last := i == len(segments)-1
		if seg.index != nil {
			list, ok := current.([]any)
			if !ok || *seg.index < 0 || *seg.index >= len(list) {
				return fmt.Errorf("pstate: index %d out of range", *seg.index)
			}
			if last {
				list[*seg.index] = value
				return nil
			}
			current = list[*seg.index]
			continue
		}

		m, ok := current.(map[string]any)
		if !ok {
			return fmt.Errorf("pstate: cannot descend into non-map at field %q", seg.field)
		}
		if last {
			m[seg.field] = value
			return nil
		}
		next, ok := m[seg.field]
		if !ok {
			next = map[string]any{}
			m[seg.field] = next
		}
		current = next
	}
	return nil
}
