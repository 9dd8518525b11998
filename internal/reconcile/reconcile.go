// Package reconcile compares two datasets on a set of key columns.
package reconcile

import (
	"cmp"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/wonny/marginrecon/internal/contracts"
)

type group struct {
	tuple []any
	left  []int
	right []int
}

// Reconcile full-outer-joins a and b on keys. Keys match on exact value
// and type. Matched keys yield one row per left×right combination; rows of
// unmatched keys are labelled with their source and flagged when their key
// tuple already appeared earlier in the non-matching output.
// ⭐ SSOT: 정렬 순서 = 키 튜플 오름차순, 같은 키는 left → right → 입력 순서
func Reconcile(a, b *contracts.Dataset, keys []string) (*contracts.ReconciliationResult, error) {
	if a == nil || b == nil {
		return nil, fmt.Errorf("%w: nil dataset", contracts.ErrReconciliation)
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("%w: no key columns", contracts.ErrReconciliation)
	}
	for _, ds := range []*contracts.Dataset{a, b} {
		if missing := ds.MissingColumns(keys); len(missing) > 0 {
			return nil, fmt.Errorf("%w: %s lacks key column(s) %s",
				contracts.ErrReconciliation, ds.Name, strings.Join(missing, ", "))
		}
	}

	groups := make(map[string]*group)
	var order []*group

	add := func(ds *contracts.Dataset, left bool) {
		for i, row := range ds.Rows {
			tuple := make([]any, len(keys))
			for k, col := range keys {
				tuple[k] = row[col]
			}
			id := tupleID(tuple)
			g, ok := groups[id]
			if !ok {
				g = &group{tuple: tuple}
				groups[id] = g
				order = append(order, g)
			}
			if left {
				g.left = append(g.left, i)
			} else {
				g.right = append(g.right, i)
			}
		}
	}
	add(a, true)
	add(b, false)

	sort.SliceStable(order, func(i, j int) bool {
		return compareTuples(order[i].tuple, order[j].tuple) < 0
	})

	matching := &contracts.Dataset{
		Name:    fmt.Sprintf("%s_vs_%s_matching", a.Name, b.Name),
		Columns: append([]string(nil), keys...),
	}
	nonMatching := &contracts.Dataset{
		Name:    fmt.Sprintf("%s_vs_%s_non_matching", a.Name, b.Name),
		Columns: append(append([]string(nil), keys...), contracts.SourceColumn, contracts.DuplicateColumn),
	}

	seen := make(map[string]bool)
	emitUnmatched := func(g *group, n int, source string) {
		id := tupleID(g.tuple)
		for i := 0; i < n; i++ {
			row := keyRow(keys, g.tuple)
			row[contracts.SourceColumn] = source
			row[contracts.DuplicateColumn] = seen[id]
			seen[id] = true
			nonMatching.Rows = append(nonMatching.Rows, row)
		}
	}

	for _, g := range order {
		if len(g.left) > 0 && len(g.right) > 0 {
			for n := len(g.left) * len(g.right); n > 0; n-- {
				matching.Rows = append(matching.Rows, keyRow(keys, g.tuple))
			}
			continue
		}
		emitUnmatched(g, len(g.left), contracts.SourceLabel(a.Name))
		emitUnmatched(g, len(g.right), contracts.SourceLabel(b.Name))
	}

	return &contracts.ReconciliationResult{Matching: matching, NonMatching: nonMatching}, nil
}

func keyRow(keys []string, tuple []any) contracts.Row {
	row := make(contracts.Row, len(keys)+2)
	for i, col := range keys {
		row[col] = tuple[i]
	}
	return row
}

// tupleID identifies a key tuple by dynamic type and value, so "1" and 1
// never collide
func tupleID(tuple []any) string {
	var sb strings.Builder
	for _, v := range tuple {
		fmt.Fprintf(&sb, "%T\x1f%#v\x1e", v, v)
	}
	return sb.String()
}

func compareTuples(x, y []any) int {
	for i := range x {
		if c := compareValues(x[i], y[i]); c != 0 {
			return c
		}
	}
	return 0
}

// compareValues orders values of the same kind naturally. Nil sorts
// first; values of different kinds order by type name.
func compareValues(x, y any) int {
	switch {
	case x == nil && y == nil:
		return 0
	case x == nil:
		return -1
	case y == nil:
		return 1
	}

	switch xv := x.(type) {
	case string:
		if yv, ok := y.(string); ok {
			return strings.Compare(xv, yv)
		}
	case int64:
		if yv, ok := y.(int64); ok {
			return cmp.Compare(xv, yv)
		}
	case int32:
		if yv, ok := y.(int32); ok {
			return cmp.Compare(xv, yv)
		}
	case int:
		if yv, ok := y.(int); ok {
			return cmp.Compare(xv, yv)
		}
	case float64:
		if yv, ok := y.(float64); ok {
			return cmp.Compare(xv, yv)
		}
	case bool:
		if yv, ok := y.(bool); ok {
			return cmp.Compare(boolRank(xv), boolRank(yv))
		}
	case time.Time:
		if yv, ok := y.(time.Time); ok {
			return xv.Compare(yv)
		}
	}

	if c := strings.Compare(fmt.Sprintf("%T", x), fmt.Sprintf("%T", y)); c != 0 {
		return c
	}
	return strings.Compare(fmt.Sprintf("%#v", x), fmt.Sprintf("%#v", y))
}

func boolRank(b bool) int {
	if b {
		return 1
	}
	return 0
}
