package pomps

import (
	"context"
	"fmt"
	"strings"
)

// JoinType selects which keys a join keeps.
type JoinType int

const (
	// InnerJoin keeps keys present on both sides.
	InnerJoin JoinType = iota
	// LeftJoin keeps keys present on the left side.
	LeftJoin
	// RightJoin keeps keys present on the right side.
	RightJoin
	// OuterJoin keeps every key.
	OuterJoin
)

func (j JoinType) String() string {
	switch j {
	case InnerJoin:
		return "inner"
	case LeftJoin:
		return "left"
	case RightJoin:
		return "right"
	case OuterJoin:
		return "outer"
	default:
		return fmt.Sprintf("JoinType(%d)", int(j))
	}
}

// ParseJoinType parses "inner", "left", "right" or "outer".
func ParseJoinType(s string) (JoinType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "inner":
		return InnerJoin, nil
	case "left":
		return LeftJoin, nil
	case "right":
		return RightJoin, nil
	case "outer", "full":
		return OuterJoin, nil
	default:
		return 0, fmt.Errorf("pomps: unknown join type %q", s)
	}
}

// keeps reports whether a key with the given side sizes survives the join.
func (j JoinType) keeps(left, right int) bool {
	switch j {
	case InnerJoin:
		return left > 0 && right > 0
	case LeftJoin:
		return left > 0
	case RightJoin:
		return right > 0
	default:
		return true
	}
}

// Join wraps c so that keys dropped by how never reach it.
//
// Example:
//
//	c := pomps.Join(pomps.LeftJoin, pomps.CombinerFunc(enrich))
//	n, err := pomps.MergeJoin(ctx, people, addresses, w, c)
func Join(how JoinType, c Combiner) Combiner {
	return CombinerFunc(func(ctx context.Context, key string, left, right []Record) ([]Record, error) {
		if !how.keeps(len(left), len(right)) {
			return nil, nil
		}
		return c.Combine(ctx, key, left, right)
	})
}

// PairRecords is a Combiner that emits one record per key holding both
// sides: {"group_key":key,"left":[...],"right":[...]}.
var PairRecords Combiner = CombinerFunc(func(_ context.Context, key string, left, right []Record) ([]Record, error) {
	return []Record{Object(
		KV("group_key", String(key)),
		KV("left", Array(left...)),
		KV("right", Array(right...)),
	)}, nil
})
