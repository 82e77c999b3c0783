package memory

import (
	"context"
	"testing"

	"github.com/abhiyaanhq/abhiyaan/shard"
)

func TestFindFilterSortLimit(t *testing.T) {
	ctx := context.Background()
	p := New().Partition("voters_101")

	err := p.Insert(ctx,
		shard.Row{"name": "asha", "age": 34, "booth_id": "BOOTH7-101", "surveyed": true},
		shard.Row{"name": "binod", "age": 61, "booth_id": "BOOTH7-101", "surveyed": false},
		shard.Row{"name": "chitra", "age": 27, "booth_id": "BOOTH9-101", "surveyed": true},
		shard.Row{"name": "divya", "age": 45, "booth_id": "BOOTH9-101", "surveyed": true},
	)
	if err != nil {
		t.Fatal(err)
	}

	rows, err := p.Find(ctx, shard.Query{
		Filter: map[string]any{"surveyed": true},
		Sort:   []shard.SortField{{Field: "age", Desc: true}},
		Limit:  2,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if rows[0]["name"] != "divya" || rows[1]["name"] != "asha" {
		t.Fatalf("sort/limit wrong: %v, %v", rows[0]["name"], rows[1]["name"])
	}
}

func TestFindEmptyPartition(t *testing.T) {
	ctx := context.Background()
	p := New().Partition("voters_57")

	rows, err := p.Find(ctx, shard.Query{})
	if err != nil {
		t.Fatalf("read of never-written partition must not error: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("got %d rows from empty partition", len(rows))
	}

	n, err := p.Count(ctx, shard.Query{})
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("Count = %d, want 0", n)
	}
}

func TestCount(t *testing.T) {
	ctx := context.Background()
	p := New().Partition("survey_responses_56")

	for i := 0; i < 5; i++ {
		if err := p.Insert(ctx, shard.Row{"question": "q1", "seq": i}); err != nil {
			t.Fatal(err)
		}
	}
	if err := p.Insert(ctx, shard.Row{"question": "q2", "seq": 5}); err != nil {
		t.Fatal(err)
	}

	n, err := p.Count(ctx, shard.Query{Filter: map[string]any{"question": "q1"}})
	if err != nil {
		t.Fatal(err)
	}
	if n != 5 {
		t.Fatalf("Count = %d, want 5", n)
	}
}

func TestAggregateGroupSum(t *testing.T) {
	ctx := context.Background()
	p := New().Partition("voters_101")

	err := p.Insert(ctx,
		shard.Row{"booth_id": "BOOTH7-101", "surveyed": true},
		shard.Row{"booth_id": "BOOTH7-101", "surveyed": false},
		shard.Row{"booth_id": "BOOTH9-101", "surveyed": true},
	)
	if err != nil {
		t.Fatal(err)
	}

	rows, err := p.Aggregate(ctx, []map[string]any{
		{"$group": map[string]any{"_id": "$booth_id", "voters": map[string]any{"$sum": 1}}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d groups, want 2", len(rows))
	}
	if rows[0]["_id"] != "BOOTH7-101" || rows[0]["voters"] != int64(2) {
		t.Fatalf("group 0 = %v", rows[0])
	}
	if rows[1]["_id"] != "BOOTH9-101" || rows[1]["voters"] != int64(1) {
		t.Fatalf("group 1 = %v", rows[1])
	}
}

func TestAggregateMatchThenGroup(t *testing.T) {
	ctx := context.Background()
	p := New().Partition("voters_102")

	err := p.Insert(ctx,
		shard.Row{"booth_id": "BOOTH1-102", "surveyed": true},
		shard.Row{"booth_id": "BOOTH1-102", "surveyed": true},
		shard.Row{"booth_id": "BOOTH1-102", "surveyed": false},
	)
	if err != nil {
		t.Fatal(err)
	}

	rows, err := p.Aggregate(ctx, []map[string]any{
		{"$match": map[string]any{"surveyed": true}},
		{"$group": map[string]any{"_id": nil, "n": map[string]any{"$sum": 1}}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0]["n"] != int64(2) {
		t.Fatalf("got %v, want one group with n=2", rows)
	}
}

func TestAggregateUnsupportedStage(t *testing.T) {
	ctx := context.Background()
	p := New().Partition("voters_103")

	if _, err := p.Aggregate(ctx, []map[string]any{{"$lookup": map[string]any{}}}); err == nil {
		t.Fatal("expected error for unsupported stage")
	}
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	p := New().Partition("voters_104")

	err := p.Insert(ctx,
		shard.Row{"_id": "vtr_1", "booth_id": ""},
		shard.Row{"_id": "vtr_2", "booth_id": ""},
	)
	if err != nil {
		t.Fatal(err)
	}

	n, err := p.Update(ctx, map[string]any{"_id": "vtr_1"}, map[string]any{"booth_id": "BOOTH3-104"})
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("Update modified %d rows, want 1", n)
	}

	rows, err := p.Find(ctx, shard.Query{Filter: map[string]any{"_id": "vtr_1"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0]["booth_id"] != "BOOTH3-104" {
		t.Fatalf("update not visible: %v", rows)
	}
}

func TestInsertCopiesRows(t *testing.T) {
	ctx := context.Background()
	p := New().Partition("voters_101")

	r := shard.Row{"name": "asha"}
	if err := p.Insert(ctx, r); err != nil {
		t.Fatal(err)
	}
	r["name"] = "mutated"

	rows, err := p.Find(ctx, shard.Query{})
	if err != nil {
		t.Fatal(err)
	}
	if rows[0]["name"] != "asha" {
		t.Fatal("caller mutation leaked into the partition")
	}
}

func TestPartitionIdentity(t *testing.T) {
	s := New()
	if s.Partition("voters_101") != s.Partition("voters_101") {
		t.Fatal("expected the same partition for the same name")
	}
	if s.Partition("voters_101") == s.Partition("voters_102") {
		t.Fatal("expected distinct partitions for distinct names")
	}
}
