package review

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/ashwinyue/qa-grader/internal/dataset"
	"github.com/ashwinyue/qa-grader/internal/model"
	"github.com/ashwinyue/qa-grader/internal/testutil"
)

type mockReviewRepo struct {
	created []*model.Review
	err     error
}

func (m *mockReviewRepo) CreateBatch(_ context.Context, reviews []*model.Review) error {
	if m.err != nil {
		return m.err
	}
	m.created = append(m.created, reviews...)
	return nil
}

func (m *mockReviewRepo) ListRecent(_ context.Context, limit int) ([]*model.Review, error) {
	var out []*model.Review
	for i := len(m.created) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.created[i])
	}
	return out, nil
}

func TestSubmit(t *testing.T) {
	h := testutil.NewFileHelper(t)
	path := h.Path("data", "reviews.jsonl")
	repo := &mockReviewRepo{}

	svc := NewService(path, repo, nil)
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	got, err := svc.Submit(context.Background(), []*model.Review{
		{Question: "What is a prior?", Approved: true},
		{Question: "Define bias.", Comment: "too vague"},
	})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if len(got) != 2 || got[0].ID == "" || got[0].ID == got[1].ID {
		t.Fatalf("ids not assigned: %+v", got)
	}
	if !got[1].CreatedAt.Equal(fixed) {
		t.Errorf("CreatedAt = %v", got[1].CreatedAt)
	}
	if lines := h.ReadLines(path); len(lines) != 2 {
		t.Errorf("review log has %d lines, want 2", len(lines))
	}
	if len(repo.created) != 2 {
		t.Errorf("repo received %d reviews", len(repo.created))
	}
}

func TestSubmitInvalid(t *testing.T) {
	h := testutil.NewFileHelper(t)

	tests := []struct {
		name  string
		items []*model.Review
	}{
		{name: "empty", items: nil},
		{name: "missing question", items: []*model.Review{{Question: "ok"}, {Question: "  "}}},
		{name: "nil item", items: []*model.Review{nil}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(h.Path(tt.name+".jsonl"), nil, nil)
			if _, err := svc.Submit(context.Background(), tt.items); !model.IsKind(err, model.KindInvalidArgument) {
				t.Errorf("Submit() error = %v, want invalid_argument", err)
			}
		})
	}
}

func TestSubmitRepoFailure(t *testing.T) {
	h := testutil.NewFileHelper(t)
	svc := NewService(h.Path("reviews.jsonl"), &mockReviewRepo{err: errors.New("db down")}, nil)

	_, err := svc.Submit(context.Background(), []*model.Review{{Question: "q"}})
	if !model.IsKind(err, model.KindInternal) {
		t.Errorf("Submit() error = %v, want internal", err)
	}
	if n, _ := dataset.CountLines(h.Path("reviews.jsonl")); n != 0 {
		t.Errorf("review log has %d lines after failed insert, want 0", n)
	}
}

func TestSubmitRetryAfterRepoFailure(t *testing.T) {
	h := testutil.NewFileHelper(t)
	path := h.Path("reviews.jsonl")
	repo := &mockReviewRepo{err: errors.New("db down")}
	svc := NewService(path, repo, nil)

	if _, err := svc.Submit(context.Background(), []*model.Review{{Question: "q"}}); err == nil {
		t.Fatal("Submit() succeeded with failing repo")
	}

	repo.err = nil
	if _, err := svc.Submit(context.Background(), []*model.Review{{Question: "q"}}); err != nil {
		t.Fatalf("Submit() retry error = %v", err)
	}
	if lines := h.ReadLines(path); len(lines) != 1 {
		t.Errorf("review log has %d lines, want 1", len(lines))
	}
	if len(repo.created) != 1 {
		t.Errorf("repo received %d reviews, want 1", len(repo.created))
	}
}

func TestListFromLog(t *testing.T) {
	h := testutil.NewFileHelper(t)
	svc := NewService(h.Path("reviews.jsonl"), nil, nil)

	if got, err := svc.List(context.Background(), 10); err != nil || len(got) != 0 {
		t.Fatalf("List() on missing log = %v, %v", got, err)
	}

	for _, q := range []string{"q1", "q2", "q3"} {
		if _, err := svc.Submit(context.Background(), []*model.Review{{Question: q}}); err != nil {
			t.Fatal(err)
		}
	}

	got, err := svc.List(context.Background(), 2)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(got) != 2 || got[0].Question != "q3" || got[1].Question != "q2" {
		t.Errorf("List() = %+v", got)
	}
}

func TestListSkipsTornLine(t *testing.T) {
	h := testutil.NewFileHelper(t)
	path := h.Path("reviews.jsonl")
	svc := NewService(path, nil, nil)
	ctx := context.Background()

	if _, err := svc.Submit(ctx, []*model.Review{{Question: "first"}}); err != nil {
		t.Fatal(err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString(`{"id":"x","question":"tor`); err != nil {
		t.Fatal(err)
	}
	f.Close()

	if _, err := svc.Submit(ctx, []*model.Review{{Question: "second"}}); err != nil {
		t.Fatalf("Submit() after torn line error = %v", err)
	}

	got, err := svc.List(ctx, 10)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(got) != 2 || got[0].Question != "second" || got[1].Question != "first" {
		t.Errorf("List() = %+v", got)
	}
}

func TestListFromRepo(t *testing.T) {
	h := testutil.NewFileHelper(t)
	repo := &mockReviewRepo{}
	svc := NewService(h.Path("reviews.jsonl"), repo, nil)

	_, _ = svc.Submit(context.Background(), []*model.Review{{Question: "a"}, {Question: "b"}})

	got, err := svc.List(context.Background(), 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(got) != 2 || got[0].Question != "b" {
		t.Errorf("List() = %+v", got)
	}
}
