package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ashwinyue/qa-grader/internal/model"
	"github.com/ashwinyue/qa-grader/internal/runtime"
	"github.com/ashwinyue/qa-grader/internal/service/inference"
	"github.com/ashwinyue/qa-grader/internal/testutil"
	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeQuestion struct {
	prompt string
	err    error
}

func (f *fakeQuestion) Generate(_ context.Context, prompt, checkpoint string) (*model.QuestionPrediction, error) {
	f.prompt = prompt
	if f.err != nil {
		return nil, f.err
	}
	if checkpoint == "" {
		checkpoint = "/models/qgen-epoch=01.ckpt"
	}
	return &model.QuestionPrediction{Prompt: prompt, GeneratedQuestion: "What is a mean?", Checkpoint: checkpoint}, nil
}

type fakeGrader struct {
	req *inference.ClassifyRequest
	err error
}

func (f *fakeGrader) Classify(_ context.Context, req *inference.ClassifyRequest) (*model.ClassifyResult, error) {
	f.req = req
	if f.err != nil {
		return nil, f.err
	}
	return &model.ClassifyResult{
		Question:       req.Question,
		StudentAnswer:  req.StudentAnswer,
		PredictedScore: 2,
		Probabilities:  []float64{0.1, 0.2, 0.6, 0.1},
		CheckpointUsed: "/models/grader-epoch=02.ckpt",
	}, nil
}

type fakeReviews struct {
	submitted []*model.Review
}

func (f *fakeReviews) Submit(_ context.Context, items []*model.Review) ([]*model.Review, error) {
	if len(items) == 0 {
		return nil, model.NewError("review.submit", model.KindInvalidArgument, errors.New("no review items"))
	}
	f.submitted = append(f.submitted, items...)
	return items, nil
}

func (f *fakeReviews) List(_ context.Context, limit int) ([]*model.Review, error) {
	return f.submitted, nil
}

type fakeFinder struct {
	artifact *model.Artifact
}

func (f *fakeFinder) Latest(root, marker string) (*model.Artifact, error) {
	if f.artifact == nil {
		return nil, model.NewError("checkpoint.latest", model.KindNotFound, model.ErrNotFound)
	}
	return f.artifact, nil
}

type fakeHealth struct{ err error }

func (f fakeHealth) Health(context.Context) (*runtime.HealthResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &runtime.HealthResponse{Status: "ok"}, nil
}

func serve(method, path, body string, h gin.HandlerFunc, route string) *httptest.ResponseRecorder {
	r := gin.New()
	r.Handle(method, route, h)
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestGenerateQuestion(t *testing.T) {
	fh := testutil.NewFileHelper(t)
	contexts := fh.WriteJSONL("contexts.jsonl", model.TopicContext{Topic: "variance", Context: "Variance measures spread."})

	q := &fakeQuestion{}
	h := NewInferenceHandler(q, nil, contexts)

	w := serve(http.MethodGet, "/v1/generate_question?topic=variance", "", h.GenerateQuestion, "/v1/generate_question")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp GenerateQuestionResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Prompt != "Generate a question about: variance" || q.prompt != resp.Prompt {
		t.Errorf("prompt = %q", resp.Prompt)
	}
	if resp.Context != "Variance measures spread." || resp.GeneratedQuestion != "What is a mean?" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestGenerateQuestionErrors(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		err        error
		wantStatus int
	}{
		{name: "missing topic", path: "/q", wantStatus: http.StatusBadRequest},
		{name: "no checkpoint", path: "/q?topic=x", err: model.NewError("checkpoint.latest", model.KindNotFound, model.ErrNotFound), wantStatus: http.StatusNotFound},
		{name: "unknown artifact", path: "/q?topic=x", err: model.NewError("checkpoint.resolve", model.KindUnsupported, errors.New("unknown checkpoint type")), wantStatus: http.StatusUnprocessableEntity},
		{name: "runtime down", path: "/q?topic=x", err: model.NewError("runtime.generate", model.KindProvider, errors.New("refused")), wantStatus: http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewInferenceHandler(&fakeQuestion{err: tt.err}, nil, "")
			w := serve(http.MethodGet, tt.path, "", h.GenerateQuestion, "/q")
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestClassifyAnswer(t *testing.T) {
	g := &fakeGrader{}
	h := NewInferenceHandler(nil, g, "")

	body := `{"question":"What is variance?","student_answer":"spread","ref_answers":["a","b"],"reduction":"max"}`
	w := serve(http.MethodPost, "/c", body, h.ClassifyAnswer, "/c")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if g.req.Reduction != "max" || len(g.req.RefAnswers) != 2 {
		t.Errorf("request = %+v", g.req)
	}

	var res model.ClassifyResult
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if res.PredictedScore != 2 || len(res.Probabilities) != 4 {
		t.Errorf("result = %+v", res)
	}

	if w := serve(http.MethodPost, "/c", "{", h.ClassifyAnswer, "/c"); w.Code != http.StatusBadRequest {
		t.Errorf("bad json status = %d", w.Code)
	}
}

func TestSubmitReviews(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantCount  int
	}{
		{name: "array", body: `[{"question":"a"},{"question":"b"}]`, wantStatus: http.StatusCreated, wantCount: 2},
		{name: "wrapped", body: `{"items":[{"question":"a"}]}`, wantStatus: http.StatusCreated, wantCount: 1},
		{name: "empty array", body: `[]`, wantStatus: http.StatusBadRequest},
		{name: "empty object", body: `{}`, wantStatus: http.StatusBadRequest},
		{name: "not json", body: `nope`, wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeReviews{}
			h := NewReviewHandler(svc)
			w := serve(http.MethodPost, "/r", tt.body, h.SubmitReviews, "/r")
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.wantStatus, w.Body.String())
			}
			if len(svc.submitted) != tt.wantCount {
				t.Errorf("submitted = %d, want %d", len(svc.submitted), tt.wantCount)
			}
		})
	}
}

func TestListReviews(t *testing.T) {
	h := NewReviewHandler(&fakeReviews{submitted: []*model.Review{{Question: "a"}}})

	if w := serve(http.MethodGet, "/r?limit=5", "", h.ListReviews, "/r"); w.Code != http.StatusOK {
		t.Errorf("status = %d", w.Code)
	}
	if w := serve(http.MethodGet, "/r?limit=abc", "", h.ListReviews, "/r"); w.Code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d", w.Code)
	}
}

func TestLatestCheckpoint(t *testing.T) {
	fh := testutil.NewFileHelper(t)
	path := fh.WriteFile("grader-epoch=04.ckpt", "")

	h := NewCheckpointHandler(&fakeFinder{artifact: &model.Artifact{Path: path, Type: model.ArtifactCheckpoint}}, fh.Root())

	w := serve(http.MethodGet, "/l?kind=grader", "", h.Latest, "/l")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp LatestResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Kind != model.ModelGrader || resp.Artifact.Path != path || resp.Manifest != nil {
		t.Errorf("resp = %+v", resp)
	}

	if w := serve(http.MethodGet, "/l?kind=bert", "", h.Latest, "/l"); w.Code != http.StatusBadRequest {
		t.Errorf("unknown kind status = %d", w.Code)
	}

	empty := NewCheckpointHandler(&fakeFinder{}, fh.Root())
	if w := serve(http.MethodGet, "/l?kind=qgen", "", empty.Latest, "/l"); w.Code != http.StatusNotFound {
		t.Errorf("missing status = %d", w.Code)
	}
}

type fakeCache int

func (f fakeCache) Len() int { return int(f) }

func TestHealth(t *testing.T) {
	for _, tc := range []struct {
		rt   HealthChecker
		want string
	}{
		{fakeHealth{}, "ok"},
		{fakeHealth{err: errors.New("down")}, "unavailable"},
	} {
		h := NewSystemHandler(tc.rt, nil, "1.0.0")
		w := serve(http.MethodGet, "/health", "", h.Health, "/health")
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d", w.Code)
		}
		var body map[string]interface{}
		_ = json.Unmarshal(w.Body.Bytes(), &body)
		if body["runtime"] != tc.want {
			t.Errorf("runtime = %v, want %q", body["runtime"], tc.want)
		}
		if _, ok := body["cache_entries"]; ok {
			t.Errorf("cache_entries reported without a cache")
		}
	}
}

func TestHealthCacheEntries(t *testing.T) {
	h := NewSystemHandler(nil, fakeCache(7), "1.0.0")
	w := serve(http.MethodGet, "/health", "", h.Health, "/health")

	var body struct {
		Status       string `json:"status"`
		CacheEntries int    `json:"cache_entries"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Status != "ok" || body.CacheEntries != 7 {
		t.Errorf("health = %+v", body)
	}
}

type fakeStore struct {
	objects map[string]string
}

func (f *fakeStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	data, ok := f.objects[key]
	if !ok {
		return nil, model.NewError("storage.get", model.KindNotFound, model.ErrNotFound)
	}
	return io.NopCloser(strings.NewReader(data)), nil
}

func TestArtifactDownload(t *testing.T) {
	store := &fakeStore{objects: map[string]string{"run-1/abc-manifest.json": `{"epoch":4}`}}
	h := NewArtifactHandler(store, "/artifacts/")
	if h.Route() != "/artifacts/*key" {
		t.Fatalf("Route() = %q", h.Route())
	}

	tests := []struct {
		name        string
		path        string
		wantStatus  int
		wantBody    string
		wantContent string
	}{
		{name: "found", path: "/artifacts/run-1/abc-manifest.json", wantStatus: http.StatusOK, wantBody: `{"epoch":4}`, wantContent: "application/json"},
		{name: "missing", path: "/artifacts/run-1/nope.json", wantStatus: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(http.MethodGet, tt.path, "", h.Download, h.Route())
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
			}
			if tt.wantBody != "" && w.Body.String() != tt.wantBody {
				t.Errorf("body = %q", w.Body.String())
			}
			if tt.wantContent != "" && !strings.HasPrefix(w.Header().Get("Content-Type"), tt.wantContent) {
				t.Errorf("Content-Type = %q", w.Header().Get("Content-Type"))
			}
		})
	}

	if NewArtifactHandler(store, "http://cdn.example.com/qa").Route() != "" {
		t.Error("Route() for external prefix should be empty")
	}
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{model.NewError("x", model.KindInvalidArgument, errors.New("x")), http.StatusBadRequest},
		{model.NewError("x", model.KindRateLimited, errors.New("x")), http.StatusBadGateway},
		{model.NewError("x", model.KindExhausted, errors.New("x")), http.StatusBadGateway},
		{model.NewError("x", model.KindMalformed, errors.New("x")), http.StatusInternalServerError},
		{errors.New("plain"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := StatusOf(tt.err); got != tt.want {
			t.Errorf("StatusOf(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
