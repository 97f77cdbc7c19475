package runtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ashwinyue/qa-grader/internal/model"
	"github.com/ashwinyue/qa-grader/internal/testutil"
)

func newTestRuntime(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return NewClientWithHTTP("http://runtime.internal:9000/", testutil.NewTestClient(ts))
}

func TestClassify(t *testing.T) {
	var got ClassifyRequest
	c := newTestRuntime(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/classify" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		logits := make([][]float64, len(got.Pairs))
		for i := range logits {
			logits[i] = []float64{0.1, 0.2, 0.3, float64(i)}
		}
		_ = json.NewEncoder(w).Encode(ClassifyResponse{Logits: logits})
	})

	resp, err := c.Classify(context.Background(), &ClassifyRequest{
		Checkpoint:     "/models/grader-epoch=01.ckpt",
		CheckpointType: model.ArtifactCheckpoint,
		Pairs:          []PromptPair{{Context: "q [SEP] r1", Student: "s"}, {Context: "q [SEP] r2", Student: "s"}},
		MaxLen:         128,
	})
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if len(resp.Logits) != 2 || resp.Logits[1][3] != 1 {
		t.Errorf("Logits = %v", resp.Logits)
	}
	if got.MaxLen != 128 || got.Pairs[1].Context != "q [SEP] r2" {
		t.Errorf("request = %+v", got)
	}
}

func TestClassifyRowMismatch(t *testing.T) {
	c := newTestRuntime(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"logits":[[1,2,3,4]]}`))
	})

	_, err := c.Classify(context.Background(), &ClassifyRequest{Pairs: []PromptPair{{}, {}}})
	if !model.IsKind(err, model.KindMalformed) {
		t.Errorf("error = %v, want malformed", err)
	}
}

func TestRequestPaths(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ok","text":"q","logits":[]}`))
	}))
	t.Cleanup(ts.Close)

	hc, tr := testutil.NewRecordingClient(ts)
	c := NewClientWithHTTP("http://runtime.internal:9000/", hc)

	_, _ = c.Health(context.Background())
	_, _ = c.Generate(context.Background(), &GenerateRequest{Prompt: "p"})
	_, _ = c.Classify(context.Background(), &ClassifyRequest{})

	want := []string{"GET /health", "POST /v1/generate", "POST /v1/classify"}
	got := tr.Calls()
	if len(got) != len(want) {
		t.Fatalf("calls = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("call %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestGenerate(t *testing.T) {
	c := newTestRuntime(t, func(w http.ResponseWriter, r *http.Request) {
		var req GenerateRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.MaxNewTokens != 16 || req.TopP != 0.9 {
			t.Errorf("request = %+v", req)
		}
		_, _ = w.Write([]byte(`{"text":"What is the median?"}`))
	})

	resp, err := c.Generate(context.Background(), &GenerateRequest{Prompt: "Generate a question about: median", MaxNewTokens: 16, Temperature: 0.4, TopP: 0.9})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if resp.Text != "What is the median?" {
		t.Errorf("Text = %q", resp.Text)
	}
}

func TestTrain(t *testing.T) {
	c := newTestRuntime(t, func(w http.ResponseWriter, r *http.Request) {
		var req TrainRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.ResumeFrom != "/ckpt/qgen-epoch=03.ckpt" || req.SaveTopK != 1 {
			t.Errorf("request = %+v", req)
		}
		_ = json.NewEncoder(w).Encode(TrainResponse{
			BestModelPath: "/ckpt/qgen-epoch=05-val_loss=0.200.ckpt",
			BestEpoch:     5,
			BestScore:     0.2,
			History:       []EpochMetrics{{Epoch: 4, Metrics: map[string]float64{"val_loss": 0.3}}},
		})
	})

	resp, err := c.Train(context.Background(), &TrainRequest{Kind: model.ModelQGen, ResumeFrom: "/ckpt/qgen-epoch=03.ckpt", SaveTopK: 1})
	if err != nil {
		t.Fatalf("Train() error = %v", err)
	}
	if resp.BestEpoch != 5 || len(resp.History) != 1 {
		t.Errorf("resp = %+v", resp)
	}
}

func TestTrainWithoutBestPath(t *testing.T) {
	c := newTestRuntime(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})
	if _, err := c.Train(context.Background(), &TrainRequest{}); !model.IsKind(err, model.KindMalformed) {
		t.Errorf("error = %v, want malformed", err)
	}
}

func TestClientErrors(t *testing.T) {
	tests := []struct {
		name     string
		handler  http.HandlerFunc
		wantKind model.ErrorKind
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "CUDA out of memory", http.StatusInternalServerError)
			},
			wantKind: model.KindProvider,
		},
		{
			name: "bad body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte("<html>"))
			},
			wantKind: model.KindMalformed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestRuntime(t, tt.handler)
			_, err := c.Health(context.Background())
			if !model.IsKind(err, tt.wantKind) {
				t.Errorf("Health() error = %v, want kind %q", err, tt.wantKind)
			}
		})
	}
}

func TestHealthUnreachable(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	c := NewClientWithHTTP(url, http.DefaultClient)
	if _, err := c.Health(context.Background()); !model.IsKind(err, model.KindProvider) {
		t.Errorf("Health() error = %v, want provider", err)
	}
}
