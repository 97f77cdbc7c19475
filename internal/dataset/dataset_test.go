package dataset

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sync"
	"testing"

	"github.com/ashwinyue/qa-grader/internal/model"
	"github.com/ashwinyue/qa-grader/internal/testutil"
)

func TestGradedRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		rec  model.GradedAnswer
	}{
		{
			name: "full record",
			rec: model.GradedAnswer{
				QID:           "Q00007",
				Question:      "What is the median?",
				RefAnswers:    []string{"The middle value", "50th percentile"},
				StudentAnswer: "the middle",
				Score:         2,
			},
		},
		{name: "zero score", rec: model.GradedAnswer{QID: "Q00000", Question: "q", RefAnswers: []string{"r"}, StudentAnswer: "", Score: 0}},
		{name: "max score", rec: model.GradedAnswer{Question: "q", RefAnswers: []string{}, StudentAnswer: "s", Score: 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line, err := EncodeGraded(&tt.rec)
			if err != nil {
				t.Fatalf("EncodeGraded() error = %v", err)
			}

			var raw map[string]interface{}
			if err := json.Unmarshal(line, &raw); err != nil {
				t.Fatalf("encoded line is not JSON: %v", err)
			}
			if _, ok := raw["score"].(float64); !ok {
				t.Errorf("score encoded as %T, want number", raw["score"])
			}

			got, err := DecodeGraded(line)
			if err != nil {
				t.Fatalf("DecodeGraded() error = %v", err)
			}
			if !reflect.DeepEqual(*got, tt.rec) {
				t.Errorf("round trip = %+v, want %+v", *got, tt.rec)
			}
		})
	}
}

func TestDecodeGradedRejects(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		wantKind model.ErrorKind
	}{
		{name: "score too high", line: `{"question":"q","ref_answers":[],"student_answer":"s","score":4}`, wantKind: model.KindInvalidArgument},
		{name: "negative score", line: `{"question":"q","ref_answers":[],"student_answer":"s","score":-1}`, wantKind: model.KindInvalidArgument},
		{name: "fractional score", line: `{"question":"q","ref_answers":[],"student_answer":"s","score":1.5}`, wantKind: model.KindInvalidArgument},
		{name: "not json", line: `{"question":`, wantKind: model.KindMalformed},
		{name: "empty", line: "   ", wantKind: model.KindMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeGraded([]byte(tt.line))
			if !model.IsKind(err, tt.wantKind) {
				t.Errorf("DecodeGraded() error = %v, want kind %q", err, tt.wantKind)
			}
		})
	}
}

func TestEncodeGradedRejectsOutOfRange(t *testing.T) {
	_, err := EncodeGraded(&model.GradedAnswer{Question: "q", Score: 9})
	if !model.IsKind(err, model.KindInvalidArgument) {
		t.Errorf("EncodeGraded() error = %v, want invalid_argument", err)
	}
}

func TestReadAppendCount(t *testing.T) {
	fh := testutil.NewFileHelper(t)
	path := fh.Path("data", "qa.jsonl")

	n, err := CountLines(path)
	if err != nil || n != 0 {
		t.Fatalf("CountLines(missing) = %d, %v", n, err)
	}
	if _, err := ReadJSONL[model.QARecord](path); !model.IsKind(err, model.KindNotFound) {
		t.Errorf("ReadJSONL(missing) error = %v, want not_found", err)
	}

	first := model.QARecord{Input: "generate a conceptual question about: mean", Output: model.QAItem{Question: "What is a mean?", Answers: []string{"average"}, Type: "conceptual"}}
	second := model.QARecord{Input: "generate a numeric question about: mean", Output: model.QAItem{Question: "Mean of 1,2,3?", Answers: []string{"2"}, Type: "numeric"}}

	if err := AppendJSONL(path, first); err != nil {
		t.Fatalf("AppendJSONL() error = %v", err)
	}
	if err := AppendJSONL(path, second); err != nil {
		t.Fatalf("AppendJSONL() error = %v", err)
	}

	n, _ = CountLines(path)
	if n != 2 {
		t.Errorf("CountLines() = %d, want 2", n)
	}

	got, err := ReadJSONL[model.QARecord](path)
	if err != nil {
		t.Fatalf("ReadJSONL() error = %v", err)
	}
	if !reflect.DeepEqual(got, []model.QARecord{first, second}) {
		t.Errorf("ReadJSONL() = %+v", got)
	}
}

func TestReadJSONLMalformedLine(t *testing.T) {
	fh := testutil.NewFileHelper(t)
	path := fh.WriteJSONL("bad.jsonl", model.TopicContext{Topic: "mean"}, "not json")

	_, err := ReadJSONL[model.TopicContext](path)
	if !model.IsKind(err, model.KindMalformed) {
		t.Errorf("ReadJSONL() error = %v, want malformed", err)
	}
}

func TestReadJSONLGradedOutOfRange(t *testing.T) {
	fh := testutil.NewFileHelper(t)
	path := fh.WriteJSONL("graded.jsonl", `{"question":"q","ref_answers":["r"],"student_answer":"s","score":7}`)

	_, err := ReadJSONL[model.GradedAnswer](path)
	if !model.IsKind(err, model.KindInvalidArgument) {
		t.Errorf("ReadJSONL() error = %v, want invalid_argument", err)
	}
}

func TestReadJSONLLenient(t *testing.T) {
	fh := testutil.NewFileHelper(t)
	path := fh.WriteJSONL("mixed.jsonl", model.TopicContext{Topic: "mean", Context: "average"}, "not json", model.TopicContext{Topic: "mode"})

	var skipped []int
	got, err := ReadJSONLLenient[model.TopicContext](path, func(line int, err error) {
		skipped = append(skipped, line)
	})
	if err != nil {
		t.Fatalf("ReadJSONLLenient() error = %v", err)
	}
	if len(got) != 2 || got[0].Topic != "mean" || got[1].Topic != "mode" {
		t.Errorf("ReadJSONLLenient() = %+v", got)
	}
	if !reflect.DeepEqual(skipped, []int{2}) {
		t.Errorf("skipped lines = %v, want [2]", skipped)
	}

	if _, err := ReadJSONLLenient[model.TopicContext](fh.Path("missing.jsonl"), nil); !model.IsKind(err, model.KindNotFound) {
		t.Errorf("ReadJSONLLenient(missing) error = %v, want not_found", err)
	}
}

func TestAppendAfterTornLine(t *testing.T) {
	fh := testutil.NewFileHelper(t)
	path := fh.WriteFile("torn.jsonl", `{"topic":"mean","context":"average"}`+"\n"+`{"topic":"mo`)

	if err := AppendJSONL(path, model.TopicContext{Topic: "median", Context: "middle"}); err != nil {
		t.Fatalf("AppendJSONL() error = %v", err)
	}

	lines := fh.ReadLines(path)
	if len(lines) != 3 {
		t.Fatalf("lines = %q, want 3", lines)
	}
	if lines[1] != `{"topic":"mo` {
		t.Errorf("torn line = %q", lines[1])
	}

	got, err := ReadJSONLLenient[model.TopicContext](path, nil)
	if err != nil {
		t.Fatalf("ReadJSONLLenient() error = %v", err)
	}
	if len(got) != 2 || got[1].Topic != "median" {
		t.Errorf("ReadJSONLLenient() = %+v", got)
	}
}

func TestAppenderConcurrent(t *testing.T) {
	fh := testutil.NewFileHelper(t)
	a := NewAppender(fh.Path("reviews.jsonl"))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := a.Append(model.TopicContext{Topic: fmt.Sprintf("t%d", i), Context: "c"}); err != nil {
				t.Errorf("Append() error = %v", err)
			}
		}(i)
	}
	wg.Wait()

	rows, err := ReadJSONL[model.TopicContext](a.Path())
	if err != nil {
		t.Fatalf("ReadJSONL() error = %v", err)
	}
	if len(rows) != 20 {
		t.Errorf("got %d rows, want 20", len(rows))
	}
	if n, _ := a.Count(); n != 20 {
		t.Errorf("Count() = %d, want 20", n)
	}
}

func TestWriteJSONL(t *testing.T) {
	fh := testutil.NewFileHelper(t)
	path := fh.Path("run", "train.jsonl")
	rows := []model.QGenExample{{Input: "a", Target: "b"}, {Input: "c", Target: "d"}}

	if err := WriteJSONL(path, rows); err != nil {
		t.Fatalf("WriteJSONL() error = %v", err)
	}
	if err := WriteJSONL(path, rows[:1]); err != nil {
		t.Fatalf("WriteJSONL() rewrite error = %v", err)
	}
	if lines := fh.ReadLines(path); len(lines) != 1 {
		t.Errorf("got %d lines after rewrite, want 1", len(lines))
	}
}

func TestLoadContexts(t *testing.T) {
	fh := testutil.NewFileHelper(t)
	path := fh.WriteJSONL("context.jsonl",
		model.TopicContext{Topic: "mean", Context: "The mean is the average."},
		"{broken",
		model.TopicContext{Topic: "", Context: "orphan"},
		model.TopicContext{Topic: "median", Context: "The middle value."},
	)

	got := LoadContexts(path)
	want := map[string]string{"mean": "The mean is the average.", "median": "The middle value."}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("LoadContexts() = %v, want %v", got, want)
	}

	if got := LoadContexts(fh.Path("missing.jsonl")); len(got) != 0 {
		t.Errorf("LoadContexts(missing) = %v, want empty", got)
	}
}

func TestExplodeGraded(t *testing.T) {
	rows := []model.GradedAnswer{
		{Question: "What is variance?", RefAnswers: []string{"spread", "mean squared deviation"}, StudentAnswer: "spread", Score: 3},
		{Question: "No refs", RefAnswers: nil, StudentAnswer: "x", Score: 0},
	}

	tests := []struct {
		name    string
		useRefs bool
		want    []model.ClassifierExample
	}{
		{
			name:    "with refs",
			useRefs: true,
			want: []model.ClassifierExample{
				{Context: "What is variance? [SEP] spread", Student: "spread", Label: 3},
				{Context: "What is variance? [SEP] mean squared deviation", Student: "spread", Label: 3},
			},
		},
		{
			name:    "question only",
			useRefs: false,
			want: []model.ClassifierExample{
				{Context: "What is variance?", Student: "spread", Label: 3},
				{Context: "What is variance?", Student: "spread", Label: 3},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExplodeGraded(rows, tt.useRefs)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ExplodeGraded() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestBuildQGenExamples(t *testing.T) {
	rows := []model.QARecord{
		{Input: "generate a conceptual question about: mean", Output: model.QAItem{Question: "What is a mean?"}},
		{Input: "generate a numeric question about: mode", Output: model.QAItem{Question: "Mode of 1,1,2?"}},
		{Input: "no topic here", Output: model.QAItem{Question: "?"}},
	}
	contexts := map[string]string{"mean": "Average of values."}

	got := BuildQGenExamples(rows, contexts, true)
	want := []model.QGenExample{
		{Input: "generate a conceptual question about: mean [SEP] Average of values.", Target: "What is a mean?"},
		{Input: "generate a numeric question about: mode", Target: "Mode of 1,1,2?"},
		{Input: "no topic here", Target: "?"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("BuildQGenExamples() = %+v, want %+v", got, want)
	}

	plain := BuildQGenExamples(rows, contexts, false)
	if plain[0].Input != rows[0].Input {
		t.Errorf("without context input = %q", plain[0].Input)
	}
}

func TestTopicOf(t *testing.T) {
	tests := []struct {
		input string
		want  string
		ok    bool
	}{
		{"generate a conceptual question about: standard deviation", "standard deviation", true},
		{"a: b: c", "b: c", true},
		{"no colon", "", false},
	}
	for _, tt := range tests {
		got, ok := TopicOf(tt.input)
		if got != tt.want || ok != tt.ok {
			t.Errorf("TopicOf(%q) = %q, %v; want %q, %v", tt.input, got, ok, tt.want, tt.ok)
		}
	}
}

func TestSplit(t *testing.T) {
	rows := make([]int, 100)
	for i := range rows {
		rows[i] = i
	}

	tests := []struct {
		name      string
		valSplit  float64
		wantTrain int
		wantVal   int
	}{
		{name: "ten percent", valSplit: 0.1, wantTrain: 90, wantVal: 10},
		{name: "no validation", valSplit: 0, wantTrain: 100, wantVal: 0},
		{name: "all validation", valSplit: 1, wantTrain: 0, wantVal: 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			train, val := Split(rows, tt.valSplit, 42)
			if len(train) != tt.wantTrain || len(val) != tt.wantVal {
				t.Errorf("Split() sizes = %d/%d, want %d/%d", len(train), len(val), tt.wantTrain, tt.wantVal)
			}
		})
	}

	a, _ := Split(rows, 0.2, 7)
	b, _ := Split(rows, 0.2, 7)
	if !reflect.DeepEqual(a, b) {
		t.Error("Split() is not deterministic for a fixed seed")
	}
	if rows[0] != 0 || rows[99] != 99 {
		t.Error("Split() mutated its input")
	}
}
