package translate

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
)

func TestFactoryReturnsGeminiTranslator(t *testing.T) {
	ctx := context.Background()
	opts := Options{TargetLanguage: "Traditional Chinese"}
	translator, err := Factory(ctx, ProviderGemini, "fake-key", opts)
	if err != nil {
		t.Fatalf("Factory(ProviderGemini) returned error: %v", err)
	}
	if _, ok := translator.(*GeminiTranslator); !ok {
		t.Errorf("expected *GeminiTranslator, got %T", translator)
	}
}

func TestFactoryReturnsOpenAITranslator(t *testing.T) {
	ctx := context.Background()
	opts := Options{TargetLanguage: "Spanish"}
	translator, err := Factory(ctx, ProviderOpenAI, "fake-key", opts)
	if err != nil {
		t.Fatalf("Factory(ProviderOpenAI) returned error: %v", err)
	}
	if _, ok := translator.(*OpenAITranslator); !ok {
		t.Errorf("expected *OpenAITranslator, got %T", translator)
	}
}

func TestFactoryRequiresTargetLanguage(t *testing.T) {
	ctx := context.Background()
	opts := Options{} // no TargetLanguage
	_, err := Factory(ctx, ProviderGemini, "fake-key", opts)
	if err == nil {
		t.Error("expected error for missing target language")
	}
}

func TestFactoryRejectsUnknownProvider(t *testing.T) {
	ctx := context.Background()
	opts := Options{TargetLanguage: "French"}
	_, err := Factory(ctx, Provider("unknown"), "fake-key", opts)
	if err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestTranslatorsImplementConcurrentTranslator(t *testing.T) {
	ctx := context.Background()
	opts := Options{TargetLanguage: "Korean"}
	for _, provider := range []Provider{
		ProviderGemini,
		ProviderOpenAI,
		ProviderAnthropic,
	} {
		translator, err := Factory(ctx, provider, "fake-key", opts)
		if err != nil {
			t.Fatalf("Factory(%s) error: %v", provider, err)
		}
		if _, ok := translator.(ConcurrentTranslator); !ok {
			t.Errorf("%s translator should implement ConcurrentTranslator", provider)
		}
	}
}

func makeItems(n int) []TranslationItem {
	items := make([]TranslationItem, n)
	for i := range items {
		items[i] = TranslationItem{Index: i, Text: fmt.Sprintf("line %d", i)}
	}
	return items
}

func echoBatch(_ context.Context, items []TranslationItem) ([]TranslationResult, error) {
	results := make([]TranslationResult, len(items))
	for i, item := range items {
		results[i] = TranslationResult{Index: item.Index, Text: item.Text}
	}
	return results, nil
}

func TestSplitBatches(t *testing.T) {
	batches := splitBatches(makeItems(7), 3)
	if len(batches) != 3 {
		t.Fatalf("expected 3 batches, got %d", len(batches))
	}
	sizes := []int{3, 3, 1}
	for i, want := range sizes {
		if len(batches[i]) != want {
			t.Errorf("batch %d: got %d items, want %d", i, len(batches[i]), want)
		}
	}
	if batches[2][0].Index != 6 {
		t.Errorf("last batch should hold the trailing item, got index %d", batches[2][0].Index)
	}
}

func TestRunBatchesEmpty(t *testing.T) {
	results, err := runBatches(context.Background(), nil, 10, echoBatch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}
}

func TestRunBatchesPreservesOrder(t *testing.T) {
	results, err := runBatches(context.Background(), makeItems(25), 10, echoBatch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 25 {
		t.Fatalf("expected 25 results, got %d", len(results))
	}
	for i, r := range results {
		if r.Index != i {
			t.Fatalf("result %d out of order: index %d", i, r.Index)
		}
	}
}

func TestRunBatchesWrapsFailure(t *testing.T) {
	calls := 0
	fn := func(ctx context.Context, items []TranslationItem) ([]TranslationResult, error) {
		calls++
		if calls == 2 {
			return nil, fmt.Errorf("rate limited")
		}
		return echoBatch(ctx, items)
	}

	_, err := runBatches(context.Background(), makeItems(25), 10, fn)
	if err == nil {
		t.Fatal("expected error from failing batch")
	}
	if !strings.Contains(err.Error(), "batch 1") {
		t.Errorf("error should name the failing batch: %v", err)
	}
	if calls != 2 {
		t.Errorf("sequential run should stop at the failure, made %d calls", calls)
	}
}

func TestRunBatchesConcurrentPreservesOrder(t *testing.T) {
	results, err := runBatchesConcurrent(
		context.Background(),
		makeItems(95),
		10,
		4,
		echoBatch,
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 95 {
		t.Fatalf("expected 95 results, got %d", len(results))
	}
	for i, r := range results {
		if r.Index != i {
			t.Fatalf("result %d out of order: index %d", i, r.Index)
		}
	}
}

func TestRunBatchesConcurrentSingleBatchSkipsPool(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	fn := func(ctx context.Context, items []TranslationItem) ([]TranslationResult, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		return echoBatch(ctx, items)
	}

	results, err := runBatchesConcurrent(context.Background(), makeItems(5), 10, 4, fn)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected a single batch call, got %d", calls)
	}
	if len(results) != 5 {
		t.Errorf("expected 5 results, got %d", len(results))
	}
}

func TestRunBatchesConcurrentReportsFirstFailure(t *testing.T) {
	fn := func(ctx context.Context, items []TranslationItem) ([]TranslationResult, error) {
		if items[0].Index == 10 {
			return nil, fmt.Errorf("boom")
		}
		return echoBatch(ctx, items)
	}

	_, err := runBatchesConcurrent(context.Background(), makeItems(50), 10, 3, fn)
	if err == nil {
		t.Fatal("expected error from failing batch")
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Errorf("error should wrap the batch failure: %v", err)
	}
}

func TestBuildPrompt(t *testing.T) {
	opts := Options{
		InputLanguage:  "Japanese",
		TargetLanguage: "Traditional Chinese",
	}

	items := []TranslationItem{
		{Index: 0, Text: "こんにちは"},
		{Index: 1, Text: "さようなら"},
	}

	prompt := BuildPrompt(opts, items)

	if !strings.Contains(prompt, "Japanese subtitle texts") {
		t.Error("prompt should contain input language")
	}
	if !strings.Contains(prompt, "to Traditional Chinese") {
		t.Error("prompt should contain target language")
	}
	if !strings.Contains(prompt, "こんにちは") {
		t.Error("prompt should contain input text")
	}
	if !strings.Contains(prompt, `"index": 0`) {
		t.Error("prompt should contain index")
	}
}

func TestBuildPromptWithoutInputLanguage(t *testing.T) {
	opts := Options{TargetLanguage: "Spanish"}

	prompt := BuildPrompt(opts, []TranslationItem{{Index: 0, Text: "Hello"}})

	if strings.Contains(prompt, "following  subtitle") {
		t.Error("prompt should not leave a gap for the missing input language")
	}
	if !strings.Contains(prompt, "to Spanish") {
		t.Error("prompt should contain target language")
	}
}

func TestBuildPromptIncludesAdditionalInstructions(t *testing.T) {
	opts := Options{
		TargetLanguage: "Traditional Chinese",
		Prompt:         "Keep honorifics untranslated.",
	}

	prompt := BuildPrompt(opts, []TranslationItem{{Index: 0, Text: "Hello"}})

	if !strings.Contains(prompt, "Keep honorifics untranslated.") {
		t.Error("prompt should include additional instructions")
	}
}
