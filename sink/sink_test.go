package sink

import "testing"

func TestBodyNewlineDelimited(t *testing.T) {
	body, err := Body([]any{map[string]int{"a": 1}, map[string]int{"b": 2}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "{\"a\":1}\n{\"b\":2}\n"
	if string(body) != want {
		t.Fatalf("expected %q, got %q", want, string(body))
	}
}

func TestChunkSplitsEvenly(t *testing.T) {
	data := []any{1, 2, 3, 4, 5}
	batches := Chunk(data, 2)
	if len(batches) != 3 {
		t.Fatalf("expected 3 batches, got %d", len(batches))
	}
	if len(batches[0]) != 2 || len(batches[2]) != 1 {
		t.Fatalf("unexpected batch sizes: %v", batches)
	}
}

func TestChunkSizeNeverZero(t *testing.T) {
	data := []any{1, 2, 3}
	_, size, err := ChunkSize(data, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if size < 1 {
		t.Fatalf("expected chunk size >= 1, got %d", size)
	}
}

func TestChunkSizeSingleBatchWhenSmall(t *testing.T) {
	data := []any{map[string]string{"a": "1"}}
	numBatches, size, err := ChunkSize(data, MaxPayloadBytesize)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if numBatches != 1 || size != 1 {
		t.Fatalf("expected single batch of size 1, got numBatches=%d size=%d", numBatches, size)
	}
}
