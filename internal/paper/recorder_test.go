package paper

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"survivor-go/internal/execution"
)

func TestJSONLRecorder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "paper", "fills.jsonl")

	recorder, err := NewJSONLRecorder(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewJSONLRecorder error: %v", err)
	}
	fill := execution.Fill{OrderID: "p-1", Symbol: "NIFTY2580724300PE", Side: execution.Sell, Qty: 75, Price: 12.5, Tag: "Survivor"}
	recorder.Record(fill)
	if err := recorder.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}
	recorder.Record(fill) // after close: ignored

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open recorded file: %v", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lines := 0
	var decoded execution.Fill
	for scanner.Scan() {
		lines++
		if err := json.Unmarshal(scanner.Bytes(), &decoded); err != nil {
			t.Fatalf("json decode: %v", err)
		}
	}
	if lines != 1 {
		t.Fatalf("expected one line, got %d", lines)
	}
	if decoded.Symbol != fill.Symbol || decoded.Side != fill.Side || decoded.Qty != 75 {
		t.Fatalf("unexpected decoded fill %+v", decoded)
	}
}
