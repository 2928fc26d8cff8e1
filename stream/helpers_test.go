package stream

import (
	"context"
	"testing"

	"github.com/aws/aws-lambda-go/events"
)

// --- getStringAttr Tests ---

func TestGetStringAttr(t *testing.T) {
	image := map[string]events.DynamoDBAttributeValue{
		"entity_ref": events.NewStringAttribute("library.Book#b1"),
		"empty":      events.NewStringAttribute(""),
		"unicode":    events.NewStringAttribute("日本語#テスト"),
		"ttl":        events.NewNumberAttribute("42"),
	}

	tests := []struct {
		key      string
		expected string
	}{
		{"entity_ref", "library.Book#b1"},
		{"empty", ""},
		{"unicode", "日本語#テスト"},
		{"missing", ""},
		{"ttl", ""},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if got := getStringAttr(image, tt.key); got != tt.expected {
				t.Errorf("getStringAttr(%q) = %q, expected %q", tt.key, got, tt.expected)
			}
		})
	}
}

func TestGetStringAttr_NilImage(t *testing.T) {
	if got := getStringAttr(nil, "entity_ref"); got != "" {
		t.Errorf("expected empty string for nil image, got %q", got)
	}
}

// --- getNumberAttr Tests ---

func TestGetNumberAttr(t *testing.T) {
	image := map[string]events.DynamoDBAttributeValue{
		"ttl":      events.NewNumberAttribute("1704067200"),
		"zero":     events.NewNumberAttribute("0"),
		"negative": events.NewNumberAttribute("-10"),
		"min":      events.NewNumberAttribute("-9223372036854775808"),
		"decimal":  events.NewNumberAttribute("1.5"),
		"text":     events.NewStringAttribute("1704067200"),
	}

	tests := []struct {
		key      string
		expected int64
	}{
		{"ttl", 1704067200},
		{"zero", 0},
		{"negative", -10},
		{"min", -9223372036854775808},
		{"decimal", 0},
		{"text", 0},
		{"missing", 0},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if got := getNumberAttr(image, tt.key); got != tt.expected {
				t.Errorf("getNumberAttr(%q) = %d, expected %d", tt.key, got, tt.expected)
			}
		})
	}
}

// --- getStringSetAttr Tests ---

func TestGetStringSetAttr_StringSet(t *testing.T) {
	image := map[string]events.DynamoDBAttributeValue{
		"parent_refs": events.NewStringSetAttribute([]string{"library.Author#a1", "library.Shelf#s1"}),
	}

	result := getStringSetAttr(image, "parent_refs")
	if len(result) != 2 {
		t.Fatalf("expected 2 refs, got %d", len(result))
	}
	if result[0] != "library.Author#a1" || result[1] != "library.Shelf#s1" {
		t.Errorf("unexpected refs %v", result)
	}
}

func TestGetStringSetAttr_List(t *testing.T) {
	image := map[string]events.DynamoDBAttributeValue{
		"parent_refs": events.NewListAttribute([]events.DynamoDBAttributeValue{
			events.NewStringAttribute("library.Author#a1"),
			events.NewNumberAttribute("123"),
			events.NewStringAttribute("library.Shelf#s1"),
		}),
	}

	result := getStringSetAttr(image, "parent_refs")
	if len(result) != 2 {
		t.Fatalf("expected non-strings to be skipped, got %v", result)
	}
}

func TestGetStringSetAttr_Absent(t *testing.T) {
	image := map[string]events.DynamoDBAttributeValue{
		"parent_refs": events.NewStringAttribute("library.Author#a1"),
	}

	if got := getStringSetAttr(image, "parent_refs"); got != nil {
		t.Errorf("expected nil for a plain string, got %v", got)
	}
	if got := getStringSetAttr(image, "missing"); got != nil {
		t.Errorf("expected nil for a missing key, got %v", got)
	}
	if got := getStringSetAttr(nil, "parent_refs"); got != nil {
		t.Errorf("expected nil for a nil image, got %v", got)
	}
}

// --- processRecord Tests ---

func TestProcessRecord_SkipsNonModifyEvents(t *testing.T) {
	for _, name := range []string{"INSERT", "REMOVE", "UNKNOWN"} {
		t.Run(name, func(t *testing.T) {
			h := NewHandler(nil, nil)
			record := events.DynamoDBEventRecord{EventName: name}

			if err := h.processRecord(context.Background(), record); err != nil {
				t.Errorf("expected no error for %s event, got %v", name, err)
			}
		})
	}
}

func TestProcessRecord_SkipsWithoutNewTTL(t *testing.T) {
	tests := []struct {
		name     string
		oldImage map[string]events.DynamoDBAttributeValue
		newImage map[string]events.DynamoDBAttributeValue
	}{
		{
			name:     "ttl already set",
			oldImage: map[string]events.DynamoDBAttributeValue{"ttl": events.NewNumberAttribute("1000")},
			newImage: map[string]events.DynamoDBAttributeValue{"ttl": events.NewNumberAttribute("2000")},
		},
		{
			name:     "ttl zero",
			oldImage: map[string]events.DynamoDBAttributeValue{},
			newImage: map[string]events.DynamoDBAttributeValue{"ttl": events.NewNumberAttribute("0")},
		},
		{
			name:     "no entity ref",
			oldImage: map[string]events.DynamoDBAttributeValue{},
			newImage: map[string]events.DynamoDBAttributeValue{"ttl": events.NewNumberAttribute("2000")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// A nil store panics if the handler gets past the checks.
			h := NewHandler(nil, nil)
			record := events.DynamoDBEventRecord{
				EventName: "MODIFY",
				Change:    events.DynamoDBStreamRecord{OldImage: tt.oldImage, NewImage: tt.newImage},
			}
			if err := h.processRecord(context.Background(), record); err != nil {
				t.Errorf("expected no error, got %v", err)
			}
		})
	}
}

// --- Benchmark Tests ---

func BenchmarkGetStringAttr(b *testing.B) {
	image := map[string]events.DynamoDBAttributeValue{
		"entity_ref": events.NewStringAttribute("library.Book#12345678-1234-1234-1234-123456789012"),
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		getStringAttr(image, "entity_ref")
	}
}

func BenchmarkGetStringSetAttr(b *testing.B) {
	image := map[string]events.DynamoDBAttributeValue{
		"parent_refs": events.NewStringSetAttribute([]string{"a#1", "b#2", "c#3"}),
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		getStringSetAttr(image, "parent_refs")
	}
}
