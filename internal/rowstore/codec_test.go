package rowstore

import (
	"encoding/json"
	"testing"
)

func TestInt(t *testing.T) {
	tests := []struct {
		name    string
		value   any
		want    int
		wantErr bool
	}{
		{"int", 4, 4, false},
		{"int64 from postgres", int64(5), 5, false},
		{"float64 from json", float64(6), 6, false},
		{"string from redis", "7", 7, false},
		{"bytes", []byte("8"), 8, false},
		{"not a number", "eight", 0, true},
		{"bool", true, 0, true},
		{"nil", nil, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Int(Row{"n": tt.value}, "n")
			if (err != nil) != tt.wantErr {
				t.Fatalf("Int() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Int() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestIntOr(t *testing.T) {
	if v, err := IntOr(Row{}, "w", 300); err != nil || v != 300 {
		t.Errorf("expected default 300, got %d (%v)", v, err)
	}
	if v, err := IntOr(Row{"w": "120"}, "w", 300); err != nil || v != 120 {
		t.Errorf("expected 120, got %d (%v)", v, err)
	}
	if _, err := IntOr(Row{"w": "wide"}, "w", 300); err == nil {
		t.Error("expected an error for a malformed present value")
	}
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name   string
		value  any
		wantOK bool
		want   []string
	}{
		{"postgres jsonb bytes", []byte(`["a","b"]`), true, []string{"a", "b"}},
		{"redis string", `["c"]`, true, []string{"c"}},
		{"already decoded", []any{"d"}, true, []string{"d"}},
		{"null", "null", false, nil},
		{"empty", "", false, nil},
		{"absent", nil, false, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			ok, err := DecodeJSON(Row{"synonyms": tt.value}, "synonyms", &got)
			if err != nil {
				t.Fatalf("DecodeJSON() error = %v", err)
			}
			if ok != tt.wantOK {
				t.Errorf("DecodeJSON() ok = %v, want %v", ok, tt.wantOK)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("DecodeJSON() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("DecodeJSON()[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}

	var dst map[string]any
	if _, err := DecodeJSON(Row{"settings": "{broken"}, "settings", &dst); err == nil {
		t.Error("expected error for malformed JSON")
	}
}

func TestEncodeRow(t *testing.T) {
	encoded, err := encodeRow(Row{
		"id":       1,
		"name":     "Kitchen",
		"synonyms": []string{"cook room"},
		"raw":      json.RawMessage(`{"x":1}`),
	})
	if err != nil {
		t.Fatalf("encodeRow failed: %v", err)
	}
	if encoded["id"] != 1 || encoded["name"] != "Kitchen" {
		t.Errorf("scalars must pass through, got %v", encoded)
	}
	if encoded["synonyms"] != `["cook room"]` {
		t.Errorf("expected JSON text for slices, got %v", encoded["synonyms"])
	}
	if encoded["raw"] != `{"x":1}` {
		t.Errorf("expected raw JSON as text, got %v", encoded["raw"])
	}

	if _, err := encodeRow(Row{"bad": make(chan int)}); err == nil {
		t.Error("expected error for an unencodable value")
	}
}
