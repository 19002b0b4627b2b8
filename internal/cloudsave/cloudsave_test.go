package cloudsave

import "testing"

func TestNormalizeSlot(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "", want: "default"},
		{in: "  Main ", want: "main"},
		{in: "run-2", want: "run-2"},
		{in: "a/b", wantErr: true},
		{in: "two words", wantErr: true},
		{in: "slot-name-that-is-far-too-long-to-keep", wantErr: true},
	}
	for _, tc := range tests {
		got, err := normalizeSlot(tc.in)
		if (err != nil) != tc.wantErr || got != tc.want {
			t.Fatalf("normalizeSlot(%q)=%q,%v", tc.in, got, err)
		}
	}
}
