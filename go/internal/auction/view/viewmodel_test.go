package view

import (
	"encoding/json"
	"testing"
	"time"
)

func TestViewModelJSON_TimesAlwaysPresent(t *testing.T) {
	end := time.Date(2026, 7, 1, 18, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		vm      ViewModel
		wantEnd string
	}{
		{name: "loaded", vm: ViewModel{AuctionID: 1, Loaded: true, EndAt: end}, wantEnd: "2026-07-01T18:00:00Z"},
		{name: "not loaded", vm: ViewModel{AuctionID: 1}, wantEnd: "0001-01-01T00:00:00Z"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := json.Marshal(tt.vm)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			var fields map[string]any
			if err := json.Unmarshal(raw, &fields); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if got := fields["endAt"]; got != tt.wantEnd {
				t.Errorf("endAt = %v, want %q", got, tt.wantEnd)
			}
			if _, ok := fields["startAt"]; !ok {
				t.Error("startAt missing")
			}
		})
	}
}
