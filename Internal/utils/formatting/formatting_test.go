package formatting

import (
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Time
		wantErr bool
	}{
		{in: "2024-03-05", want: time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)},
		{in: " 05/03/2024 ", want: time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)},
		{in: "05.03.2024", want: time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)},
		{in: "March 5", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDate(tt.in, nil)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseDate(%q) error = %v", tt.in, err)
			}
			if !tt.wantErr && !got.Equal(tt.want) {
				t.Errorf("ParseDate(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseDateRange(t *testing.T) {
	if _, _, err := ParseDateRange("2024-03-06", "2024-03-05", time.UTC); err == nil {
		t.Error("expected error for reversed range")
	}
	from, to, err := ParseDateRange("2024-03-05", "2024-03-05", time.UTC)
	if err != nil || !from.Equal(to) {
		t.Errorf("single day range = %v..%v, %v", from, to, err)
	}
}

func TestPriceAndR(t *testing.T) {
	if got := Price(0); got != "-" {
		t.Errorf("Price(0) = %q", got)
	}
	if got := Price(1.1015); got != "1.1015" {
		t.Errorf("Price(1.1015) = %q", got)
	}
	if got := SignedR(4); got != "+4.0R" {
		t.Errorf("SignedR(4) = %q", got)
	}
	if got := Separator(3); got != "===" {
		t.Errorf("Separator(3) = %q", got)
	}
}
