package attendance

import (
	"testing"
	"time"
)

func TestParseStatus(t *testing.T) {
	tests := []struct {
		input   string
		want    Status
		wantErr bool
	}{
		{"Hadir", StatusPresent, false},
		{"Alfa", StatusAbsent, false},
		{"Belum Absen", "", true},
		{"hadir", "", true},
		{"", "", true},
		{"Sakit", "", true},
	}
	for _, tc := range tests {
		got, err := ParseStatus(tc.input)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseStatus(%q): expected error", tc.input)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseStatus(%q): %v", tc.input, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseStatus(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestRecordExpiredAt(t *testing.T) {
	base := Record{
		NIM:        "2110001",
		CourseCode: "IF101",
		Date:       time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		MeetingNo:  3,
		Status:     StatusUnmarked,
		StartTime:  "08:00",
		EndTime:    "10:00",
	}

	tests := []struct {
		name   string
		mutate func(*Record)
		now    time.Time
		want   bool
	}{
		{
			name: "before end time",
			now:  time.Date(2026, 3, 2, 9, 59, 0, 0, time.UTC),
			want: false,
		},
		{
			name: "exactly at end time",
			now:  time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
			want: false,
		},
		{
			name: "one minute past end",
			now:  time.Date(2026, 3, 2, 10, 1, 0, 0, time.UTC),
			want: true,
		},
		{
			name: "next day",
			now:  time.Date(2026, 3, 3, 0, 1, 0, 0, time.UTC),
			want: true,
		},
		{
			name: "day before session",
			now:  time.Date(2026, 3, 1, 23, 0, 0, 0, time.UTC),
			want: false,
		},
		{
			name:   "present record never expires",
			mutate: func(r *Record) { r.Status = StatusPresent },
			now:    time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
			want:   false,
		},
		{
			name:   "absent record never expires",
			mutate: func(r *Record) { r.Status = StatusAbsent },
			now:    time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
			want:   false,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := base
			if tc.mutate != nil {
				tc.mutate(&r)
			}
			if got := r.ExpiredAt(tc.now); got != tc.want {
				t.Errorf("ExpiredAt(%v) = %v, want %v", tc.now, got, tc.want)
			}
		})
	}
}
