package core

import (
	"errors"
	"testing"
	"time"
)

func TestParseTimeOfDay(t *testing.T) {
	tests := []struct {
		input   string
		want    TimeOfDay
		wantErr bool
	}{
		{"21:00", TimeOfDay{Hour: 21, Minute: 0}, false},
		{"07:30", TimeOfDay{Hour: 7, Minute: 30}, false},
		{"00:00", TimeOfDay{Hour: 0, Minute: 0}, false},
		{"23:59", TimeOfDay{Hour: 23, Minute: 59}, false},
		{"24:00", TimeOfDay{}, true},
		{"12:60", TimeOfDay{}, true},
		{"not-a-time", TimeOfDay{}, true},
		{"", TimeOfDay{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseTimeOfDay(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidTimeOfDay) {
					t.Errorf("ParseTimeOfDay(%q) error = %v, want ErrInvalidTimeOfDay", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseTimeOfDay(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseTimeOfDay(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestTimeOfDay_String(t *testing.T) {
	tod := TimeOfDay{Hour: 7, Minute: 5}
	if got := tod.String(); got != "07:05" {
		t.Errorf("String() = %q, want %q", got, "07:05")
	}
}

func TestParentalControls_Validate(t *testing.T) {
	limit := 120
	badLimit := 0
	start := TimeOfDay{Hour: 21, Minute: 0}
	end := TimeOfDay{Hour: 7, Minute: 0}
	badStart := TimeOfDay{Hour: 25, Minute: 0}

	tests := []struct {
		name     string
		controls ParentalControls
		wantErr  error
	}{
		{
			name:     "valid full config",
			controls: ParentalControls{ChildID: "child1", Enabled: true, DailyTimeLimitMinutes: &limit, BedtimeStart: &start, BedtimeEnd: &end, WarningThresholdMinutes: 15},
		},
		{
			name:     "valid minimal config",
			controls: ParentalControls{ChildID: "child1"},
		},
		{
			name:     "missing child id",
			controls: ParentalControls{},
			wantErr:  ErrInvalidChildID,
		},
		{
			name:     "bedtime start without end",
			controls: ParentalControls{ChildID: "child1", BedtimeStart: &start},
			wantErr:  ErrInvalidControls,
		},
		{
			name:     "bedtime end without start",
			controls: ParentalControls{ChildID: "child1", BedtimeEnd: &end},
			wantErr:  ErrInvalidControls,
		},
		{
			name:     "bedtime out of range",
			controls: ParentalControls{ChildID: "child1", BedtimeStart: &badStart, BedtimeEnd: &end},
			wantErr:  ErrInvalidControls,
		},
		{
			name:     "negative warning threshold",
			controls: ParentalControls{ChildID: "child1", WarningThresholdMinutes: -1},
			wantErr:  ErrInvalidControls,
		},
		{
			name:     "non-positive daily limit",
			controls: ParentalControls{ChildID: "child1", DailyTimeLimitMinutes: &badLimit},
			wantErr:  ErrInvalidControls,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.controls.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSession_Validate(t *testing.T) {
	now := time.Date(2024, 6, 3, 10, 0, 0, 0, time.UTC)

	valid := Session{ChildID: "child1", DeviceID: "tablet1", AppCategory: CategoryGames, StartTime: now}
	if err := valid.Validate(); err != nil {
		t.Errorf("Validate() unexpected error: %v", err)
	}

	tests := []struct {
		name    string
		session Session
		wantErr error
	}{
		{"missing child", Session{DeviceID: "d", AppCategory: CategoryOther, StartTime: now}, ErrInvalidChildID},
		{"missing device", Session{ChildID: "c", AppCategory: CategoryOther, StartTime: now}, ErrInvalidDeviceID},
		{"bad category", Session{ChildID: "c", DeviceID: "d", AppCategory: "gaming", StartTime: now}, ErrInvalidAppCategory},
		{"zero start", Session{ChildID: "c", DeviceID: "d", AppCategory: CategoryOther}, ErrInvalidStartTime},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.session.Validate(); !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestAppCategory_Valid(t *testing.T) {
	for _, category := range []AppCategory{CategoryGames, CategorySocial, CategoryEducational, CategoryEntertainment, CategoryProductivity, CategoryOther} {
		if !category.Valid() {
			t.Errorf("category %q should be valid", category)
		}
	}
	if AppCategory("gaming").Valid() {
		t.Error("unknown category should be invalid")
	}
}
