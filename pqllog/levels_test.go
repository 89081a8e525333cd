package pqllog

import "testing"

func TestParseLevel(t *testing.T) {
	testcases := []struct {
		in   string
		want Level
	}{
		{"trace", LevelTrace},
		{"DEBUG", LevelDebug},
		{" info ", LevelInfo},
		{"warning", LevelWarn},
		{"Error", LevelError},
		{"fatal", LevelFatal},
		{"off", LevelOff},
	}
	for _, tc := range testcases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseLevel(tc.in)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Errorf("got %v, want %v", got, tc.want)
			}
		})
	}
	if _, err := ParseLevel("verbose"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestLevelRoundTrip(t *testing.T) {
	for _, l := range []Level{LevelTrace, LevelDebug, LevelInfo, LevelWarn, LevelError, LevelFatal, LevelOff} {
		s, err := LevelToString(l)
		if err != nil {
			t.Fatalf("unexpected error for %d: %v", l, err)
		}
		back, err := ParseLevel(s)
		if err != nil || back != l {
			t.Errorf("level %d did not survive round trip, got %d (%v)", l, back, err)
		}
	}
}

func TestEnabled(t *testing.T) {
	if !Enabled(LevelInfo, LevelError) {
		t.Error("error should be enabled at info")
	}
	if Enabled(LevelInfo, LevelDebug) {
		t.Error("debug should not be enabled at info")
	}
	if Enabled(LevelOff, LevelFatal) {
		t.Error("nothing should be enabled when off")
	}
}
