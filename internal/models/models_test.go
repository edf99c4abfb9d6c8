package models

import (
	"testing"
	"time"
)

func TestCredential(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		cred        Credential
		wantExpired bool
		wantValid   bool
	}{
		{"future expiry", Credential{AccessToken: "a", UserID: "u", ExpiresAt: now.Add(time.Hour)}, false, true},
		{"expires exactly now", Credential{AccessToken: "a", UserID: "u", ExpiresAt: now}, true, false},
		{"past expiry", Credential{AccessToken: "a", UserID: "u", ExpiresAt: now.Add(-time.Second)}, true, false},
		{"missing token", Credential{UserID: "u", ExpiresAt: now.Add(time.Hour)}, false, false},
		{"missing user", Credential{AccessToken: "a", ExpiresAt: now.Add(time.Hour)}, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cred.Expired(now); got != tt.wantExpired {
				t.Errorf("Expired() = %v, want %v", got, tt.wantExpired)
			}
			if got := tt.cred.Valid(now); got != tt.wantValid {
				t.Errorf("Valid() = %v, want %v", got, tt.wantValid)
			}
		})
	}
}

func TestFilterOptions(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		if DefaultFilterOptions() != (FilterOptions{}) {
			t.Error("expected every toggle off by default")
		}
	})

	t.Run("Set And Get", func(t *testing.T) {
		var o FilterOptions
		for _, key := range OptionKeys() {
			if !o.Set(key, true) {
				t.Fatalf("Set(%q) reported unknown key", key)
			}
			v, ok := o.Get(key)
			if !ok || !v {
				t.Errorf("Get(%q) = %v, %v; want true, true", key, v, ok)
			}
		}

		want := FilterOptions{AllowExplicit: true, AllowDuplicates: true, IncludePrivate: true, IncludeCollaborative: true, IncludeFollowed: true, IncludeHoliday: true}
		if o != want {
			t.Errorf("after setting all keys got %+v", o)
		}
	})

	t.Run("Unknown Key", func(t *testing.T) {
		var o FilterOptions
		if o.Set("allow_everything", true) {
			t.Error("expected unknown key to be rejected")
		}
		if _, ok := o.Get("allow_everything"); ok {
			t.Error("expected Get to report unknown key")
		}
	})

	t.Run("Reset", func(t *testing.T) {
		o := FilterOptions{AllowExplicit: true, IncludeFollowed: true}
		o.Reset()
		if o != DefaultFilterOptions() {
			t.Errorf("Reset() left %+v", o)
		}
	})

	t.Run("OptionKeys", func(t *testing.T) {
		keys := OptionKeys()
		if len(keys) != 6 {
			t.Fatalf("expected 6 keys, got %d", len(keys))
		}
		for i := 1; i < len(keys); i++ {
			if keys[i-1] >= keys[i] {
				t.Errorf("keys not sorted: %v", keys)
			}
		}
	})
}

func TestPage(t *testing.T) {
	if !(&Page[int]{}).Last() {
		t.Error("page without next should be last")
	}
	if (&Page[int]{Next: "https://example.com?offset=50"}).Last() {
		t.Error("page with next should not be last")
	}
}

func TestRunRecord(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("Duration", func(t *testing.T) {
		r := RunRecord{StartedAt: start}
		if r.Duration() != 0 {
			t.Error("unfinished run should report zero duration")
		}
		r.FinishedAt = start.Add(90 * time.Second)
		if r.Duration() != 90*time.Second {
			t.Errorf("Duration() = %v, want 90s", r.Duration())
		}
	})

	t.Run("Validate", func(t *testing.T) {
		tests := []struct {
			name    string
			record  RunRecord
			wantErr bool
		}{
			{"valid", RunRecord{RunID: "r", Status: RunStatusRunning, StartedAt: start}, false},
			{"missing id", RunRecord{Status: RunStatusRunning, StartedAt: start}, true},
			{"bad status", RunRecord{RunID: "r", Status: "paused", StartedAt: start}, true},
			{"missing start", RunRecord{RunID: "r", Status: RunStatusFailed}, true},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				if err := tt.record.Validate(); (err != nil) != tt.wantErr {
					t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
				}
			})
		}
	})
}
