package validation

import "testing"

func TestValidateMeetingCode(t *testing.T) {
	cases := []struct {
		name    string
		code    string
		wantErr bool
	}{
		{"valid code", "ABC12345", false},
		{"lowercase accepted", "abc12345", false},
		{"dashes and underscores", "team_sync-1", false},
		{"empty", "", true},
		{"whitespace only", "   ", true},
		{"spaces inside", "ABC 123", true},
		{"too long", string(make([]byte, 65)), true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateMeetingCode(tc.code)
			if tc.wantErr && err == nil {
				t.Fatalf("expected error for code %q, got nil", tc.code)
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error for code %q: %v", tc.code, err)
			}
		})
	}
}

func TestValidateDisplayName(t *testing.T) {
	cases := []struct {
		name    string
		display string
		wantErr bool
	}{
		{"plain name", "Alice", false},
		{"unicode name", "Алиса", false},
		{"empty", "", true},
		{"too long", "abcdefghijklmnopqrstuvwxyz", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateDisplayName(tc.display, 10)
			if tc.wantErr && err == nil {
				t.Fatalf("expected error for name %q, got nil", tc.display)
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error for name %q: %v", tc.display, err)
			}
		})
	}
}

func TestValidateConnectionID(t *testing.T) {
	if err := ValidateConnectionID("conn_9f2d1a"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := ValidateConnectionID(""); err == nil {
		t.Fatal("expected error for empty connection ID")
	}
	if err := ValidateConnectionID("bad id!"); err == nil {
		t.Fatal("expected error for malformed connection ID")
	}
}
