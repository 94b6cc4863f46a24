package database

import "testing"

func TestRemoveDiacritics(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Fadhlé", "Fadhle"},
		{"Nuraéni", "Nuraeni"},
		{"plain ascii", "plain ascii"},
		{"", ""},
	}

	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			got := RemoveDiacritics(tc.input)
			if got != tc.want {
				t.Errorf("RemoveDiacritics(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Teknik  Informatika A", "teknik informatika a"},
		{"SISTEM INFORMASI", "sistem informasi"},
		{"  Budi   Santoso ", "budi santoso"},
	}

	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			got := NormalizeName(tc.input)
			if got != tc.want {
				t.Errorf("NormalizeName(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}
