package utils

import "testing"

func TestAtoiDefault(t *testing.T) {
	cases := []struct {
		s    string
		def  int
		want int
	}{
		// empty -> default
		{"", 10, 10},
		// valid ints
		{"42", 0, 42},
		{"-13", 1, -13},
		{"0012", 99, 12},
		// invalid -> default (no trim)
		{"x", 5, 5},
		{" 42", 7, 7},
		// overflow -> default
		{"999999999999999999999999", -1, -1},
	}

	for _, tc := range cases {
		if got := AtoiDefault(tc.s, tc.def); got != tc.want {
			t.Fatalf("AtoiDefault(%q, %d) = %d; want %d", tc.s, tc.def, got, tc.want)
		}
	}
}

func TestPage(t *testing.T) {
	cases := []struct {
		page, size         string
		max                int
		wantPage, wantSize int
	}{
		{"", "", 100, 0, 0},
		{"2", "8", 100, 2, 8},
		{"-1", "10", 100, 0, 10},
		{"1", "500", 100, 1, 0},
		{"1", "-5", 100, 1, 0},
		{"x", "y", 100, 0, 0},
		{"3", "500", 0, 3, 500},
	}
	for _, tc := range cases {
		p, s := Page(tc.page, tc.size, tc.max)
		if p != tc.wantPage || s != tc.wantSize {
			t.Fatalf("Page(%q, %q, %d) = %d, %d; want %d, %d", tc.page, tc.size, tc.max, p, s, tc.wantPage, tc.wantSize)
		}
	}
}
