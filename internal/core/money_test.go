package core

import "testing"

func TestParseDecimalToCents(t *testing.T) {
	cases := []struct {
		in   string
		want int64
		ok   bool
	}{
		{"12.34", 1234, true},
		{"12,34", 1234, true},
		{"12.345", 1235, true},
		{"12.344", 1234, true},
		{"0", 0, true},
		{"600", 60000, true},
		{"-4.5", -450, true},
		{"+7", 700, true},
		{"", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"1,2.3", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseDecimalToCents(tc.in)
		if tc.ok && (err != nil || got != tc.want) {
			t.Fatalf("%q: got %d err=%v, want %d", tc.in, got, err, tc.want)
		}
		if !tc.ok && err == nil {
			t.Fatalf("%q: expected error, got %d", tc.in, got)
		}
	}
}

func TestMoneyArithmeticAndFormat(t *testing.T) {
	a := Cents(50000)
	b := Cents(47100)
	if got := a.Sub(b); got.Cents != 2900 {
		t.Fatalf("sub = %d", got.Cents)
	}
	if got := a.Add(b); got.Cents != 97100 {
		t.Fatalf("add = %d", got.Cents)
	}
	if s := Cents(-1230).String(); s != "-12.30" {
		t.Fatalf("string = %q", s)
	}
	if s := Cents(5).String(); s != "0.05" {
		t.Fatalf("string = %q", s)
	}
	if !Cents(-1).IsNegative() || Cents(0).IsNegative() {
		t.Fatalf("IsNegative mismatch")
	}
}
