package core

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseMoney(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"1", 100, true},
		{"1.", 100, true},
		{".5", 50, true},
		{"1.23", 123, true},
		{"1,23", 123, true},
		{"1.005", 101, true},
		{"1.004", 100, true},
		{"-1.005", -101, true},
		{"+7", 700, true},
		{"0", 0, true},
		{" 2.50 ", 250, true},
		{"1.5e2", 15000, true},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"1 000", 0, false},
		{"-", 0, false},
		{".", 0, false},
		{"", 0, false},
		{"99999999999999999999", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseMoney(tc.in)
		if !tc.ok {
			if !errors.Is(err, ErrInvalidAmount) {
				t.Errorf("%q: expected ErrInvalidAmount, got %v (%d)", tc.in, err, got.Cents)
			}
			continue
		}
		if err != nil || got.Cents != tc.out {
			t.Errorf("%q: expected %d, got %d (err=%v)", tc.in, tc.out, got.Cents, err)
		}
	}
}

func TestMoneyString(t *testing.T) {
	cases := []struct {
		cents int64
		want  string
	}{
		{0, "₱0.00"},
		{5, "₱0.05"},
		{151200, "₱1,512.00"},
		{1000000, "₱10,000.00"},
		{-101200, "-₱1,012.00"},
		{123456789, "₱1,234,567.89"},
	}
	for _, tc := range cases {
		if got := (Money{Cents: tc.cents}).String(); got != tc.want {
			t.Errorf("Money{%d}.String() = %q, want %q", tc.cents, got, tc.want)
		}
	}
}

func TestMoneyJSON(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{`1512`, 151200},
		{`12.34`, 1234},
		{`"500.5"`, 50050},
		{`"7,25"`, 725},
		{`null`, 0},
		{`0.1`, 10},
		{`0.29`, 29},
		{`-1012`, -101200},
		{`""`, 0},
	}
	for _, tc := range cases {
		var m Money
		if err := json.Unmarshal([]byte(tc.in), &m); err != nil {
			t.Fatalf("unmarshal %s: %v", tc.in, err)
		}
		if m.Cents != tc.want {
			t.Errorf("unmarshal %s = %d cents, want %d", tc.in, m.Cents, tc.want)
		}
	}

	for _, in := range []string{`"abc"`, `true`, `"1.2.3"`} {
		var m Money
		if err := json.Unmarshal([]byte(in), &m); !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("%s: expected ErrInvalidAmount, got %v", in, err)
		}
	}

	out, err := json.Marshal(Money{Cents: 151250})
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != "1512.5" {
		t.Errorf("marshal = %s, want 1512.5", out)
	}
}
