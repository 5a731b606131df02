package util

import "testing"

func TestLooksLikeAmount(t *testing.T) {
	yes := []string{"1,234.56", "$38,374,008.00", "0.01", "(500.00)", "500.00-", "123.45*"}
	for _, s := range yes {
		if !LooksLikeAmount(s) {
			t.Fatalf("expected amount shape: %q", s)
		}
	}
	no := []string{"1234", "12.3", "07/15/2025", "01-5803", "1,23.45", "ZUM"}
	for _, s := range no {
		if LooksLikeAmount(s) {
			t.Fatalf("unexpected amount shape: %q", s)
		}
	}
}

func TestParseAmountCents(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"1,234.56", 123456},
		{"$38,374,008.00", 3837400800},
		{"0.01", 1},
		{"(500.00)", -50000},
		{"500.00-", -50000},
		{"123.45*", 12345},
	}
	for _, c := range cases {
		got, err := ParseAmountCents(c.in)
		if err != nil {
			t.Fatalf("ParseAmountCents(%q): %v", c.in, err)
		}
		if got != c.want {
			t.Fatalf("ParseAmountCents(%q) = %d, want %d", c.in, got, c.want)
		}
	}

	if _, err := ParseAmountCents("12.345"); err == nil {
		t.Fatal("sub-cent precision accepted")
	}
	if _, err := ParseAmountCents(""); err == nil {
		t.Fatal("empty token accepted")
	}
}

func TestFormatCents(t *testing.T) {
	if got := FormatCents(123456); got != "1234.56" {
		t.Fatalf("got %q", got)
	}
	if got := FormatCents(-5); got != "-0.05" {
		t.Fatalf("got %q", got)
	}
}
