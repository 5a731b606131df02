package util

import "testing"

func TestNormalizePayee(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"Zum Services, Inc.", "ZUM SERVICES"},
		{"Acme Inc", "ACME"},
		{"ACME INC.", "ACME"},
		{"Pacific Gas & Electric Company", "PACIFIC GAS ELECTRIC"},
		{"Ed Theory, PBC", "ED THEORY"},
		{"  spaced   out  llc ", "SPACED OUT"},
		{"ABC Incorporated", "ABC INCORPORATED"},
	}
	for _, c := range cases {
		if got := NormalizePayee(c.in); got != c.want {
			t.Fatalf("NormalizePayee(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestCleanOCRText(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"=07/15/2025", "07/15/2025"},
		{"0200000005}", "0200000005"},
		{"~~|ZUM", "ZUM"},
		{"plain", "plain"},
	}
	for _, c := range cases {
		if got := CleanOCRText(c.in); got != c.want {
			t.Fatalf("CleanOCRText(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestIsZebraNoise(t *testing.T) {
	if !IsZebraNoise("===}{|") {
		t.Fatal("expected stripe artifact to be noise")
	}
	if IsZebraNoise("ZUM SERVICES") {
		t.Fatal("payee text flagged as noise")
	}
}

func TestTokenize(t *testing.T) {
	got := Tokenize("Zum Services, Inc.")
	if len(got) != 2 || got[0] != "ZUM" || got[1] != "SERVICES" {
		t.Fatalf("Tokenize = %v", got)
	}
	if got := Tokenize("A B C"); len(got) != 0 {
		t.Fatalf("single-character tokens kept: %v", got)
	}
}

func TestDiceCoefficient(t *testing.T) {
	if got := DiceCoefficient("ACME", "ACME"); got != 1 {
		t.Fatalf("identical strings: got %v", got)
	}
	if got := DiceCoefficient("ACME", "XYZQ"); got != 0 {
		t.Fatalf("disjoint strings: got %v", got)
	}
	close := DiceCoefficient("ZUM SERVICES", "ZUM SERVICE")
	far := DiceCoefficient("ZUM SERVICES", "PG AND E")
	if close <= far {
		t.Fatalf("expected %v > %v", close, far)
	}
}
