package signal

import "testing"

func TestBias(t *testing.T) {
	cases := map[Direction]int{Neutral: 0, Bullish: 1, Bearish: -1}
	for dir, want := range cases {
		if got := Bias(dir); got != want {
			t.Fatalf("Bias(%s) = %d, want %d", dir, got, want)
		}
	}
}

func TestDirectionText(t *testing.T) {
	for _, dir := range []Direction{Neutral, Bullish, Bearish} {
		b, err := dir.MarshalText()
		if err != nil {
			t.Fatalf("MarshalText returned error: %v", err)
		}
		var decoded Direction
		if err := decoded.UnmarshalText(b); err != nil {
			t.Fatalf("UnmarshalText returned error: %v", err)
		}
		if decoded != dir {
			t.Fatalf("expected %s got %s", dir, decoded)
		}
	}
	var d Direction
	if err := d.UnmarshalText([]byte("sideways")); err == nil {
		t.Fatalf("expected error for unknown direction")
	}
}

func TestBarBody(t *testing.T) {
	bar := Bar{Open: 105, High: 110, Low: 95, Close: 100}
	if bar.BodyHigh() != 105 || bar.BodyLow() != 100 {
		t.Fatalf("unexpected body %v/%v", bar.BodyHigh(), bar.BodyLow())
	}
}

func TestSnapshotCloud(t *testing.T) {
	snap := Snapshot{SenkouA: 90, SenkouB: 110}
	if snap.CloudTop() != 110 || snap.CloudBottom() != 90 {
		t.Fatalf("unexpected cloud %v/%v", snap.CloudTop(), snap.CloudBottom())
	}
}

func TestIntentActionable(t *testing.T) {
	if !(Intent{Kind: Enter}).Actionable() || !(Intent{Kind: Liquidate}).Actionable() {
		t.Fatalf("enter and liquidate should be actionable")
	}
	if (Intent{Kind: Confirm}).Actionable() || (Intent{Kind: Reset}).Actionable() {
		t.Fatalf("log-only intents should not be actionable")
	}
}
