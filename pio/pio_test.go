package pio

import "testing"

func TestCalcClockDivTypical(t *testing.T) {
	// sys=125MHz, freq=1MHz: ceil(125000/1000)=125, ceil((125+3)/4)=32.
	got := CalcClockDiv(125000, 1000)
	if got != 32 {
		t.Fatalf("CalcClockDiv(125000,1000) = %d, want 32", got)
	}
}

func TestCalcClockDivClampsToMinimumOne(t *testing.T) {
	got := CalcClockDiv(1, 1_000_000)
	if got != 1 {
		t.Fatalf("CalcClockDiv(1,1000000) = %d, want 1", got)
	}
}

func TestCalcClockDivZeroFreqTreatedAsOne(t *testing.T) {
	a := CalcClockDiv(125000, 0)
	b := CalcClockDiv(125000, 1)
	if a != b {
		t.Fatalf("CalcClockDiv with freqKHz=0 = %d, want same as freqKHz=1 (%d)", a, b)
	}
}

func TestCalcClockDivClampsToMaximum(t *testing.T) {
	got := CalcClockDiv(0xFFFFFFFF, 1)
	if got != 65535 {
		t.Fatalf("CalcClockDiv(huge,1) = %d, want clamped to 65535", got)
	}
}

func TestCeilDivRoundsUp(t *testing.T) {
	if got := ceilDiv(10, 3); got != 4 {
		t.Fatalf("ceilDiv(10,3) = %d, want 4", got)
	}
	if got := ceilDiv(9, 3); got != 3 {
		t.Fatalf("ceilDiv(9,3) = %d, want 3", got)
	}
}

func TestCeilDivByZeroReturnsDividend(t *testing.T) {
	if got := ceilDiv(7, 0); got != 7 {
		t.Fatalf("ceilDiv(7,0) = %d, want 7", got)
	}
}
