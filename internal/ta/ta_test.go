package ta

import (
	"math"
	"testing"
)

func TestSMAWarmup(t *testing.T) {
	closes := []float64{1, 2, 3, 4}
	if v := SMA(closes, 5); !math.IsNaN(v) {
		t.Errorf("expected NaN before 5 closes, got %f", v)
	}
	closes = append(closes, 5)
	if v := SMA(closes, 5); v != 3.0 {
		t.Errorf("expected SMA 3.0, got %f", v)
	}
}

func TestEMAUndefinedUntilSeeded(t *testing.T) {
	e := NewEMA(3)
	if v := e.Update(10); !math.IsNaN(v) {
		t.Errorf("expected NaN after 1 value, got %f", v)
	}
	if v := e.Update(20); !math.IsNaN(v) {
		t.Errorf("expected NaN after 2 values, got %f", v)
	}
	// Seed is the simple average of the first 3 inputs.
	if v := e.Update(30); v != 20.0 {
		t.Errorf("expected seed 20.0, got %f", v)
	}
	// alpha = 2/4 = 0.5
	if v := e.Update(40); v != 30.0 {
		t.Errorf("expected 30.0, got %f", v)
	}
}

func TestMACDWarmupBoundary(t *testing.T) {
	m := NewMACD(12, 26, 9)
	for i := 0; i < 25; i++ {
		macd, sig, hist := m.Update(100 + float64(i))
		if !math.IsNaN(macd) || !math.IsNaN(sig) || !math.IsNaN(hist) {
			t.Fatalf("expected NaN at close %d, got macd=%f signal=%f hist=%f", i+1, macd, sig, hist)
		}
	}
	macd, sig, hist := m.Update(125)
	if math.IsNaN(macd) || math.IsNaN(sig) || math.IsNaN(hist) {
		t.Fatalf("expected defined MACD at close 26, got macd=%f signal=%f hist=%f", macd, sig, hist)
	}
	if hist != 0 {
		t.Errorf("histogram on the first defined close should be 0, got %f", hist)
	}
}

// 34 closes rising at an accelerating pace: the fast EMA pulls ahead of the
// slow one, so the 12/26/9 histogram must be positive no later than candle
// #27. A constant-increment ramp would not do here, since both EMAs then
// converge to the same slope and MACD goes flat.
func TestMACDRisingClosesHistogramPositiveBy27(t *testing.T) {
	m := NewMACD(12, 26, 9)
	firstPositive := 0
	price := 100.0
	for i := 1; i <= 34; i++ {
		price += float64(i) * 0.1
		_, _, hist := m.Update(price)
		if firstPositive == 0 && !math.IsNaN(hist) && hist > 0 {
			firstPositive = i
		}
	}
	if firstPositive == 0 {
		t.Fatal("histogram never turned positive")
	}
	if firstPositive > 27 {
		t.Errorf("histogram first positive at candle %d, want <= 27", firstPositive)
	}
}

func TestKDJWarmupAndSmoothing(t *testing.T) {
	s := NewKDJ(3)
	if k, d, j := s.Update(10, 8, 9); !math.IsNaN(k) || !math.IsNaN(d) || !math.IsNaN(j) {
		t.Fatalf("expected NaN during warm-up, got %f %f %f", k, d, j)
	}
	s.Update(11, 9, 10)
	// Third candle: window is full. High=12, low=8, close=12 -> RSV=100.
	k, d, j := s.Update(12, 10, 12)
	wantK := (2.0/3.0)*50.0 + (1.0/3.0)*100.0 // 66.67
	if math.Abs(k-wantK) > 1e-9 {
		t.Errorf("K = %f, want %f", k, wantK)
	}
	wantD := (2.0/3.0)*50.0 + (1.0/3.0)*wantK
	if math.Abs(d-wantD) > 1e-9 {
		t.Errorf("D = %f, want %f", d, wantD)
	}
	if math.Abs(j-(3*k-2*d)) > 1e-9 {
		t.Errorf("J = %f, want 3K-2D = %f", j, 3*k-2*d)
	}
}

func TestKDJFlatRangeRSV(t *testing.T) {
	s := NewKDJ(2)
	s.Update(10, 10, 10)
	// High == low across the window: RSV pins to 50, so K and D stay at 50
	// up to float rounding in the 2/3-1/3 smoothing.
	k, d, _ := s.Update(10, 10, 10)
	if math.Abs(k-50.0) > 1e-9 || math.Abs(d-50.0) > 1e-9 {
		t.Errorf("flat range should hold K=D=50, got K=%f D=%f", k, d)
	}
}

func TestRSIBounds(t *testing.T) {
	up := []float64{1, 2, 3, 4, 5, 6}
	if v := RSI(up, 5); v != 100.0 {
		t.Errorf("all-gains RSI should be 100, got %f", v)
	}
	if v := RSI(up[:3], 5); !math.IsNaN(v) {
		t.Errorf("expected NaN with short history, got %f", v)
	}
}
