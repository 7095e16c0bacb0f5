package oracle

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeSource struct {
	name     string
	price    float64
	err      error
	attempts int
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) FetchUSDPrice(ctx context.Context) (float64, error) {
	f.attempts++
	if f.err != nil && f.attempts == 1 {
		return 0, f.err
	}
	return f.price, nil
}

func TestNativeCoinUSDPriceAverages(t *testing.T) {
	a := &fakeSource{name: "a", price: 0.0005}
	b := &fakeSource{name: "b", price: 0.0007}
	o := New(a, b, nil)

	price, err := o.NativeCoinUSDPrice(context.Background())
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	want := (a.price + b.price) / 2
	if price != want {
		t.Fatalf("expected average %v, got %v", want, price)
	}
}

func TestNativeCoinUSDPriceRetriesFailedSourceOnce(t *testing.T) {
	a := &fakeSource{name: "a", price: 0.0005, err: errors.New("timeout")}
	b := &fakeSource{name: "b", price: 0.0005}
	o := New(a, b, nil)
	o.sources[0] = a

	start := time.Now()
	price, err := o.NativeCoinUSDPrice(context.Background())
	elapsed := time.Since(start)
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	if price != 0.0005 {
		t.Fatalf("unexpected price: %v", price)
	}
	if a.attempts != 2 {
		t.Fatalf("expected exactly one retry (2 attempts), got %d", a.attempts)
	}
	if elapsed < RetryDelay {
		t.Fatalf("expected at least RetryDelay to elapse before retry, got %v", elapsed)
	}
}

func TestNativeCoinUSDPriceRejectsOutOfBandAverage(t *testing.T) {
	a := &fakeSource{name: "a", price: 1.0}
	b := &fakeSource{name: "b", price: 1.0}
	o := New(a, b, nil)

	if _, err := o.NativeCoinUSDPrice(context.Background()); err == nil {
		t.Fatalf("expected out-of-band price to be rejected")
	}
}

func TestPSLPerCreditFormula(t *testing.T) {
	rate, err := PSLPerCredit(0.0001, 0.2, 0.0005)
	if err != nil {
		t.Fatalf("psl per credit: %v", err)
	}
	want := (0.0001 / 0.8) / 0.0005
	if rate != want {
		t.Fatalf("expected %v, got %v", want, rate)
	}
}

func TestPSLPerCreditRejectsInvalidMargin(t *testing.T) {
	if _, err := PSLPerCredit(0.0001, 1.0, 0.0005); err == nil {
		t.Fatalf("expected margin of 1.0 to be rejected")
	}
	if _, err := PSLPerCredit(0.0001, -0.1, 0.0005); err == nil {
		t.Fatalf("expected negative margin to be rejected")
	}
}
