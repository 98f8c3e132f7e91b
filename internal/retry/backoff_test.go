package retry

import (
	"testing"
	"time"
)

func TestClassifyHTTPStatus_OK(t *testing.T) {
	for _, code := range []int{200, 201, 204, 206} {
		if got := ClassifyHTTPStatus(code); got != StatusOK {
			t.Errorf("%d は StatusOK を返すべき, got %v", code, got)
		}
	}
}

func TestClassifyHTTPStatus_Retryable(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		if got := ClassifyHTTPStatus(code); got != StatusRetryable {
			t.Errorf("%d は StatusRetryable を返すべき, got %v", code, got)
		}
	}
}

func TestClassifyHTTPStatus_Permanent(t *testing.T) {
	for _, code := range []int{400, 401, 403, 404, 406} {
		if got := ClassifyHTTPStatus(code); got != StatusPermanent {
			t.Errorf("%d は StatusPermanent を返すべき, got %v", code, got)
		}
	}
}

func TestCalculateBackoff_InitialDelay(t *testing.T) {
	if d := CalculateBackoff(1, 100*time.Millisecond, 2*time.Second); d != 100*time.Millisecond {
		t.Errorf("初回バックオフ = %v, want 100ms", d)
	}
}

func TestCalculateBackoff_Doubles(t *testing.T) {
	if d := CalculateBackoff(2, 100*time.Millisecond, 2*time.Second); d != 200*time.Millisecond {
		t.Errorf("2回目バックオフ = %v, want 200ms", d)
	}
	if d := CalculateBackoff(3, 100*time.Millisecond, 2*time.Second); d != 400*time.Millisecond {
		t.Errorf("3回目バックオフ = %v, want 400ms", d)
	}
}

func TestCalculateBackoff_MaxDelay(t *testing.T) {
	if d := CalculateBackoff(100, 100*time.Millisecond, 2*time.Second); d != 2*time.Second {
		t.Errorf("上限を超えてはならない: %v", d)
	}
}

func TestCalculateBackoff_ZeroInitial(t *testing.T) {
	if d := CalculateBackoff(3, 0, time.Second); d != 0 {
		t.Errorf("initial=0 では待機しない: %v", d)
	}
}
