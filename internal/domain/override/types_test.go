package override

import (
	"testing"

	"github.com/google/uuid"
)

func TestStatus_Terminal(t *testing.T) {
	tests := []struct {
		status Status
		want   bool
	}{
		{StatusPending, false},
		{StatusApproved, true},
		{StatusRejected, true},
		{StatusAutoApproved, true},
	}
	for _, tt := range tests {
		if got := tt.status.Terminal(); got != tt.want {
			t.Errorf("%s.Terminal() = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestStatus_ApprovedState(t *testing.T) {
	tests := []struct {
		status Status
		want   bool
	}{
		{StatusPending, false},
		{StatusApproved, true},
		{StatusRejected, false},
		{StatusAutoApproved, true},
	}
	for _, tt := range tests {
		if got := tt.status.ApprovedState(); got != tt.want {
			t.Errorf("%s.ApprovedState() = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestRequest_Consumed(t *testing.T) {
	r := Request{}
	if r.Consumed() {
		t.Error("request without clock entry should not be consumed")
	}
	entryID := uuid.New()
	r.ClockEntryID = &entryID
	if !r.Consumed() {
		t.Error("request linked to a clock entry should be consumed")
	}
}
