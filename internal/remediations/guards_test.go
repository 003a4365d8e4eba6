package remediations

import (
	"testing"

	"github.com/google/uuid"

	"github.com/sentinel-compliance/sentinel/pkg/faults"
)

func TestGuardTransition(t *testing.T) {
	id := uuid.New()

	tests := []struct {
		name    string
		from    Status
		to      Status
		wantErr bool
	}{
		{"propose to approve", StatusProposed, StatusApproved, false},
		{"propose to reject", StatusProposed, StatusRejected, false},
		{"approve to execute", StatusApproved, StatusExecuted, false},
		{"approve to fail", StatusApproved, StatusFailed, false},
		{"execute to verify", StatusExecuted, StatusVerified, false},
		{"execute to fail", StatusExecuted, StatusFailed, false},
		{"skip approval", StatusProposed, StatusExecuted, true},
		{"skip execution", StatusApproved, StatusVerified, true},
		{"backward", StatusApproved, StatusProposed, true},
		{"rejected is terminal", StatusRejected, StatusApproved, true},
		{"failed is terminal", StatusFailed, StatusExecuted, true},
		{"verified is terminal", StatusVerified, StatusFailed, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := guardTransition(id, tt.from, tt.to)
			if (err != nil) != tt.wantErr {
				t.Errorf("guardTransition(%s -> %s) error = %v, wantErr %v", tt.from, tt.to, err, tt.wantErr)
			}
			if err != nil && !faults.IsInvalidState(err) {
				t.Errorf("expected invalid state error, got %v", err)
			}
		})
	}
}

func TestTerminal(t *testing.T) {
	tests := []struct {
		status Status
		want   bool
	}{
		{StatusProposed, false},
		{StatusApproved, false},
		{StatusExecuted, false},
		{StatusRejected, true},
		{StatusVerified, true},
		{StatusFailed, true},
	}

	for _, tt := range tests {
		if got := Terminal(tt.status); got != tt.want {
			t.Errorf("Terminal(%s) = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestValidateCreate(t *testing.T) {
	valid := CreateCommand{
		ThreadID:    uuid.New(),
		ViolationID: uuid.New(),
		Statements:  []string{"UPDATE users SET email = NULL WHERE retention_expired"},
		RiskLevel:   RiskHigh,
	}

	if err := validateCreate(valid); err != nil {
		t.Fatalf("valid command rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*CreateCommand)
	}{
		{"missing thread", func(c *CreateCommand) { c.ThreadID = uuid.Nil }},
		{"missing violation", func(c *CreateCommand) { c.ViolationID = uuid.Nil }},
		{"no statements", func(c *CreateCommand) { c.Statements = nil }},
		{"bad risk level", func(c *CreateCommand) { c.RiskLevel = "EXTREME" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := valid
			tt.mutate(&cmd)
			if err := validateCreate(cmd); !faults.IsValidation(err) {
				t.Errorf("validateCreate() = %v, want validation error", err)
			}
		})
	}
}
