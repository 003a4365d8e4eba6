package connections

import (
	"testing"

	"github.com/sentinel-compliance/sentinel/pkg/faults"
)

func validCreate() CreateCommand {
	return CreateCommand{
		Name:             "prod-customers",
		ConnectionString: "postgres://target",
		DBType:           "postgres",
	}
}

func TestValidateCreateAcceptsEveryScanMode(t *testing.T) {
	for _, mode := range []ScanMode{"", ScanCDC, ScanScheduled, ScanManual} {
		cmd := validCreate()
		cmd.ScanMode = mode
		if err := validateCreate(cmd); err != nil {
			t.Errorf("scan_mode %q rejected: %v", mode, err)
		}
	}
}

func TestValidateCreateRejectsUnknownScanMode(t *testing.T) {
	cmd := validCreate()
	cmd.ScanMode = "POLLING"
	err := validateCreate(cmd)
	if !faults.IsValidation(err) {
		t.Fatalf("error = %v, want validation fault", err)
	}
}

func TestValidateCreateRequiredFields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*CreateCommand)
	}{
		{"name", func(c *CreateCommand) { c.Name = "" }},
		{"connection_string", func(c *CreateCommand) { c.ConnectionString = "" }},
		{"db_type", func(c *CreateCommand) { c.DBType = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := validCreate()
			tt.mutate(&cmd)
			if err := validateCreate(cmd); !faults.IsValidation(err) {
				t.Errorf("error = %v, want validation fault", err)
			}
		})
	}
}
