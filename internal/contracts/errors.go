package contracts

import "errors"

// Error kinds. Wrap with fmt.Errorf("...: %w", ErrX) and test with errors.Is.
var (
	ErrConfigValidation = errors.New("config validation")
	ErrConnection       = errors.New("store unreachable")
	ErrQuery            = errors.New("query failed")
	ErrReconciliation   = errors.New("reconciliation failed")
	ErrNotification     = errors.New("notification failed")
)

// Process exit codes
const (
	ExitOK             = 0
	ExitUnknown        = 1
	ExitConfig         = 2
	ExitConnection     = 3
	ExitQuery          = 4
	ExitReconciliation = 5
	ExitNotification   = 6
	ExitDiscrepancy    = 10
)

// ExitCode maps an error to the process exit code of its kind. When err
// joins several kinds the most severe (lowest non-zero code) wins.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	ordered := []struct {
		kind error
		code int
	}{
		{ErrConfigValidation, ExitConfig},
		{ErrConnection, ExitConnection},
		{ErrQuery, ExitQuery},
		{ErrReconciliation, ExitReconciliation},
		{ErrNotification, ExitNotification},
	}
	for _, o := range ordered {
		if errors.Is(err, o.kind) {
			return o.code
		}
	}
	return ExitUnknown
}
