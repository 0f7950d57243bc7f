package cli

import (
	"os"

	"github.com/yllada/vpn-client/common"
)

// geteuid is swapped in tests.
var geteuid = os.Geteuid

// checkElevation refuses to run the GUI as root.
func checkElevation() error {
	if geteuid() == 0 {
		return common.ErrElevated
	}
	return nil
}
