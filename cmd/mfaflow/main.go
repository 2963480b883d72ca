// -----------------------------------------------------------------------
// Last Modified: Thursday, 15th October 2026 10:31:07 am
// Modified By: Bob McAllan
// -----------------------------------------------------------------------

package main

import (
	"fmt"
	"os"

	"github.com/ternarybob/mfaflow/internal/common"
)

func main() {
	defer common.RecoverWithCrashFile()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
