package serv

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Version information",
		Run:   cmdVersion,
	}
}

func cmdVersion(cmd *cobra.Command, args []string) {
	fmt.Printf("%s\n", BuildDetails())
}

func BuildDetails() string {
	if version == "" {
		return `
Vitals (unknown version)

To build with version information please use the Makefile
> git clone https://github.com/vitals-run/vitals
> cd vitals && make install
`
	}

	return fmt.Sprintf(`
Vitals %v

Commit SHA-1          : %v
Commit timestamp      : %v
Go version            : %v
`,
		version,
		commit,
		date,
		runtime.Version())
}
