package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// set by -ldflags at build time
var (
	BuildTS   = "None"
	GitHash   = "None"
	GitBranch = "None"
	Version   = "None"
)

func GetVersion() string {
	if GitHash != "" {
		h := GitHash
		if len(h) > 7 {
			h = h[:7]
		}

		return fmt.Sprintf("%s-%s", Version, h)
	}

	return Version
}

func Printer(w io.Writer) {
	fmt.Fprintln(w, "Version:         ", GetVersion())
	fmt.Fprintln(w, "Git Branch:      ", GitBranch)
	fmt.Fprintln(w, "Git Commit:      ", GitHash)
	fmt.Fprintln(w, "Build Time (UTC):", BuildTS)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "print version",
	Long:  "print version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		Printer(cmd.OutOrStdout())
	},
}
