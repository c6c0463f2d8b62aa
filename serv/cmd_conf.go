package serv

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func confCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   fmt.Sprintf("conf:dump [%s]", strings.Join(viper.SupportedExts, "|")),
		Short: "Dump the effective config to a file",
		Long:  "Dump the merged config, defaults, config file and environment variables included, to a file",
		Run:   cmdConfDump,
	}
	return c
}

func cmdConfDump(cmd *cobra.Command, args []string) {
	if len(args) != 1 {
		cmd.Help() //nolint:errcheck
		os.Exit(1)
	}

	setup(cpath)

	fname := fmt.Sprintf("%s.%s", GetConfigName(), args[0])

	if err := conf.WriteConfigAs(fname); err != nil {
		log.Fatal(err)
	}

	log.Infof("config dumped to ./%s", fname)
}
