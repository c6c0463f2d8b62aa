package serv

import (
	"github.com/spf13/cobra"
)

func servCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "serve",
		Aliases: []string{"serv"},
		Short:   "Run the vitals service",
		Run:     cmdServ,
	}
}

func cmdServ(*cobra.Command, []string) {
	setup(cpath)

	vt, err := NewService(conf)
	if err != nil {
		log.Fatalf("%s", err)
	}

	if err := vt.Start(); err != nil {
		log.Fatalf("%s", err)
	}
}
