package serv

import (
	"os"

	"github.com/spf13/cobra"
)

var checkHost string

func checkCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "check",
		Short: "Ping a running service",
		Long:  "Call the health route of a running service and report the result",
		Run:   cmdCheck,
	}
	c.Flags().StringVar(&checkHost,
		"host", "http://localhost:8080", "host of the running service")
	return c
}

func cmdCheck(cmd *cobra.Command, args []string) {
	res, err := NewClient(checkHost).Check()
	if err != nil {
		log.Fatalf("%s", err)
	}

	if !res.Healthy {
		log.Errorf("service unhealthy: %s", res.Msg)
		os.Exit(1)
	}

	log.Infof("service healthy: %s", res.Msg)
}
