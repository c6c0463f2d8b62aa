package serv

import (
	"path"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vitals-run/vitals/internal/util"
)

var (
	// These variables are set using -ldflags
	version string
	commit  string
	date    string
)

var (
	log   *zap.SugaredLogger
	conf  *Config
	cpath string
)

// Cmd is the entry point for the vitals command line tool
func Cmd() {
	log = util.NewLogger(false, zap.InfoLevel).Sugar()

	cobra.EnableCommandSorting = false
	rootCmd := &cobra.Command{
		Use:   "vitals",
		Short: BuildDetails(),
	}

	rootCmd.PersistentFlags().StringVar(&cpath,
		"path", "./config", "path to config files")

	rootCmd.AddCommand(newCmd())
	rootCmd.AddCommand(servCmd())
	rootCmd.AddCommand(checkCmd())
	rootCmd.AddCommand(confCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("%s", err)
	}
}

func setup(cpath string) {
	if conf != nil {
		return
	}
	setupAgain(cpath)
}

func setupAgain(cpath string) {
	cp, err := filepath.Abs(cpath)
	if err != nil {
		log.Fatal(err)
	}

	cn := GetConfigName()
	if conf, err = ReadInConfig(path.Join(cp, cn)); err != nil {
		log.Fatal(err)
	}
}
