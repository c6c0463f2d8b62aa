package serv

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/kardianos/osext"
	"github.com/pkg/errors"
)

func initConfigWatcher(s1 *Service) {
	s := s1.Load().(*service)

	if s.conf.Production {
		return
	}

	go func() {
		if err := startConfigWatcher(s1); err != nil {
			s.log.Fatalf("Error in config file watcher: %s", err)
		}
	}()
}

// startConfigWatcher watches the config directory and re-execs the
// process when a config file changes
func startConfigWatcher(s1 *Service) error {
	var watcher *fsnotify.Watcher
	var err error

	binary, err := osext.Executable()
	if err != nil {
		return err
	}

	var paths []string
	if s1.cpath == "" || s1.cpath == "./" {
		paths = []string{"./config"}
	} else {
		paths = []string{s1.cpath}
	}

	if watcher, err = fsnotify.NewWatcher(); err != nil {
		return fmt.Errorf("cannot setup watcher: %w", err)
	}
	defer watcher.Close() //nolint:errcheck

	var dirs []string
	for _, p := range paths {
		path, err := filepath.Abs(p)
		if err != nil {
			return fmt.Errorf("cannot get absolute path to %q: %w", p, err)
		}

		st, err := os.Stat(path)
		if err != nil {
			return errors.Wrap(err, "os.Stat")
		}
		if !st.IsDir() {
			return fmt.Errorf("not a directory: %q; can only watch directories", p)
		}

		dirs = append(dirs, path)
	}

	for _, d := range dirs {
		if err := watcher.Add(d); err != nil {
			return fmt.Errorf("cannot add %q to watcher: %w", d, err)
		}
	}

	for {
		s := s1.Load().(*service)

		select {
		case err := <-watcher.Errors:
			s.log.Infof("watcher error: %v", err)

		case event := <-watcher.Events:
			if s.conf == nil {
				continue
			}

			ext := path.Ext(event.Name)
			if ext != ".json" && ext != ".toml" && ext != ".yaml" && ext != ".yml" {
				continue
			}

			if s.conf.Production {
				continue
			}

			if event.Op != fsnotify.Create && event.Op != fsnotify.Write {
				continue
			}

			// Check if the new config parses before restarting on it
			cf := s.conf.RelPath(GetConfigName())
			if _, err := readInConfig(cf, nil); err != nil {
				s.log.Error(err)
				continue
			}

			// Wait for writes to finish.
			s.log.Infof("reloading, config file changed: %s", event.Name)
			time.Sleep(500 * time.Millisecond)

			if err := syscall.Exec(binary, os.Args, os.Environ()); err != nil {
				s.log.Fatal(err)
			}
		}
	}
}
