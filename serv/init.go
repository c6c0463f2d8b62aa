package serv

import (
	"fmt"
	"strings"

	"github.com/spf13/afero"
)

func initLogLevel(s *service) {
	switch s.conf.LogLevel {
	case "debug":
		s.logLevel = logLevelDebug
	case "error":
		s.logLevel = logLevelError
	case "warn":
		s.logLevel = logLevelWarn
	case "info":
		s.logLevel = logLevelInfo
	default:
		s.logLevel = logLevelNone
	}
}

func (s *service) initFS() error {
	if s.fs != nil {
		return nil
	}

	if s.conf.cpath == "" {
		s.fs = afero.NewOsFs()
		return nil
	}

	s.fs = afero.NewBasePathFs(afero.NewOsFs(), s.conf.cpath)
	return nil
}

func (s *service) initConfig() error {
	c := s.conf

	hp := strings.SplitN(c.HostPort, ":", 2)

	if len(hp) == 2 {
		if c.Host != "" {
			hp[0] = c.Host
		}

		if c.Port != "" {
			hp[1] = c.Port
		}

		c.hostPort = fmt.Sprintf("%s:%s", hp[0], hp[1])
	}

	if c.hostPort == "" {
		c.hostPort = defaultHP
	}

	if c.DB.PingTimeout == 0 {
		c.DB.PingTimeout = defaultPingTimeout
	}

	return nil
}

func (s *service) initDB() error {
	var err error

	if s.db != nil {
		return nil
	}

	s.db, err = newDB(s.conf, true, s.log, s.fs)
	if err != nil {
		return err
	}
	return nil
}
