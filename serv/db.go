package serv

import (
	"crypto/tls"
	"crypto/x509"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

const (
	pemSig = "--BEGIN "
)

const (
	logLevelNone int = iota
	logLevelInfo
	logLevelWarn
	logLevelError
	logLevelDebug
)

type dbConf struct {
	driverName string
	connString string
}

// NewDB creates a new database connection pool using the database
// config in the service config
func NewDB(conf *Config, openDB bool, log *zap.SugaredLogger, fs afero.Fs) (*sql.DB, error) {
	return newDB(conf, openDB, log, fs)
}

func newDB(conf *Config, openDB bool, log *zap.SugaredLogger, fs afero.Fs) (*sql.DB, error) {
	var db *sql.DB
	var dc *dbConf
	var err error

	if cs := conf.DB.ConnString; cs != "" {
		if strings.HasPrefix(cs, "postgres://") {
			conf.DB.Type = "postgres"
		}
		if strings.HasPrefix(cs, "mysql://") {
			conf.DB.Type = "mysql"
			conf.DB.ConnString = strings.TrimPrefix(cs, "mysql://")
		}
	}

	switch conf.DB.Type {
	case "postgres":
		dc, err = initPostgres(conf, openDB, fs)
	default:
		dc, err = initMysql(conf, openDB, fs)
	}

	if err != nil {
		return nil, fmt.Errorf("database init: %v", err)
	}

	for i := 0; ; {
		if db, err = sql.Open(dc.driverName, dc.connString); err == nil {
			db.SetMaxIdleConns(conf.DB.PoolSize)
			db.SetMaxOpenConns(conf.DB.MaxConnections)
			db.SetConnMaxIdleTime(conf.DB.MaxConnIdleTime)
			db.SetConnMaxLifetime(conf.DB.MaxConnLifeTime)

			if err := db.Ping(); err == nil {
				return db, nil
			} else {
				db.Close()
				log.Warnf("database ping: %s", err)
			}

		} else {
			log.Warnf("database open: %s", err)
		}

		time.Sleep(time.Duration(i*100) * time.Millisecond)

		if i > 50 {
			return nil, err
		} else {
			i++
		}
	}
}

func initPostgres(conf *Config, openDB bool, fs afero.Fs) (*dbConf, error) {
	c := conf
	config, _ := pgx.ParseConfig(c.DB.ConnString)
	if c.DB.Host != "" {
		config.Host = c.DB.Host
	}
	if c.DB.Port != 0 {
		config.Port = c.DB.Port
	}
	if c.DB.User != "" {
		config.User = c.DB.User
	}
	if c.DB.Password != "" {
		config.Password = c.DB.Password
	}

	if config.RuntimeParams == nil {
		config.RuntimeParams = map[string]string{}
	}

	if c.DB.Schema != "" {
		config.RuntimeParams["search_path"] = c.DB.Schema
	}

	if c.AppName != "" {
		config.RuntimeParams["application_name"] = c.AppName
	}

	if openDB {
		config.Database = c.DB.DBName
	}

	if c.DB.EnableTLS {
		tc, err := tlsConfig(c, fs)
		if err != nil {
			return nil, err
		}
		config.TLSConfig = tc
	}

	return &dbConf{"pgx", stdlib.RegisterConnConfig(config)}, nil
}

func initMysql(conf *Config, openDB bool, fs afero.Fs) (*dbConf, error) {
	c := conf

	if c.DB.ConnString != "" {
		return &dbConf{"mysql", c.DB.ConnString}, nil
	}

	connString := fmt.Sprintf("%s:%s@tcp(%s:%d)/",
		c.DB.User, c.DB.Password, c.DB.Host, c.DB.Port)

	if openDB {
		connString += c.DB.DBName
	}

	// parseTime is needed to scan date and time columns into time.Time
	connString += "?charset=utf8mb4&parseTime=true"

	if c.DB.EnableTLS {
		tc, err := tlsConfig(c, fs)
		if err != nil {
			return nil, err
		}
		if err := mysql.RegisterTLSConfig("vitals", tc); err != nil {
			return nil, err
		}
		connString += "&tls=vitals"
	}

	return &dbConf{"mysql", connString}, nil
}

func tlsConfig(c *Config, fs afero.Fs) (*tls.Config, error) {
	if len(c.DB.ServerName) == 0 {
		return nil, errors.New("tls: server_name is required")
	}
	if len(c.DB.ServerCert) == 0 {
		return nil, errors.New("tls: server_cert is required")
	}

	rootCertPool := x509.NewCertPool()
	var pem []byte
	var err error

	if strings.Contains(c.DB.ServerCert, pemSig) {
		pem = []byte(strings.ReplaceAll(c.DB.ServerCert, `\n`, "\n"))
	} else {
		pem, err = afero.ReadFile(fs, c.DB.ServerCert)
	}

	if err != nil {
		return nil, fmt.Errorf("tls: %w", err)
	}

	if ok := rootCertPool.AppendCertsFromPEM(pem); !ok {
		return nil, errors.New("tls: failed to append pem")
	}

	tc := &tls.Config{
		MinVersion: tls.VersionTLS12,
		RootCAs:    rootCertPool,
		ServerName: c.DB.ServerName,
	}

	if len(c.DB.ClientCert) > 0 {
		if len(c.DB.ClientKey) == 0 {
			return nil, errors.New("tls: client_key is required")
		}

		var certs tls.Certificate

		if strings.Contains(c.DB.ClientCert, pemSig) {
			certs, err = tls.X509KeyPair(
				[]byte(strings.ReplaceAll(c.DB.ClientCert, `\n`, "\n")),
				[]byte(strings.ReplaceAll(c.DB.ClientKey, `\n`, "\n")),
			)
		} else {
			certs, err = loadX509KeyPair(fs, c.DB.ClientCert, c.DB.ClientKey)
		}

		if err != nil {
			return nil, fmt.Errorf("tls: %w", err)
		}

		tc.Certificates = append(tc.Certificates, certs)
	}

	return tc, nil
}

func loadX509KeyPair(fs afero.Fs, certFile, keyFile string) (
	cert tls.Certificate, err error,
) {
	certPEMBlock, err := afero.ReadFile(fs, certFile)
	if err != nil {
		return cert, err
	}
	keyPEMBlock, err := afero.ReadFile(fs, keyFile)
	if err != nil {
		return cert, err
	}
	return tls.X509KeyPair(certPEMBlock, keyPEMBlock)
}
