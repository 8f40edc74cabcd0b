// Package connection provides connection models for the database engines a
// benchmark can target in driver mode, including DSN construction per engine
// and SSH tunnelling for remote engines.
package connection

import (
	"fmt"
	"net/url"
)

// EngineType identifies the database engine behind a connection.
type EngineType string

const (
	EngineMySQL      EngineType = "mysql"
	EnginePostgreSQL EngineType = "postgresql"
	EngineSQLServer  EngineType = "sqlserver"
	EngineOracle     EngineType = "oracle"
)

// Validate checks the engine type is supported.
func (t EngineType) Validate() error {
	switch t {
	case EngineMySQL, EnginePostgreSQL, EngineSQLServer, EngineOracle:
		return nil
	default:
		return fmt.Errorf("unsupported engine type: %s", t)
	}
}

// Connection describes one database engine endpoint.
type Connection interface {
	// Type returns the engine type.
	Type() EngineType

	// DriverName returns the database/sql driver name to open with.
	DriverName() string

	// DSN returns the complete connection string including credentials.
	DSN() string

	// Redacted returns a display form with the password masked.
	Redacted() string

	// Validate validates the connection parameters.
	Validate() error
}

// ValidatePort validates that a port number is in the valid range.
func ValidatePort(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", port)
	}
	return nil
}

func validateRequired(field, value string) error {
	if value == "" {
		return fmt.Errorf("%s is required", field)
	}
	return nil
}

// MySQL describes a MySQL endpoint.
type MySQL struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Database string `json:"database"`
	Username string `json:"username"`
	Password string `json:"-"`
}

func (c *MySQL) Type() EngineType   { return EngineMySQL }
func (c *MySQL) DriverName() string { return "mysql" }

func (c *MySQL) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s", c.Username, c.Password, c.Host, c.Port, c.Database)
}

func (c *MySQL) Redacted() string {
	return fmt.Sprintf("***@%s:%d/%s", c.Host, c.Port, c.Database)
}

func (c *MySQL) Validate() error {
	if err := validateRequired("host", c.Host); err != nil {
		return err
	}
	if err := ValidatePort(c.Port); err != nil {
		return err
	}
	return validateRequired("database", c.Database)
}

// PostgreSQL describes a PostgreSQL endpoint.
type PostgreSQL struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Database string `json:"database"`
	Username string `json:"username"`
	Password string `json:"-"`
	SSLMode  string `json:"ssl_mode,omitempty"`
}

func (c *PostgreSQL) Type() EngineType   { return EnginePostgreSQL }
func (c *PostgreSQL) DriverName() string { return "postgres" }

func (c *PostgreSQL) DSN() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.Host, c.Port, c.Database, c.Username, c.Password, sslMode)
}

func (c *PostgreSQL) Redacted() string {
	return fmt.Sprintf("***@%s:%d/%s", c.Host, c.Port, c.Database)
}

func (c *PostgreSQL) Validate() error {
	if err := validateRequired("host", c.Host); err != nil {
		return err
	}
	if err := ValidatePort(c.Port); err != nil {
		return err
	}
	return validateRequired("database", c.Database)
}

// SQLServer describes a SQL Server endpoint.
type SQLServer struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Database string `json:"database"`
	Username string `json:"username"`
	Password string `json:"-"`
}

func (c *SQLServer) Type() EngineType   { return EngineSQLServer }
func (c *SQLServer) DriverName() string { return "sqlserver" }

func (c *SQLServer) DSN() string {
	u := url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(c.Username, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		RawQuery: url.Values{"database": {c.Database}}.Encode(),
	}
	return u.String()
}

func (c *SQLServer) Redacted() string {
	return fmt.Sprintf("***@%s:%d/%s", c.Host, c.Port, c.Database)
}

func (c *SQLServer) Validate() error {
	if err := validateRequired("host", c.Host); err != nil {
		return err
	}
	if err := ValidatePort(c.Port); err != nil {
		return err
	}
	return validateRequired("database", c.Database)
}

// Oracle describes an Oracle endpoint addressed by service name.
type Oracle struct {
	Host        string `json:"host"`
	Port        int    `json:"port"`
	ServiceName string `json:"service_name"`
	Username    string `json:"username"`
	Password    string `json:"-"`
}

func (c *Oracle) Type() EngineType   { return EngineOracle }
func (c *Oracle) DriverName() string { return "oracle" }

func (c *Oracle) DSN() string {
	return fmt.Sprintf("oracle://%s:%s@%s:%d/%s",
		url.QueryEscape(c.Username), url.QueryEscape(c.Password),
		c.Host, c.Port, c.ServiceName)
}

func (c *Oracle) Redacted() string {
	return fmt.Sprintf("***@%s:%d/%s", c.Host, c.Port, c.ServiceName)
}

func (c *Oracle) Validate() error {
	if err := validateRequired("host", c.Host); err != nil {
		return err
	}
	if err := ValidatePort(c.Port); err != nil {
		return err
	}
	return validateRequired("service name", c.ServiceName)
}

// New constructs a connection of the given engine type from common endpoint
// fields. The database argument is the service name for Oracle.
func New(engine EngineType, host string, port int, database, username, password string) (Connection, error) {
	if err := engine.Validate(); err != nil {
		return nil, err
	}

	var conn Connection
	switch engine {
	case EngineMySQL:
		conn = &MySQL{Host: host, Port: port, Database: database, Username: username, Password: password}
	case EnginePostgreSQL:
		conn = &PostgreSQL{Host: host, Port: port, Database: database, Username: username, Password: password}
	case EngineSQLServer:
		conn = &SQLServer{Host: host, Port: port, Database: database, Username: username, Password: password}
	case EngineOracle:
		conn = &Oracle{Host: host, Port: port, ServiceName: database, Username: username, Password: password}
	}

	if err := conn.Validate(); err != nil {
		return nil, err
	}
	return conn, nil
}
