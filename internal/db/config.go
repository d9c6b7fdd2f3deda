package db

const sslModeDisable = "disable"

// DefaultConfig returns the default configuration of the database.
func DefaultConfig() *Config {
	return &Config{
		Host:    "localhost",
		Port:    "5432",
		Name:    "fabrik",
		SSLMode: sslModeDisable,
	}
}

// Config hosts configuration fields of the database.
type Config struct {
	User        string `json:"user"`
	Password    string `json:"password"`
	Host        string `json:"host"`
	Port        string `json:"port"`
	Name        string `json:"name"`
	SSLMode     string `json:"ssl_mode"`
	SSLRootCert string `json:"ssl_root_cert"`
}
