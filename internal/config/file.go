package config

// File mirrors the optional YAML configuration file. Empty values are treated as unset.
//
//	app_name: Ingreedients
//	env: DEV
//	log:
//	  level: debug
//	  format: text
//	api:
//	  base_url: https://api.example.com
//	  timeout: 10s
//	storage:
//	  backend: sqlite
//	  path: ./data/session.db
//	session:
//	  tokenless_verification: confirms_account
//	  expiry_precheck: true
type File struct {
	AppName string      `yaml:"app_name,omitempty"`
	Env     string      `yaml:"env,omitempty"`
	Log     FileLog     `yaml:"log,omitempty"`
	API     FileAPI     `yaml:"api,omitempty"`
	Storage FileStorage `yaml:"storage,omitempty"`
	Session FileSession `yaml:"session,omitempty"`
}

type FileLog struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"`
}

type FileAPI struct {
	BaseURL string `yaml:"base_url,omitempty"`
	Timeout string `yaml:"timeout,omitempty"`
}

type FileStorage struct {
	Backend     string `yaml:"backend,omitempty"`
	Path        string `yaml:"path,omitempty"`
	Passphrase  string `yaml:"passphrase,omitempty"`
	RedisAddr   string `yaml:"redis_addr,omitempty"`
	RedisPrefix string `yaml:"redis_prefix,omitempty"`
	Key         string `yaml:"key,omitempty"`
}

type FileSession struct {
	TokenlessVerification string `yaml:"tokenless_verification,omitempty"`
	ExpiryPrecheck        *bool  `yaml:"expiry_precheck,omitempty"`
}
