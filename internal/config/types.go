package config

import (
	"errors"
	"fmt"
)

// DefaultProfile is the profile sentinel meaning "no specific profile".
const DefaultProfile = "__default__"

// DefaultPath is where the pull configuration lives unless --cfg says otherwise.
const DefaultPath = "./mrms-pull.json"

// ErrNotFound is returned by Load when the configuration file cannot be read.
var ErrNotFound = errors.New("config file not found")

// ErrFormat is returned by Load when the file does not parse into a Config.
var ErrFormat = errors.New("config file format error")

// Config describes which release to pull and where to put it.
// - Server/Port: address of the release server.
// - Version: release version; empty means the project's current version.
// - Dir: local root directory the release files are written under.
// - Project/Profile: identify the release on the server.
// - Auth: token passed through to the server as-is.
type Config struct {
	Server  string `json:"server" yaml:"server"`
	Port    uint32 `json:"port" yaml:"port"`
	Version string `json:"version" yaml:"version"`
	Dir     string `json:"dir" yaml:"dir"`
	Project string `json:"project" yaml:"project"`
	Profile string `json:"profile" yaml:"profile"`
	Auth    string `json:"auth" yaml:"auth"`
}

// Default returns the placeholder configuration written by --init.
func Default() Config {
	return Config{
		Server:  "127.0.0.1",
		Port:    11111,
		Version: "",
		Dir:     ".",
		Project: "project_name",
		Profile: DefaultProfile,
		Auth:    "your_auth_code",
	}
}

// BaseURL is the single endpoint every request is sent to.
func (c Config) BaseURL() string {
	return fmt.Sprintf("http://%s:%d", c.Server, c.Port)
}

// Clone returns an independent copy. Config only holds values, so a copy is enough.
func (c Config) Clone() Config {
	return c
}
