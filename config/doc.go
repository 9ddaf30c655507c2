// Package config loads callscope's settings.
//
// Settings are layered: built-in defaults, then an optional TOML or YAML
// file, then a .env file, then the process environment. Later layers win.
package config
