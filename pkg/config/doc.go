/*
Package config provides the configuration surface shared by every node of the plugin tree.

Overlay merges option maps with explicit precedence, Decode maps them onto typed
structs, and Load assembles the application configuration from a YAML file, a .env
file and TURNSTILE_* environment variables.
*/
package config
