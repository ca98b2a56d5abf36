package internal

import "io"

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config    *Config
	password  string
	logOutput io.Writer
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithPassword sets the password used to unlock an encrypted store.
func WithPassword(password string) Option {
	return func(a *application) {
		a.password = password
	}
}

// WithLogOutput redirects the JSON log. Stdio front ends log to stderr.
func WithLogOutput(w io.Writer) Option {
	return func(a *application) {
		a.logOutput = w
	}
}
