package server

func defaultOptions() *Options {
	return &Options{
		Host: "0.0.0.0",
		Port: 8000,
	}
}

type Options struct {
	Host string
	Port int
}

type Option func(*Options)

func WithHost(s string) Option {
	return func(opts *Options) {
		opts.Host = s
	}
}

func WithPort(v int) Option {
	return func(opts *Options) {
		opts.Port = v
	}
}
