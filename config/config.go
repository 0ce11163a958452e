package config

import (
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"
)

type (
	URIRequestLineSize struct {
		Default, Maximal int
	}

	HeadersNumber struct {
		Default, Maximal int
	}

	HeadersSpace struct {
		Default, Maximal int
	}
)

type (
	URI struct {
		// RequestLineSize is the arena holding decoded method, request target and protocol
		// of the current request. Exceeding the maximal boundary results in
		// status.ErrTooLongRequestLine.
		RequestLineSize URIRequestLineSize `yaml:"request_line_size"`
	}

	Headers struct {
		// Number is responsible for headers storage size.
		// Default value is an initial size of allocated headers storage.
		// Maximal value is maximum number of header lines allowed to be presented.
		Number HeadersNumber `yaml:"number"`
		// Space limits the amount of memory occupied by decoded request header names and values.
		Space HeadersSpace `yaml:"space"`
	}

	Body struct {
		// MaxSize describes the maximal size of a request body, that can be processed. Bodies
		// exceeding it are faulted with status.ErrBodyTooLarge and the connection is not reused.
		// It also bounds the body pieces received but not yet read by the handler.
		MaxSize uint64 `yaml:"max_size"`
		// MaxChunkSize limits a single chunk of a chunked-encoded request body.
		MaxChunkSize int64 `yaml:"max_chunk_size"`
	}

	NET struct {
		// ReadBufferSize is the initial capacity of a connection's receive baton.
		ReadBufferSize int `yaml:"read_buffer_size"`
		// Multicore spreads connections among event-loops bound to every available core.
		Multicore bool `yaml:"multicore" test:"nullable"`
		// ReusePort sets SO_REUSEPORT on the listening socket.
		ReusePort bool `yaml:"reuse_port" test:"nullable"`
		// NumEventLoop overrides the number of event-loops. Zero lets the engine decide.
		NumEventLoop int `yaml:"num_event_loop" test:"nullable"`
		// TCPKeepAlive is the period of TCP-level keep-alive probes.
		TCPKeepAlive time.Duration `yaml:"tcp_keep_alive"`
		// Linger limits how long closing the connection (or its sending side) waits for the
		// already written response to be sent out, if the peer doesn't read it.
		Linger time.Duration `yaml:"linger"`
	}

	Workers struct {
		// PoolSize is the capacity of the pool running offloaded handlers.
		PoolSize int `yaml:"pool_size"`
		// Nonblocking makes handler submission fail immediately instead of waiting for a
		// free worker when the pool is exhausted.
		Nonblocking bool `yaml:"nonblocking" test:"nullable"`
	}
)

// Config holds settings used across various parts of framer, mainly restrictions, limitations
// and pre-allocations.
//
// You must ALWAYS modify defaults (returned via Default()) and NEVER try to initialize the
// config manually, because most likely this will result in ambiguous errors.
type Config struct {
	URI     URI     `yaml:"uri"`
	Headers Headers `yaml:"headers"`
	Body    Body    `yaml:"body"`
	NET     NET     `yaml:"net"`
	Workers Workers `yaml:"workers"`
}

// Default returns default config. Those are initially well-balanced, however maximal defaults
// are pretty permitting.
func Default() *Config {
	return &Config{
		URI: URI{
			RequestLineSize: URIRequestLineSize{
				Default: 2 * 1024,
				// allow at most 16kb of request line, which is effectively pretty much tolerant,
				// considering most web-entities limit it to 4-8kb.
				Maximal: 16 * 1024,
			},
		},
		Headers: Headers{
			Number: HeadersNumber{
				Default: 10,
				Maximal: 50,
			},
			Space: HeadersSpace{
				Default: 1 * 1024,  // 1kb for headers must be fairly enough in most cases.
				Maximal: 16 * 1024, // However, there also might be extremely long cookies.
			},
		},
		Body: Body{
			MaxSize:      512 * 1024 * 1024, // 512 megabytes
			MaxChunkSize: 4 * 1024 * 1024,
		},
		NET: NET{
			ReadBufferSize: 4 * 1024,
			TCPKeepAlive:   time.Minute,
			Linger:         30 * time.Second,
		},
		Workers: Workers{
			PoolSize: 10_000,
		},
	}
}

// Load decodes a YAML document on top of the defaults, so only the values that must be
// changed have to be specified.
func Load(r io.Reader) (*Config, error) {
	cfg := Default()
	if err := yaml.NewDecoder(r).Decode(cfg); err != nil && err != io.EOF {
		return nil, fmt.Errorf("config: decode: %w", err)
	}

	return cfg, nil
}
