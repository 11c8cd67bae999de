package ccnet

import (
	"errors"
	"fmt"
	"time"

	"github.com/arloliu/go-ccnet/logger"
)

// Default configuration values.
const (
	// DefaultBaudRate is the serial speed of CCNet peripherals.
	DefaultBaudRate = 9600

	// DefaultTickInterval paces the protocol loop: one task (or one
	// synthesized Poll) is dispatched per tick.
	DefaultTickInterval = 100 * time.Millisecond

	// DefaultPollTimeout is the response budget for synthesized Poll tasks.
	DefaultPollTimeout = time.Second

	// DefaultCommandTimeout is the response budget for the convenience
	// operations when the caller does not choose one.
	DefaultCommandTimeout = time.Second

	// DefaultQueueSize is the capacity of the task submission channel.
	DefaultQueueSize = 10
)

// Configuration limits.
const (
	MinTickInterval = 5 * time.Millisecond
	MaxTickInterval = time.Second
)

// Config holds all configuration for a Device.
type Config struct {
	// portName is the serial port to open. Ignored when a Transport is
	// injected with WithTransport.
	portName string
	baudRate int

	// address is the CCNet peripheral address placed in every frame.
	address byte

	tickInterval   time.Duration
	pollTimeout    time.Duration
	defaultTimeout time.Duration

	queueSize int

	transport Transport
	logger    logger.Logger
}

// NewConfig creates a device configuration for the given serial port.
//
// portName may be empty when WithTransport supplies the link instead.
// opts are functional options applied in order; see With* functions.
func NewConfig(portName string, opts ...Option) (*Config, error) {
	cfg := &Config{
		portName:       portName,
		baudRate:       DefaultBaudRate,
		address:        BillValidatorAddr,
		tickInterval:   DefaultTickInterval,
		pollTimeout:    DefaultPollTimeout,
		defaultTimeout: DefaultCommandTimeout,
		queueSize:      DefaultQueueSize,
		logger:         logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.portName == "" && cfg.transport == nil {
		return nil, errors.New("ccnet: config needs a serial port name or an injected transport")
	}

	return cfg, nil
}

// --- Getters ---

// PortName returns the configured serial port name.
func (cfg *Config) PortName() string { return cfg.portName }

// BaudRate returns the configured serial speed.
func (cfg *Config) BaudRate() int { return cfg.baudRate }

// Address returns the peripheral address placed in every frame.
func (cfg *Config) Address() byte { return cfg.address }

// TickInterval returns the protocol loop pacing interval.
func (cfg *Config) TickInterval() time.Duration { return cfg.tickInterval }

// PollTimeout returns the response budget of synthesized Poll tasks.
func (cfg *Config) PollTimeout() time.Duration { return cfg.pollTimeout }

// DefaultTimeout returns the response budget used by the convenience
// operations.
func (cfg *Config) DefaultTimeout() time.Duration { return cfg.defaultTimeout }

// QueueSize returns the task submission channel capacity.
func (cfg *Config) QueueSize() int { return cfg.queueSize }

// GetLogger returns the configured logger.
func (cfg *Config) GetLogger() logger.Logger { return cfg.logger }

// --- Option ---

// Option is a functional option for configuring a Config.
type Option interface {
	apply(*Config) error
}

type optFunc func(*Config) error

func (f optFunc) apply(cfg *Config) error { return f(cfg) }

// WithBaudRate sets the serial speed. CCNet peripherals default to 9600
// and optionally support 19200.
func WithBaudRate(rate int) Option {
	return optFunc(func(cfg *Config) error {
		if rate <= 0 {
			return fmt.Errorf("ccnet: baud rate %d must be positive", rate)
		}
		cfg.baudRate = rate

		return nil
	})
}

// WithAddress sets the peripheral address placed in every frame. The
// default is the bill validator address (0x03).
func WithAddress(addr byte) Option {
	return optFunc(func(cfg *Config) error {
		cfg.address = addr

		return nil
	})
}

// WithTickInterval sets the protocol loop pacing interval.
func WithTickInterval(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d < MinTickInterval || d > MaxTickInterval {
			return fmt.Errorf("ccnet: tick interval %v out of range [%v, %v]", d, MinTickInterval, MaxTickInterval)
		}
		cfg.tickInterval = d

		return nil
	})
}

// WithPollTimeout sets the response budget for synthesized Poll tasks.
func WithPollTimeout(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d <= 0 {
			return errors.New("ccnet: poll timeout must be positive")
		}
		cfg.pollTimeout = d

		return nil
	})
}

// WithDefaultTimeout sets the response budget used by the convenience
// operations. Zero disables their timeout.
func WithDefaultTimeout(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d < 0 {
			return errors.New("ccnet: default timeout must not be negative")
		}
		cfg.defaultTimeout = d

		return nil
	})
}

// WithQueueSize sets the task submission channel capacity.
func WithQueueSize(size int) Option {
	return optFunc(func(cfg *Config) error {
		if size < 1 {
			return errors.New("ccnet: queue size must be >= 1")
		}
		cfg.queueSize = size

		return nil
	})
}

// WithTransport injects the byte-stream link, bypassing the serial port
// open. Used by tests and by callers bridging CCNet over other streams.
func WithTransport(tr Transport) Option {
	return optFunc(func(cfg *Config) error {
		if tr == nil {
			return errors.New("ccnet: transport must not be nil")
		}
		cfg.transport = tr

		return nil
	})
}

// WithLogger sets the logger for the device.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(cfg *Config) error {
		if l == nil {
			return errors.New("ccnet: logger must not be nil")
		}
		cfg.logger = l

		return nil
	})
}
