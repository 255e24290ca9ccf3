package config

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/polyferno/polyferno/src/common"
	"github.com/polyferno/polyferno/src/net"
	"github.com/rifflock/lfshook"
	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

// Default filenames.
const (
	// DefaultBadgerFile is the default name of the folder containing the Badger
	// database
	DefaultBadgerFile = "badger_db"

	// DefaultInfoLogFile and DefaultDebugLogFile are the names of the log files
	// written in the data directory when LogFile is set.
	DefaultInfoLogFile  = "polyferno_info.log"
	DefaultDebugLogFile = "polyferno_debug.log"
)

// Transport names.
const (
	TransportTCP = "tcp"
	TransportZMQ = "zmq"
)

// Default configuration values.
const (
	DefaultLogLevel         = "debug"
	DefaultLogFile          = false
	DefaultBindAddr         = "127.0.0.1:1337"
	DefaultServiceAddr      = "127.0.0.1:8000"
	DefaultTransport        = TransportTCP
	DefaultHeartbeatTimeout = time.Duration(0)
	DefaultTCPTimeout       = 1000 * time.Millisecond
	DefaultMaxPool          = 2
	DefaultQueueSize        = 64
	DefaultModelSize        = 10 * common.MB
	DefaultNumNodes         = 0
	DefaultStore            = false
)

// Config contains all the configuration properties of a polyferno node.
type Config struct {
	// DataDir is the top-level directory containing polyferno configuration
	// and data
	DataDir string `mapstructure:"datadir"`

	// LogLevel determines the chattiness of the log output.
	LogLevel string `mapstructure:"log"`

	// LogFile mirrors info and debug output to files in DataDir.
	LogFile bool `mapstructure:"log-file"`

	// ID is the id of this node in the topology. It must match an entry of
	// peers.json.
	ID uint64 `mapstructure:"id"`

	// Moniker defines the friendly name of this node
	Moniker string `mapstructure:"moniker"`

	// BindAddr is the local address:port where this node receives
	// BroadcastRequests.
	BindAddr string `mapstructure:"listen"`

	// AdvertiseAddr is used to change the address that we advertise to other
	// nodes.
	AdvertiseAddr string `mapstructure:"advertise"`

	// Transport selects the messaging substrate: "tcp" or "zmq".
	Transport string `mapstructure:"transport"`

	// MaxPool controls how many connections are pooled per target.
	MaxPool int `mapstructure:"max-pool"`

	// TCPTimeout is the I/O deadline of TCP connections.
	TCPTimeout time.Duration `mapstructure:"timeout"`

	// QueueSize bounds the inbound queue and each per-neighbor outbound
	// queue. Sends to a full queue fail without blocking.
	QueueSize int `mapstructure:"queue-size"`

	// HeartbeatTimeout is the base period at which the node re-originates its
	// own model. Zero disables re-origination.
	HeartbeatTimeout time.Duration `mapstructure:"heartbeat"`

	// ModelSize is the maximum size in bytes of a model. It must be the same
	// on every node.
	ModelSize int `mapstructure:"model-size"`

	// NumNodes bounds knowledge sets. Zero means the size of the peer-set.
	NumNodes int `mapstructure:"num-nodes"`

	// Neighbors lists the ids of the peers this node sends to. Empty means
	// every other peer of the peer-set.
	Neighbors []uint64 `mapstructure:"neighbors"`

	// ModelFile, when set, is read on startup and submitted as this node's
	// model for the current round.
	ModelFile string `mapstructure:"model-file"`

	// Store activates persistant storage.
	Store bool `mapstructure:"store"`

	// DatabaseDir is the directory containing database files.
	DatabaseDir string `mapstructure:"db"`

	// Bootstrap determines whether or not to reload the inbox from an existing
	// database. Forces Store.
	Bootstrap bool `mapstructure:"bootstrap"`

	// NoService disables the HTTP API service.
	NoService bool `mapstructure:"no-service"`

	// ServiceAddr is the address:port of the optional HTTP service.
	ServiceAddr string `mapstructure:"service-listen"`

	logger *logrus.Logger
}

// NewDefaultConfig returns a config object with default values.
func NewDefaultConfig() *Config {
	config := &Config{
		DataDir:          DefaultDataDir(),
		LogLevel:         DefaultLogLevel,
		LogFile:          DefaultLogFile,
		BindAddr:         DefaultBindAddr,
		ServiceAddr:      DefaultServiceAddr,
		Transport:        DefaultTransport,
		HeartbeatTimeout: DefaultHeartbeatTimeout,
		TCPTimeout:       DefaultTCPTimeout,
		MaxPool:          DefaultMaxPool,
		QueueSize:        DefaultQueueSize,
		ModelSize:        DefaultModelSize,
		NumNodes:         DefaultNumNodes,
		Store:            DefaultStore,
		DatabaseDir:      DefaultDatabaseDir(),
	}

	return config
}

// NewTestConfig returns a config object with default values and a special
// logger for debugging tests.
func NewTestConfig(t testing.TB, level logrus.Level) *Config {
	config := NewDefaultConfig()
	config.logger = common.NewTestLogger(t, level)
	return config
}

// SetDataDir sets the top-level polyferno directory, and updates the database
// directory if it is currently set to the default value. If the database
// directory is not currently the default, it means the user has explicitely set
// it to something else, so avoid changing it again here.
func (c *Config) SetDataDir(dataDir string) {
	c.DataDir = dataDir
	if c.DatabaseDir == DefaultDatabaseDir() {
		c.DatabaseDir = filepath.Join(dataDir, DefaultBadgerFile)
	}
}

// Limits returns the capacity constants of the deployment. numPeers is used
// when NumNodes is not set.
func (c *Config) Limits(numPeers int) net.Limits {
	numNodes := c.NumNodes
	if numNodes <= 0 {
		numNodes = numPeers
	}
	return net.Limits{
		ModelSize: c.ModelSize,
		NumNodes:  numNodes,
	}
}

// Validate checks the values that cannot be defaulted.
func (c *Config) Validate() error {
	if c.ModelSize <= 0 {
		return fmt.Errorf("model-size must be positive, got %d", c.ModelSize)
	}
	if c.NumNodes < 0 {
		return fmt.Errorf("num-nodes must not be negative, got %d", c.NumNodes)
	}
	if c.QueueSize <= 0 {
		return fmt.Errorf("queue-size must be positive, got %d", c.QueueSize)
	}
	switch c.Transport {
	case TransportTCP, TransportZMQ:
	default:
		return fmt.Errorf("unknown transport %q", c.Transport)
	}
	return nil
}

// Logger returns a formatted logrus Entry, with prefix set to "polyferno".
func (c *Config) Logger() *logrus.Entry {
	if c.logger == nil {
		c.logger = logrus.New()
		c.logger.Level = LogLevel(c.LogLevel)
		c.logger.Formatter = new(prefixed.TextFormatter)
		if c.LogFile {
			c.addFileHook()
		}
	}
	return c.logger.WithField("prefix", "polyferno")
}

func (c *Config) addFileHook() {
	pathMap := lfshook.PathMap{}

	infoPath := filepath.Join(c.DataDir, DefaultInfoLogFile)
	if f, err := os.OpenFile(infoPath, os.O_CREATE|os.O_WRONLY, 0666); err != nil {
		c.logger.Infof("Failed to open %s, using default stderr", infoPath)
	} else {
		f.Close()
		pathMap[logrus.InfoLevel] = infoPath
	}

	debugPath := filepath.Join(c.DataDir, DefaultDebugLogFile)
	if f, err := os.OpenFile(debugPath, os.O_CREATE|os.O_WRONLY, 0666); err != nil {
		c.logger.Infof("Failed to open %s, using default stderr", debugPath)
	} else {
		f.Close()
		pathMap[logrus.DebugLevel] = debugPath
	}

	c.logger.Hooks.Add(lfshook.NewHook(
		pathMap,
		&logrus.TextFormatter{},
	))
}

// DefaultDatabaseDir returns the default path for the badger database files.
func DefaultDatabaseDir() string {
	return filepath.Join(DefaultDataDir(), DefaultBadgerFile)
}

// DefaultDataDir return the default directory name for top-level polyferno
// config based on the underlying OS, attempting to respect conventions.
func DefaultDataDir() string {
	// Try to place the data folder in the user's home dir
	home := HomeDir()
	if home != "" {
		if runtime.GOOS == "darwin" {
			return filepath.Join(home, ".Polyferno")
		} else if runtime.GOOS == "windows" {
			return filepath.Join(home, "AppData", "Roaming", "Polyferno")
		} else {
			return filepath.Join(home, ".polyferno")
		}
	}
	// As we cannot guess a stable location, return empty and handle later
	return ""
}

// HomeDir returns the user's home directory.
func HomeDir() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	if usr, err := user.Current(); err == nil {
		return usr.HomeDir
	}
	return ""
}

// LogLevel parses a string into a Logrus log level.
func LogLevel(l string) logrus.Level {
	switch l {
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	case "panic":
		return logrus.PanicLevel
	default:
		return logrus.DebugLevel
	}
}
