// Package config loads and monitors the library configuration.
//
// The configuration is reloaded when the file changes on disk, so a
// long-running consumer can switch, say, the default address family or
// the log verbosity without restarting.
package config

import (
	"encoding/json"
	"io/ioutil"
	"sync"

	"github.com/evilsocket/libipset/log"
	"github.com/evilsocket/libipset/set"
	"github.com/fsnotify/fsnotify"
)

// DefaultConfigFile is where the library looks when the caller does not
// name a file.
const DefaultConfigFile = "/etc/libipset/libipset.json"

type callback func()

// Settings holds the tunables read from disk.
type Settings struct {
	sync.RWMutex

	// LogLevel: DEBUG(0) .. FATAL(5).
	LogLevel *int
	LogUTC   bool
	LogMicro bool

	// DefaultFamily is used when a command does not specify one:
	// "inet", "inet6" or empty for unspecified.
	DefaultFamily string

	// NetNS is the path of the network namespace to talk to, empty for
	// the current one.
	NetNS string
}

// Config holds the functionality to re/load the configuration from disk.
type Config struct {
	sync.Mutex

	file            string
	watcher         *fsnotify.Watcher
	monitorExitChan chan bool
	Settings        Settings

	// subscribe to this channel to receive config reload events
	ReloadConfChan chan bool

	// reloadCallback is called after every successful reload.
	reloadCallback callback
}

// NewConfig initializes config fields and the file watcher. file may be
// empty to use DefaultConfigFile.
func NewConfig(file string, reloadCb callback) (*Config, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Warning("Error creating config watcher: %s", err)
		return nil, err
	}

	if file == "" {
		file = DefaultConfigFile
	}
	c := &Config{
		file:            file,
		watcher:         watcher,
		monitorExitChan: make(chan bool, 1),
		ReloadConfChan:  make(chan bool, 1),
		reloadCallback:  reloadCb,
	}
	return c, nil
}

// LoadDiskConfiguration reads and loads the configuration from disk
func (c *Config) LoadDiskConfiguration(reload bool) {
	c.Lock()
	defer c.Unlock()

	raw, err := ioutil.ReadFile(c.file)
	if err != nil {
		log.Error("Error reading configuration from disk %s: %s", c.file, err)
		return
	}

	c.loadConfiguration(raw)
	// monitor the file for changes, regardless if it's malformed or not.
	c.watcher.Remove(c.file)
	if err := c.watcher.Add(c.file); err != nil {
		log.Error("Could not watch configuration: %s", err)
		return
	}

	if reload {
		c.ReloadConfChan <- true
		return
	}

	go c.monitorConfigWorker()
}

func (c *Config) loadConfiguration(rawConfig []byte) {
	c.Settings.Lock()
	defer c.Settings.Unlock()

	if err := json.Unmarshal(rawConfig, &c.Settings); err != nil {
		// only log the parser error, giving the user a chance to write
		// a valid config
		log.Error("Error parsing configuration %s: %s", c.file, err)
		return
	}
	c.apply()
	log.Info("configuration loaded from %s", c.file)
}

// apply pushes the logging knobs into the logger. Called with the
// settings lock held.
func (c *Config) apply() {
	if c.Settings.LogLevel != nil {
		log.SetLogLevel(*c.Settings.LogLevel)
	}
	log.SetLogUTC(c.Settings.LogUTC)
	log.SetLogMicro(c.Settings.LogMicro)
}

// Family returns the configured default address family.
func (c *Config) Family() set.Family {
	c.Settings.RLock()
	defer c.Settings.RUnlock()

	if f, ok := set.ParseFamily(c.Settings.DefaultFamily); ok {
		return f
	}
	log.Warning("unknown DefaultFamily %q in %s, using unspec", c.Settings.DefaultFamily, c.file)
	return set.FamilyUnspec
}

// NetNS returns the configured network namespace path, empty for the
// current namespace.
func (c *Config) NetNS() string {
	c.Settings.RLock()
	defer c.Settings.RUnlock()
	return c.Settings.NetNS
}

// StopConfigWatcher stops the configuration watcher and its subroutine.
func (c *Config) StopConfigWatcher() {
	c.Lock()
	defer c.Unlock()

	if c.monitorExitChan != nil {
		c.monitorExitChan <- true
		close(c.monitorExitChan)
	}

	if c.watcher != nil {
		c.watcher.Remove(c.file)
		c.watcher.Close()
	}
}

func (c *Config) monitorConfigWorker() {
	for {
		select {
		case <-c.monitorExitChan:
			goto Exit
		case event := <-c.watcher.Events:
			if (event.Op&fsnotify.Write == fsnotify.Write) || (event.Op&fsnotify.Remove == fsnotify.Remove) {
				c.LoadDiskConfiguration(true)
				if c.reloadCallback != nil {
					c.reloadCallback()
				}
			}
		}
	}
Exit:
	log.Debug("stop monitoring config file")
	c.Lock()
	c.monitorExitChan = nil
	c.Unlock()
}
