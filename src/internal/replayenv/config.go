package replayenv

import (
	"time"

	"github.com/replayfs/replayfs/src/internal/cmdutil"
)

// Storage backends.
const (
	BackendBolt   = "bolt"
	BackendMemory = "memory"
)

// Configuration is the configuration of a process that records or replays file provenance.
// Fields are read from the environment by cmdutil.Populate.
type Configuration struct {
	*StorageConfiguration
	*FilemapConfiguration

	LogLevel string `env:"FILEMAP_LOG_LEVEL,default=info"`
	// LogFormat is "json" or "console"; empty picks console on a terminal.
	LogFormat string `env:"FILEMAP_LOG_FORMAT"`
}

// StorageConfiguration says where and how filemap data is stored.
type StorageConfiguration struct {
	Backend     string           `env:"FILEMAP_BACKEND,default=bolt"`
	DBPath      string           `env:"FILEMAP_DB,default=/var/lib/replayfs/filemap.db"`
	PageSize    cmdutil.ByteSize `env:"FILEMAP_PAGE_SIZE,default=4KiB"`
	MaxPages    uint64           `env:"FILEMAP_MAX_PAGES,default=0"`
	OpenTimeout time.Duration    `env:"FILEMAP_OPEN_TIMEOUT,default=1s"`
	NoSync      bool             `env:"FILEMAP_NO_SYNC,default=false"`
}

// FilemapConfiguration tunes the filemap service.
type FilemapConfiguration struct {
	CacheSize    int `env:"FILEMAP_CACHE_SIZE,default=1024"`
	MaxFragments int `env:"FILEMAP_MAX_FRAGMENTS,default=0"`
}

// NewConfiguration returns a Configuration with empty sections, ready for cmdutil.Populate.
func NewConfiguration() *Configuration {
	return &Configuration{
		StorageConfiguration: &StorageConfiguration{},
		FilemapConfiguration: &FilemapConfiguration{},
	}
}
