package cfg

type Cfg struct {
	// Database configuration
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Application configuration
	FeedsDir     string
	ChannelsFile string
	Port         string
	WorkerCount  int
	PollInterval int
	Once         bool

	// Application metadata
	UserAgent string
	Debug     bool
	Version   string
}
