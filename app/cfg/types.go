package cfg

type Mode string

const (
	ModeRun   Mode = "run"
	ModeServe Mode = "serve"
)

type Cfg struct {
	// Crawl configuration
	SiteConfig string
	UserAgent  string
	OnChange   string

	// Daemon configuration
	Mode              Mode
	DBPath            string
	Port              string
	SchedulerInterval int
	APIAccessKey      string

	// Application metadata
	Timezone string
	Debug    bool
	Version  string
}
