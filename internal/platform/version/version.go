package version

import "runtime"

// Set with -ldflags "-X github.com/okatech-org/sgg.ga-sub004/internal/platform/version.Version=...".
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

const Service = "sgg-realtime-gateway"

type Info struct {
	Service   string `json:"service"`
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
}

func Get() Info {
	return Info{
		Service:   Service,
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
	}
}

// String renders the build as "<service> <version> (<commit>)".
func (i Info) String() string {
	return i.Service + " " + i.Version + " (" + i.Commit + ")"
}
