package fleettop

import (
	"time"
)

const (
	// DataPath is the netdata query endpoint, relative to an agent base URL
	DataPath = "/api/v1/data"

	// TimeLabel is the column holding the row timestamp
	TimeLabel = "time"

	// DefaultGroup is the netdata aggregation method used by both windows
	DefaultGroup = "average"

	// DefaultAgentPort is the port a netdata agent listens on out of the box
	DefaultAgentPort = "19999"

	// DefaultRequestTimeout bounds every single chart request
	DefaultRequestTimeout = 5 * time.Second

	// DefaultWorkers is the number of machines polled at the same time
	DefaultWorkers = 4

	// DefaultRefreshInterval is how often the terminal dashboard polls the fleet
	DefaultRefreshInterval = 5 * time.Second

	// response bodies above this size are truncated and will fail to decode
	maxBodyBytes = 4 << 20

	// how much of a non-2xx body is kept in the error
	maxErrorBodyBytes = 256
)

// DashboardWindow is the live view query: ten averaged points over the last minute
var DashboardWindow = Window{After: -60, Points: 10, Group: DefaultGroup}

// SnapshotWindow is the logging query: one averaged value over the last minute
var SnapshotWindow = Window{After: -60, Points: 1, Group: DefaultGroup}
