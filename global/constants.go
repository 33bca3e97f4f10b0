package global

const (
	StateDBName = "tradelayerdb"

	ConfigKeyNetwork    = "network"
	ConfigKeyDBName     = "state_db"
	ConfigKeyAPIPort    = "api.port"
	ConfigKeyLogLevel   = "logger.level"
	ConfigKeyAdminAddr  = "admin_address"
	ConfigKeySnapshots  = "snapshots_retained"
	ConfigKeyBlockSec   = "block_interval_sec"
	DefaultAPIPort      = 8091
	DefaultSnapshotsNum = 32
	DefaultBlockSec     = 10
)
