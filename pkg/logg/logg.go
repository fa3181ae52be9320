package logg

// Field keys shared by every component logger.
const (
	Layer     = "layer"
	Operation = "op"
	URL       = "url"
	Host      = "host"
	Selector  = "selector"
	SessionID = "session_id"
	Phase     = "phase"
	Action    = "action"
	Path      = "path"
)
