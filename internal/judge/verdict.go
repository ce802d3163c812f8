package judge

// Status is the canonical, closed verdict taxonomy from spec §3/§7.
type Status string

const (
	StatusSuccess        Status = "SUCCESS"
	StatusWrongAnswer    Status = "WRONG_ANSWER"
	StatusCompileError   Status = "COMPILE_ERROR"
	StatusCompileTimeout Status = "COMPILE_TIMEOUT"
	StatusRuntimeError   Status = "RUNTIME_ERROR"
	StatusTimeout        Status = "TIMEOUT"
	StatusInternalError  Status = "INTERNAL_ERROR"
)

// Metrics carries compile/run telemetry, always populated regardless of
// outcome (spec §4.B step 6).
type Metrics struct {
	WallMs       float64 `json:"wall_ms"`
	CompileMs    float64 `json:"compile_ms"`
	UserCPUSec   float64 `json:"user_cpu_s"`
	SysCPUSec    float64 `json:"sys_cpu_s"`
	MaxRSSBytes  int64   `json:"max_rss_bytes"`
	Recompiled   bool    `json:"recompiled"`
}

// Verdict is the canonical outcome record produced for every submission,
// spec §3.
type Verdict struct {
	Status        Status                 `json:"status"`
	Match         *bool                  `json:"match,omitempty"`
	Expected      map[string]interface{} `json:"expected,omitempty"`
	Actual        map[string]interface{} `json:"actual,omitempty"`
	Stdout        string                 `json:"stdout,omitempty"`
	Stderr        string                 `json:"stderr,omitempty"`
	CompileOutput string                 `json:"compile_output,omitempty"`
	ExitCode      int                    `json:"exit_code"`
	Metrics       Metrics                `json:"metrics"`
	ErrorDetail   string                 `json:"error_detail,omitempty"`
}

// BoolPtr is a small helper so callers can write judge.BoolPtr(true).
func BoolPtr(b bool) *bool { return &b }
