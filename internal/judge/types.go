// Package judge holds the domain model shared by every component of the
// Judge Execution Engine: submissions, parameters, resource limits, and
// verdicts. Nothing in this package performs I/O.
package judge

import "time"

// Language is a supported submission language. Bit-exact support is limited
// to C and C++; the taxonomy is open for future languages.
type Language string

const (
	LanguageC   Language = "c"
	LanguageCpp Language = "cpp"
)

// TypeTag is the closed set of parameter/return types the codec and harness
// generators understand.
type TypeTag string

const (
	TypeInt          TypeTag = "int"
	TypeFloat        TypeTag = "float"
	TypeDouble       TypeTag = "double"
	TypeChar         TypeTag = "char"
	TypeString       TypeTag = "string"
	TypeArrayInt     TypeTag = "array_int"
	TypeArrayFloat   TypeTag = "array_float"
	TypeArrayChar    TypeTag = "array_char"
	TypeVectorInt    TypeTag = "vector<int>"
	TypeVectorFloat  TypeTag = "vector<float>"
	TypeVectorDouble TypeTag = "vector<double>"
	TypeVectorString TypeTag = "vector<string>"
	TypeBool         TypeTag = "bool"
	TypeVoid         TypeTag = "void"
)

// ReturnValueKey is the reserved Expected/Actual map key for a call's return.
const ReturnValueKey = "return_value"

// validTypeTags is the closed parameter-type set (excludes void, which is
// only legal as a function-type tag).
var validTypeTags = map[TypeTag]bool{
	TypeInt: true, TypeFloat: true, TypeDouble: true, TypeChar: true,
	TypeString: true, TypeArrayInt: true, TypeArrayFloat: true, TypeArrayChar: true,
	TypeVectorInt: true, TypeVectorFloat: true, TypeVectorDouble: true,
	TypeVectorString: true, TypeBool: true,
}

// IsArray reports whether t denotes an ordered multi-element container.
func (t TypeTag) IsArray() bool {
	switch t {
	case TypeArrayInt, TypeArrayFloat, TypeArrayChar,
		TypeVectorInt, TypeVectorFloat, TypeVectorDouble, TypeVectorString:
		return true
	}
	return false
}

// Parameter is an ordered ⟨name, type tag, initial value⟩ triple.
type Parameter struct {
	Name         string      `json:"name"`
	Type         TypeTag     `json:"type"`
	InitialValue interface{} `json:"input_value"`
}

// CompilerSettings is the ⟨standard, flags, optimization⟩ record from spec §3.
type CompilerSettings struct {
	Standard      string `json:"standard"`
	Flags         string `json:"flags"`
	Optimization  string `json:"optimization"`
}

// DefaultCompilerSettings returns the per-language defaults from spec §3.
func DefaultCompilerSettings(lang Language) CompilerSettings {
	switch lang {
	case LanguageCpp:
		return CompilerSettings{Standard: "c++17", Flags: "-Wall -Wextra", Optimization: "-O2"}
	default:
		return CompilerSettings{Standard: "c99", Flags: "-Wall -Wextra", Optimization: ""}
	}
}

// ResourceLimits is the ⟨compile_timeout_s, execution_timeout_s,
// memory_bytes, cpu_cores⟩ record from spec §3, with the hard ceilings it
// defines.
type ResourceLimits struct {
	CompileTimeout   time.Duration `json:"compile_timeout_s"`
	ExecutionTimeout time.Duration `json:"execution_timeout_s"`
	MemoryBytes      int64         `json:"memory_bytes"`
	CPUCores         float64       `json:"cpu_cores"`
}

// Hard ceilings from spec §3.
const (
	MaxCompileTimeout   = 300 * time.Second
	MaxExecutionTimeout = 60 * time.Second
	MaxMemoryBytes      = 1 << 30 // 1 GiB
	MaxCPUCores         = 4.0
)

// DefaultResourceLimits returns the spec §3 defaults.
func DefaultResourceLimits() ResourceLimits {
	return ResourceLimits{
		CompileTimeout:   30 * time.Second,
		ExecutionTimeout: 10 * time.Second,
		MemoryBytes:      128 << 20,
		CPUCores:         1.0,
	}
}

// Clamp pins over-limit fields to the hard ceilings rather than rejecting
// the request. spec.md states the ceilings but is silent on whether
// exceeding them is a validation error or a clamp; SPEC_FULL.md pins clamp
// (see DESIGN.md Open Questions).
func (r ResourceLimits) Clamp() ResourceLimits {
	out := r
	if out.CompileTimeout <= 0 {
		out.CompileTimeout = DefaultResourceLimits().CompileTimeout
	}
	if out.CompileTimeout > MaxCompileTimeout {
		out.CompileTimeout = MaxCompileTimeout
	}
	if out.ExecutionTimeout <= 0 {
		out.ExecutionTimeout = DefaultResourceLimits().ExecutionTimeout
	}
	if out.ExecutionTimeout > MaxExecutionTimeout {
		out.ExecutionTimeout = MaxExecutionTimeout
	}
	if out.MemoryBytes <= 0 {
		out.MemoryBytes = DefaultResourceLimits().MemoryBytes
	}
	if out.MemoryBytes > MaxMemoryBytes {
		out.MemoryBytes = MaxMemoryBytes
	}
	if out.CPUCores <= 0 {
		out.CPUCores = DefaultResourceLimits().CPUCores
	}
	if out.CPUCores > MaxCPUCores {
		out.CPUCores = MaxCPUCores
	}
	return out
}

// MaxSourceBytes is the submission source-size cap from spec §6.
const MaxSourceBytes = 50_000

// MaxBatchSize is the batch-size cap from spec §6.
const MaxBatchSize = 100

// Submission is the immutable triple ⟨language, source, test configuration⟩
// plus the compiler/resource overrides from spec §3.
type Submission struct {
	Language         Language           `json:"language"`
	Source           string             `json:"source"`
	Parameters       []Parameter        `json:"solve_params"`
	Expected         map[string]interface{} `json:"expected"`
	FunctionType     TypeTag            `json:"function_type"`
	CompilerSettings *CompilerSettings  `json:"compiler_settings,omitempty"`
	ResourceLimits   *ResourceLimits    `json:"resource_limits,omitempty"`
}

// ConfigError is raised by Validate before any sandbox is acquired. It never
// appears in a Verdict (spec §7) — the facade surfaces it as a structured
// 4xx response instead.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string { return "invalid submission: " + e.Reason }

// Validate enforces the invariants from spec §3: language support, source
// size, parameter name uniqueness, and type-tag membership.
func (s *Submission) Validate() error {
	switch s.Language {
	case LanguageC, LanguageCpp:
	default:
		return &ConfigError{Reason: "unsupported language: " + string(s.Language)}
	}
	if len(s.Source) == 0 {
		return &ConfigError{Reason: "source must not be empty"}
	}
	if len(s.Source) > MaxSourceBytes {
		return &ConfigError{Reason: "source exceeds maximum size"}
	}
	seen := make(map[string]bool, len(s.Parameters))
	for _, p := range s.Parameters {
		if p.Name == "" {
			return &ConfigError{Reason: "parameter name must not be empty"}
		}
		if seen[p.Name] {
			return &ConfigError{Reason: "duplicate parameter name: " + p.Name}
		}
		seen[p.Name] = true
		if !validTypeTags[p.Type] {
			return &ConfigError{Reason: "invalid type tag for parameter " + p.Name + ": " + string(p.Type)}
		}
		if s.Language == LanguageC {
			switch p.Type {
			case TypeVectorInt, TypeVectorFloat, TypeVectorDouble, TypeVectorString:
				return &ConfigError{Reason: "vector types are not supported for C: parameter " + p.Name}
			}
		}
	}
	if s.FunctionType != TypeVoid && !validTypeTags[s.FunctionType] {
		return &ConfigError{Reason: "invalid function_type: " + string(s.FunctionType)}
	}
	return nil
}

// EffectiveCompilerSettings returns the submission's override or the
// language default.
func (s *Submission) EffectiveCompilerSettings() CompilerSettings {
	if s.CompilerSettings != nil {
		return *s.CompilerSettings
	}
	return DefaultCompilerSettings(s.Language)
}

// EffectiveResourceLimits returns the submission's override (clamped) or
// the default.
func (s *Submission) EffectiveResourceLimits() ResourceLimits {
	if s.ResourceLimits != nil {
		return s.ResourceLimits.Clamp()
	}
	return DefaultResourceLimits()
}

// Schema is the ordered ⟨name,type⟩ list plus function-type tag that
// determines whether two configurations can share a compiled test_runner
// (spec §4.D "compile-once correctness rule").
type Schema struct {
	Params       []Parameter
	FunctionType TypeTag
}

// Hash returns a stable identity for the schema: two schemas with the same
// ordered ⟨name,type⟩ pairs and function type hash identically regardless
// of initial values or expected maps.
func (s Schema) Hash() string {
	h := make([]byte, 0, 64)
	for _, p := range s.Params {
		h = append(h, p.Name...)
		h = append(h, ':')
		h = append(h, p.Type...)
		h = append(h, '|')
	}
	h = append(h, "->"...)
	h = append(h, s.FunctionType...)
	return string(h)
}

// SchemaOf extracts the compile-once identity from a submission.
func SchemaOf(s *Submission) Schema {
	return Schema{Params: s.Parameters, FunctionType: s.FunctionType}
}
