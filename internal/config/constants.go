package config

// SettingsFileName is the settings file looked up from the working directory
// upwards.
const SettingsFileName = "typesubst.yaml"

// SettingsFileNames are all recognized settings file names
var SettingsFileNames = []string{"typesubst.yaml", "typesubst.yml"}

// IsTestMode indicates if the program is running under tests.
// Rendering is kept deterministic while it is set.
var IsTestMode = false

// ShowVariableIDs appends a short unique id to inference variable names.
// Set once at startup from the -ids flag.
var ShowVariableIDs = false

// Built-in classifier names
const (
	AnyTypeName     = "Any"
	NothingTypeName = "Nothing"
	ErrorTypeName   = "ERROR"
)

// Notation keywords
const (
	DynamicKeyword  = "dynamic"
	RawKeyword      = "raw"
	CapturedKeyword = "Captured"
	InKeyword       = "in"
	OutKeyword      = "out"
)

// FreshVariableSuffix is appended to a parameter name to name its fresh
// inference variable (T -> T').
const FreshVariableSuffix = "'"
