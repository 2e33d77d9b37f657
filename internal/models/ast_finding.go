package models

// ASTFindingKind classifies a syntax heuristic result
type ASTFindingKind string

const (
	KindEndpointLiteral             ASTFindingKind = "endpoint-literal"
	KindSecretLiteral               ASTFindingKind = "secret-literal"
	KindSensitiveVariableAssignment ASTFindingKind = "sensitive-variable-assignment"
	KindSensitivePropertyAssignment ASTFindingKind = "sensitive-property-assignment"
	KindAPICallArgument             ASTFindingKind = "api-call-argument"
	KindParseError                  ASTFindingKind = "parse-error"
)

// Location is a 1-based line and 0-based column in the script source
type Location struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// ASTFinding is one observation of the syntax heuristic analyzer
type ASTFinding struct {
	Kind        ASTFindingKind `json:"kind"`
	Location    Location       `json:"location"`
	Detail      string         `json:"detail"`
	MatchedText string         `json:"matched_text"`
	SourceURL   string         `json:"source_url"`
}
