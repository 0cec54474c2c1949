package cfn

// =============================================================================
// Intrinsic Functions
// =============================================================================

// Ref returns a {"Ref": name} intrinsic.
func Ref(name string) map[string]any {
	return map[string]any{"Ref": name}
}

// GetAtt returns a {"Fn::GetAtt": [name, attribute]} intrinsic.
func GetAtt(name, attribute string) map[string]any {
	return map[string]any{"Fn::GetAtt": []string{name, attribute}}
}

// Sub returns a {"Fn::Sub": expr} intrinsic.
func Sub(expr string) map[string]any {
	return map[string]any{"Fn::Sub": expr}
}

// ImportValue returns a {"Fn::ImportValue": name} intrinsic.
func ImportValue(name string) map[string]any {
	return map[string]any{"Fn::ImportValue": name}
}

// Join returns a {"Fn::Join": [sep, values]} intrinsic.
func Join(sep string, values []any) map[string]any {
	return map[string]any{"Fn::Join": []any{sep, values}}
}

// Pseudo parameters.
const (
	AccountID = "AWS::AccountId"
	Region    = "AWS::Region"
	StackName = "AWS::StackName"
	NoValue   = "AWS::NoValue"
)
