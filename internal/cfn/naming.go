package cfn

import "regexp"

var nonAlphaNum = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// LogicalName strips every non-alphanumeric character so the value can be
// used as a CloudFormation logical resource name.
func LogicalName(name string) string {
	return nonAlphaNum.ReplaceAllString(name, "")
}
