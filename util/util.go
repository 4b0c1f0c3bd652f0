package util

import (
	_ "embed"
	"encoding/json"
	"strings"
)

//go:embed version.txt
var embeddedVersion string

const Name = "kibou"

// GetVersion returns the embedded build version.
func GetVersion() string {
	return strings.TrimSpace(embeddedVersion)
}

func GetNameAndVersion() string {
	return Name + " / " + GetVersion()
}

// PrettyPrint renders i as indented JSON, used for startup config logging.
func PrettyPrint(i interface{}) string {
	s, err := json.MarshalIndent(i, "", " ")
	if err != nil {
		return ""
	}
	return string(s)
}
