package commands

import (
	"os"
	"path/filepath"
)

var DEFAULT_CONFIG = filepath.Join(workdir(), "evidence-s3.conf")
var DEFAULT_KEYSDIR = filepath.Join(workdir(), "keys")
var DEFAULT_CREDENTIALS = ""
var DEFAULT_PROFILE = ""
var DEFAULT_REGION = "us-east-1"

func workdir() string {
	programData, ok := os.LookupEnv("ProgramData")
	if !ok || programData == "" {
		return `C:\evidence-s3`
	}

	return filepath.Join(programData, "evidence-s3")
}
