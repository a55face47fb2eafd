package commands

const (
	DEFAULT_CONFIG      = "/etc/evidence-s3/evidence-s3.conf"
	DEFAULT_KEYSDIR     = "/etc/evidence-s3/keys"
	DEFAULT_CREDENTIALS = ""
	DEFAULT_PROFILE     = ""
	DEFAULT_REGION      = "us-east-1"
)
