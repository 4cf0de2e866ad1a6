package config

import "os"

// Secrets are credentials read from the environment.
type Secrets struct {
	OARToken    string
	HCloudToken string
	S3AccessKey string
	S3SecretKey string
}

// LoadSecrets reads credentials from the environment.
//
// Environment Variables:
//   - RESERVOIR_OAR_TOKEN
//   - HCLOUD_TOKEN
//   - RESERVOIR_S3_ACCESS_KEY
//   - RESERVOIR_S3_SECRET_KEY
func LoadSecrets() Secrets {
	return Secrets{
		OARToken:    os.Getenv("RESERVOIR_OAR_TOKEN"),
		HCloudToken: os.Getenv("HCLOUD_TOKEN"),
		S3AccessKey: os.Getenv("RESERVOIR_S3_ACCESS_KEY"),
		S3SecretKey: os.Getenv("RESERVOIR_S3_SECRET_KEY"),
	}
}
