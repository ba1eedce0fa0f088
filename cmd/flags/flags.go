// SPDX-License-Identifier: Apache-2.0

package flags

import "github.com/spf13/viper"

func PostgresURL() string {
	return viper.GetString("PG_URL")
}

func ConfigPath() string {
	return viper.GetString("CONFIG")
}

func CheckpointDir() string {
	return viper.GetString("CHECKPOINT_DIR")
}

func ElasticURL() string {
	return viper.GetString("ELASTIC_URL")
}

func PollInterval() string {
	return viper.GetString("POLL_INTERVAL")
}
