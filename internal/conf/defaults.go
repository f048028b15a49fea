// conf/defaults.go default values for settings
package conf

import (
	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "Towers-TT")
	viper.SetDefault("main.timeas24h", true)

	viper.SetDefault("segments.mainid", 0)
	viper.SetDefault("segments.climbids", []int64{})
	viper.SetDefault("segments.descentids", []int64{})

	viper.SetDefault("import.startdate", "2014-09-01")

	viper.SetDefault("resolve.allowforcedactivity", false)

	viper.SetDefault("strava.baseurl", "https://www.strava.com/api/v3")
	viper.SetDefault("strava.timeout", "30s")
	viper.SetDefault("strava.cachettl", "1h")
	viper.SetDefault("strava.ratelimitms", 100)
	viper.SetDefault("strava.perpage", 200)
	viper.SetDefault("strava.retry.maxattempts", 3)
	viper.SetDefault("strava.retry.backoffseconds", 1)

	viper.SetDefault("leaderboard.cacheenabled", true)
	viper.SetDefault("leaderboard.cachettl", "5m")

	viper.SetDefault("output.sqlite.enabled", true)
	viper.SetDefault("output.sqlite.path", "towers.db")
	viper.SetDefault("output.mysql.enabled", false)
	viper.SetDefault("output.mysql.username", "towers")
	viper.SetDefault("output.mysql.password", "")
	viper.SetDefault("output.mysql.database", "towers")
	viper.SetDefault("output.mysql.host", "localhost")
	viper.SetDefault("output.mysql.port", "3306")

	viper.SetDefault("webserver.enabled", true)
	viper.SetDefault("webserver.port", "8080")
}
