package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	AppName          string
	Env              string // DEV (local; default), TEST, QA, PROD
	Build            string
	Debug            bool
	TestMode         bool
	WorkDir          string
	RollbarToken     string
	SendgridApiKey   string
	DefaultFromEmail mail.Address

	Database DatabaseConfig

	Server struct {
		Host            string
		DebugHost       string
		ShutdownTimeout time.Duration
		RefreshInterval time.Duration // periodic refresh; 0 disables
		RefreshCooldown time.Duration // min delay between manual refreshes; 0 disables
	}

	Ranking struct {
		MinScore float64
		MaxScore float64
	}

	Report struct {
		Recipients []mail.Address
		Always     bool
	}
}

type DatabaseConfig struct {
	Engine        string
	Host          string
	Port          string
	Name          string
	User          string
	Password      string
	AdminUser     string
	AdminPassword string
	DisableTLS    bool
	Repos         string // sqlx | sqlboiler
}

// Address returns the "host:port" of the database server.
func (db DatabaseConfig) Address() string {
	return net.JoinHostPort(db.Host, db.Port)
}

func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("appName", "Cheo")
	v.SetDefault("build", "dev")
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("defaultFromEmail", "Cheo <noreply@localhost>")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("sendgridApiKey", "")

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "cheo")
	v.SetDefault("database.user", "cheo")
	v.SetDefault("database.password", "cheo")
	v.SetDefault("database.adminUser", "postgres")
	v.SetDefault("database.adminPassword", "postgres")
	v.SetDefault("database.disableTLS", true)
	v.SetDefault("database.repos", "sqlx")

	v.SetDefault("server.host", ":8000")
	v.SetDefault("server.debugHost", ":4000")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.refreshInterval", time.Duration(0))
	v.SetDefault("server.refreshCooldown", 10*time.Second)

	v.SetDefault("ranking.minScore", 0.0)
	v.SetDefault("ranking.maxScore", 100.0)

	v.SetDefault("report.recipients", "")
	v.SetDefault("report.always", false)

	env := strings.ToUpper(os.Getenv("ENV"))
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	wd := Getwd()
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	conf := &Config{
		AppName:        v.GetString("appName"),
		Env:            env,
		Build:          v.GetString("build"),
		Debug:          v.GetBool("debug"),
		TestMode:       v.GetBool("testMode"),
		WorkDir:        wd,
		RollbarToken:   v.GetString("rollbarToken"),
		SendgridApiKey: v.GetString("sendgridApiKey"),
	}
	if from, err := mail.ParseAddress(v.GetString("defaultFromEmail")); err == nil {
		conf.DefaultFromEmail = *from
	} else {
		log.Fatalf("config.defaultFromEmail: %v", err)
	}

	conf.Database.Engine = v.GetString("database.engine")
	conf.Database.Host = v.GetString("database.host")
	conf.Database.Port = v.GetString("database.port")
	conf.Database.Name = v.GetString("database.name")
	conf.Database.User = v.GetString("database.user")
	conf.Database.Password = v.GetString("database.password")
	conf.Database.AdminUser = v.GetString("database.adminUser")
	conf.Database.AdminPassword = v.GetString("database.adminPassword")
	conf.Database.DisableTLS = v.GetBool("database.disableTLS")
	conf.Database.Repos = CleanString(v.GetString("database.repos"), true /* lower */)

	conf.Server.Host = v.GetString("server.host")
	conf.Server.DebugHost = v.GetString("server.debugHost")
	conf.Server.ShutdownTimeout = v.GetDuration("server.shutdownTimeout")
	conf.Server.RefreshInterval = v.GetDuration("server.refreshInterval")
	conf.Server.RefreshCooldown = v.GetDuration("server.refreshCooldown")

	conf.Ranking.MinScore = v.GetFloat64("ranking.minScore")
	conf.Ranking.MaxScore = v.GetFloat64("ranking.maxScore")

	if rcpts := CleanString(v.GetString("report.recipients")); rcpts != "" {
		addrs, err := mail.ParseAddressList(rcpts)
		if err != nil {
			log.Fatalf("config.report.recipients: %v", err)
		}
		for _, a := range addrs {
			conf.Report.Recipients = append(conf.Report.Recipients, *a)
		}
	}
	conf.Report.Always = v.GetBool("report.always")

	return conf
}
