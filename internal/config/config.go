package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

type Config struct {
	Env          string        `mapstructure:"ENV"`
	Port         string        `mapstructure:"PORT" validate:"required,numeric"`
	LogLevel     string        `mapstructure:"LOG_LEVEL" validate:"oneof=trace debug info warn error fatal panic disabled"`
	StoreDriver  string        `mapstructure:"STORE_DRIVER" validate:"oneof=postgres sqlite memory"`
	DatabaseURL  string        `mapstructure:"DATABASE_URL" validate:"required_if=StoreDriver postgres"`
	SQLitePath   string        `mapstructure:"SQLITE_PATH" validate:"required_if=StoreDriver sqlite"`
	StoreTimeout time.Duration `mapstructure:"STORE_TIMEOUT" validate:"gte=0"`
	AdminKey     string        `mapstructure:"ADMIN_KEY"`
	CORSAllowed  string        `mapstructure:"CORS_ALLOWED_ORIGINS"`
	HTTPEnabled  bool          `mapstructure:"HTTP_ENABLED"`

	AutoClockoutSchedule     string `mapstructure:"AUTO_CLOCKOUT_SCHEDULE" validate:"required"`
	ActivityReminderSchedule string `mapstructure:"ACTIVITY_REMINDER_SCHEDULE" validate:"required"`
	GraceViolationSchedule   string `mapstructure:"GRACE_VIOLATION_SCHEDULE" validate:"required"`
	GeofenceSchedule         string `mapstructure:"GEOFENCE_SCHEDULE" validate:"required"`
	LicenseReminderSchedule  string `mapstructure:"LICENSE_REMINDER_SCHEDULE" validate:"required"`
}

// Schedules maps job names to their cadence.
func (c Config) Schedules() map[string]string {
	return map[string]string{
		"auto_clockout":     c.AutoClockoutSchedule,
		"activity_reminder": c.ActivityReminderSchedule,
		"grace_violation":   c.GraceViolationSchedule,
		"geofence_leave":    c.GeofenceSchedule,
		"license_reminder":  c.LicenseReminderSchedule,
	}
}

func Load() (Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	_ = v.ReadInConfig()
	return load(v)
}

func load(v *viper.Viper) (Config, error) {
	v.SetDefault("ENV", "dev")
	v.SetDefault("PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("STORE_DRIVER", DriverPostgres)
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("SQLITE_PATH", "compliance.db")
	v.SetDefault("STORE_TIMEOUT", "10s")
	v.SetDefault("ADMIN_KEY", "")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	v.SetDefault("HTTP_ENABLED", true)
	v.SetDefault("AUTO_CLOCKOUT_SCHEDULE", "@every 15m")
	v.SetDefault("ACTIVITY_REMINDER_SCHEDULE", "@every 15m")
	v.SetDefault("GRACE_VIOLATION_SCHEDULE", "@every 1m")
	v.SetDefault("GEOFENCE_SCHEDULE", "@every 10m")
	v.SetDefault("LICENSE_REMINDER_SCHEDULE", "0 7 * * *")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
