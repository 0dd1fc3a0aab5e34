package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"puregym-bot/model"
)

type Config struct {
	TelegramToken     string           `mapstructure:"telegram_token"`
	LoggingLevel      string           `mapstructure:"logging_level"`
	DatabasePath      string           `mapstructure:"database_path"`
	Timezone          string           `mapstructure:"timezone"`
	CycleInterval     time.Duration    `mapstructure:"cycle_interval"`
	HTTPTimeout       time.Duration    `mapstructure:"http_timeout"`
	RequestsPerSecond float64          `mapstructure:"requests_per_second"`
	MaxDaysInAdvance  int              `mapstructure:"max_days_in_advance"`
	MaxBookings       int              `mapstructure:"max_bookings"`
	Users             []UserConfig     `mapstructure:"users"`
	ClassPreferences  ClassPreferences `mapstructure:"class_preferences"`

	location *time.Location
	prefs    map[int64]model.Preferences
}

type UserConfig struct {
	Name             string            `mapstructure:"name"`
	TelegramID       int64             `mapstructure:"telegram_id"`
	PuregymUsername  string            `mapstructure:"puregym_username"`
	PuregymPassword  string            `mapstructure:"puregym_password"`
	ClassPreferences *ClassPreferences `mapstructure:"class_preferences"` // Overrides the global preferences
}

type ClassPreferences struct {
	InterestedClasses  []int            `mapstructure:"interested_classes"`
	InterestedCenters  []int            `mapstructure:"interested_centers"`
	AvailableTimeSlots []TimeSlotConfig `mapstructure:"available_time_slots"`
}

type TimeSlotConfig struct {
	DayOfWeek string `mapstructure:"day_of_week"`
	StartTime string `mapstructure:"start_time"`
	EndTime   string `mapstructure:"end_time"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging_level", "info")
	v.SetDefault("database_path", "puregym_bot.db")
	v.SetDefault("timezone", "Europe/Copenhagen")
	v.SetDefault("cycle_interval", "60s")
	v.SetDefault("http_timeout", "10s")
	v.SetDefault("requests_per_second", 2)
	v.SetDefault("max_days_in_advance", 28)
	v.SetDefault("max_bookings", 18)
}

// Load reads the configuration from path, or from config.yaml in the
// working directory or ./config when path is empty. PUREGYM_* environment
// variables override top level keys.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("PUREGYM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("telegram_token"); err != nil {
		return nil, err
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if c.TelegramToken == "" {
		c.TelegramToken = os.Getenv("BOT_TOKEN")
	}
	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &c, nil
}

func (c *Config) validate() error {
	var errs []error
	if c.TelegramToken == "" {
		errs = append(errs, errors.New("telegram_token is required (or set BOT_TOKEN)"))
	}
	if _, err := logrus.ParseLevel(c.LoggingLevel); err != nil {
		errs = append(errs, fmt.Errorf("logging_level: %w", err))
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		errs = append(errs, fmt.Errorf("timezone: %w", err))
	}
	c.location = loc
	if c.CycleInterval <= 0 {
		errs = append(errs, errors.New("cycle_interval must be positive"))
	}
	if c.HTTPTimeout <= 0 {
		errs = append(errs, errors.New("http_timeout must be positive"))
	}
	if c.RequestsPerSecond <= 0 {
		errs = append(errs, errors.New("requests_per_second must be positive"))
	}
	if c.MaxDaysInAdvance <= 0 {
		errs = append(errs, errors.New("max_days_in_advance must be positive"))
	}
	if c.MaxBookings < 0 {
		errs = append(errs, errors.New("max_bookings must not be negative"))
	}

	global, err := c.ClassPreferences.parse()
	if err != nil {
		errs = append(errs, fmt.Errorf("class_preferences: %w", err))
	}

	if len(c.Users) == 0 {
		errs = append(errs, errors.New("at least one user is required"))
	}
	c.prefs = make(map[int64]model.Preferences, len(c.Users))
	for i, u := range c.Users {
		if u.TelegramID == 0 {
			errs = append(errs, fmt.Errorf("users[%d]: telegram_id is required", i))
			continue
		}
		if _, dup := c.prefs[u.TelegramID]; dup {
			errs = append(errs, fmt.Errorf("users[%d]: duplicate telegram_id %d", i, u.TelegramID))
			continue
		}
		if u.PuregymUsername == "" || u.PuregymPassword == "" {
			errs = append(errs, fmt.Errorf("users[%d] (%s): puregym_username and puregym_password are required", i, u.Name))
		}
		prefs := global
		if u.ClassPreferences != nil {
			p, err := u.ClassPreferences.parse()
			if err != nil {
				errs = append(errs, fmt.Errorf("users[%d] (%s) class_preferences: %w", i, u.Name, err))
			}
			prefs = p
		}
		c.prefs[u.TelegramID] = prefs
	}
	return errors.Join(errs...)
}

func (p ClassPreferences) parse() (model.Preferences, error) {
	out := model.Preferences{
		ClassIDs:  p.InterestedClasses,
		CenterIDs: p.InterestedCenters,
	}
	for i, s := range p.AvailableTimeSlots {
		slot, err := s.parse()
		if err != nil {
			return out, fmt.Errorf("available_time_slots[%d]: %w", i, err)
		}
		out.TimeSlots = append(out.TimeSlots, slot)
	}
	return out, nil
}

// parseDay accepts a weekday name or a number counted from Monday = 0.
func parseDay(s string) (time.Weekday, error) {
	if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
		if n < 0 || n > 6 {
			return 0, fmt.Errorf("day_of_week %d is not between 0 (Monday) and 6 (Sunday)", n)
		}
		return time.Weekday((n + 1) % 7), nil
	}
	return model.ParseWeekday(s)
}

func (s TimeSlotConfig) parse() (model.TimeSlot, error) {
	day, err := parseDay(s.DayOfWeek)
	if err != nil {
		return model.TimeSlot{}, err
	}
	start, err := model.ParseClockTime(s.StartTime)
	if err != nil {
		return model.TimeSlot{}, fmt.Errorf("start_time: %w", err)
	}
	end, err := model.ParseClockTime(s.EndTime)
	if err != nil {
		return model.TimeSlot{}, fmt.Errorf("end_time: %w", err)
	}
	if start > end {
		return model.TimeSlot{}, fmt.Errorf("start_time %s is after end_time %s", start, end)
	}
	return model.TimeSlot{DayOfWeek: day, Start: start, End: end}, nil
}

// Location is the time zone class times are interpreted in.
func (c *Config) Location() *time.Location {
	return c.location
}

// Preferences returns the effective class preferences of a configured user.
func (c *Config) Preferences(telegramID int64) model.Preferences {
	return c.prefs[telegramID]
}

// Whitelist returns the telegram ids allowed to talk to the bot.
func (c *Config) Whitelist() []int64 {
	ids := make([]int64, 0, len(c.Users))
	for _, u := range c.Users {
		ids = append(ids, u.TelegramID)
	}
	return ids
}

func (c *Config) LogLevel() logrus.Level {
	lvl, err := logrus.ParseLevel(c.LoggingLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}
