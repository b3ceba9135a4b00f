package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"northpole/internal/domain"
	"northpole/internal/scheduler"
)

type Config struct {
	Addr      string        `yaml:"addr"`
	DBPath    string        `yaml:"db"`
	LogLevel  string        `yaml:"log_level"`
	LogFormat string        `yaml:"log_format"` // console or json
	TimeUnit  time.Duration `yaml:"time_unit"`  // wall time of one simulated minute
	Builders  int           `yaml:"builders"`   // elves building at once, 0 = all
	RateLimit RateLimit     `yaml:"rate_limit"`
	Shifts    Shifts        `yaml:"shifts"`
	Seed      Seed          `yaml:"seed"`
}

type RateLimit struct {
	PerSecond float64 `yaml:"per_second"`
	Burst     int     `yaml:"burst"`
}

type Shifts struct {
	CheckInterval time.Duration    `yaml:"check_interval"`
	Plans         []scheduler.Plan `yaml:"plans"`
}

type Seed struct {
	Toys   []SeedToy   `yaml:"toys"`
	Elves  []SeedElf   `yaml:"elves"`
	Orders []SeedOrder `yaml:"orders"`
}

type SeedToy struct {
	Name      string `yaml:"name"`
	Category  string `yaml:"category"`
	BuildTime int    `yaml:"build_time"`
	Stock     int    `yaml:"stock"`
}

type SeedElf struct {
	Name     string   `yaml:"name"`
	Skills   []string `yaml:"skills"`
	Capacity int      `yaml:"capacity"`
}

type SeedOrder struct {
	Child    string `yaml:"child"`
	Toy      string `yaml:"toy"`
	Priority int    `yaml:"priority"`
	Address  string `yaml:"address"`
	Message  string `yaml:"message"`
}

func Default() Config {
	return Config{
		Addr:      ":8080",
		DBPath:    "workshop.db",
		LogLevel:  "info",
		LogFormat: "console",
		TimeUnit:  time.Second,
		RateLimit: RateLimit{PerSecond: 20, Burst: 40},
		Shifts:    Shifts{CheckInterval: 30 * time.Second},
		Seed:      ClassicSeed(),
	}
}

// ClassicSeed is the demo workshop.
func ClassicSeed() Seed {
	return Seed{
		Toys: []SeedToy{
			{Name: "Teddy Bear", Category: "Soft", BuildTime: 30, Stock: 12},
			{Name: "Robot", Category: "Electronics", BuildTime: 50, Stock: 6},
			{Name: "Lego Set", Category: "Blocks", BuildTime: 40, Stock: 10},
			{Name: "Sled", Category: "Outdoor", BuildTime: 90, Stock: 2},
		},
		Elves: []SeedElf{
			{Name: "Buddy", Skills: []string{"Soft", "Blocks"}, Capacity: 120},
			{Name: "Jingle", Skills: []string{"Electronics"}, Capacity: 100},
			{Name: "Sparkle", Skills: []string{"Outdoor", "Blocks"}, Capacity: 150},
		},
		Orders: []SeedOrder{
			{Child: "Ava", Toy: "Robot", Priority: 5, Address: "10 Snow Rd"},
			{Child: "Noah", Toy: "Lego Set", Priority: 3, Address: "5 North Star Ave"},
			{Child: "Mia", Toy: "Teddy Bear", Priority: 4, Address: "1 Holly Ln"},
		},
	}
}

// Load reads path over the defaults and applies environment overrides.
// An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("PORT"); v != "" {
		cfg.Addr = ":" + v
	}
	if v := os.Getenv("WORKSHOP_ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := os.Getenv("WORKSHOP_DB"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("WORKSHOP_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("WORKSHOP_TIME_UNIT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("WORKSHOP_TIME_UNIT: %w", err)
		}
		cfg.TimeUnit = d
	}
	if v := os.Getenv("WORKSHOP_BUILDERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("WORKSHOP_BUILDERS: %w", err)
		}
		cfg.Builders = n
	}
	return nil
}

func (c Config) Validate() error {
	var errs []error
	if c.TimeUnit < 0 {
		errs = append(errs, fmt.Errorf("time_unit must not be negative"))
	}
	if c.Builders < 0 {
		errs = append(errs, fmt.Errorf("builders must not be negative"))
	}
	if c.LogFormat != "console" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("log_format must be console or json, got %q", c.LogFormat))
	}
	if len(c.Shifts.Plans) > 0 && c.Shifts.CheckInterval <= 0 {
		errs = append(errs, fmt.Errorf("shifts.check_interval must be positive"))
	}
	for _, p := range c.Shifts.Plans {
		if err := scheduler.ValidateCronExpression(p.CronExpr); err != nil {
			errs = append(errs, fmt.Errorf("shift plan %q: %w", p.Name, err))
		}
	}
	return errors.Join(errs...)
}

// Entities builds validated domain values from the seed. Orders get fresh IDs.
func (s Seed) Entities() ([]domain.Toy, []*domain.Elf, []domain.Order, error) {
	var toys []domain.Toy
	for _, t := range s.Toys {
		toy, err := domain.NewToy(t.Name, t.Category, t.BuildTime, t.Stock)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("seed toy %q: %w", t.Name, err)
		}
		toys = append(toys, toy)
	}
	var elves []*domain.Elf
	for _, e := range s.Elves {
		elf, err := domain.NewElf(e.Name, e.Skills, e.Capacity)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("seed elf %q: %w", e.Name, err)
		}
		elves = append(elves, elf)
	}
	var orders []domain.Order
	for _, o := range s.Orders {
		order, err := domain.NewOrder(o.Child, o.Toy, o.Priority, o.Address, o.Message)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("seed order for %q: %w", o.Child, err)
		}
		orders = append(orders, order)
	}
	return toys, elves, orders, nil
}
