package infra

import (
	"errors"
	"fmt"
	"image"
	"os"
	"strconv"
	"strings"
	"time"

	"slot_watch/internal/domain"
	"slot_watch/internal/engine"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigPath is used when SLOTWATCH_CONFIG is unset.
	DefaultConfigPath = "configs/config.yaml"

	defaultCallTimeout = 10 * time.Second
	defaultListen      = "localhost:6060"
)

// Point is a screen coordinate written as [x, y].
type Point []int

// Pt converts p to an image.Point.
func (p Point) Pt() image.Point {
	if len(p) != 2 {
		return image.Point{}
	}
	return image.Pt(p[0], p[1])
}

// Region is a rectangle written as [[x0, y0], [x1, y1]].
type Region []Point

// Rect converts r to a canonical image.Rectangle.
func (r Region) Rect() image.Rectangle {
	if len(r) != 2 {
		return image.Rectangle{}
	}
	return image.Rectangle{Min: r[0].Pt(), Max: r[1].Pt()}.Canon()
}

func points(ps []Point) []image.Point {
	if len(ps) == 0 {
		return nil
	}
	out := make([]image.Point, len(ps))
	for i, p := range ps {
		out[i] = p.Pt()
	}
	return out
}

func optionalPoint(p Point) *image.Point {
	if len(p) == 0 {
		return nil
	}
	pt := p.Pt()
	return &pt
}

// SlotConfig describes one watched position.
type SlotConfig struct {
	Label  string           `yaml:"label"`
	Kind   string           `yaml:"kind"` // number (default) or text
	Button Point            `yaml:"button"`
	Region Region           `yaml:"region"` // overrides the category region
	Min    decimal.Decimal  `yaml:"min"`
	Max    *decimal.Decimal `yaml:"max"` // omitted = unbounded
	Rules  []struct {
		Needle   string `yaml:"needle"`
		MinCount int    `yaml:"min_count"`
	} `yaml:"rules"`
}

// CategoryConfig groups slots sharing navigation clicks.
type CategoryConfig struct {
	Name     string       `yaml:"name"`
	Select   Point        `yaml:"select"`
	Back     Point        `yaml:"back"`
	Filter   []Point      `yaml:"filter"`
	Close    Point        `yaml:"close"`
	NextPage Point        `yaml:"next_page"`
	Images   bool         `yaml:"images"`
	Region   Region       `yaml:"region"`
	Slots    []SlotConfig `yaml:"slots"`
}

// Config는 애플리케이션의 모든 설정을 담습니다.
// LoadConfig로 로드된 후에 환경 변수를 통해 민감 내용을 덮어씁니다.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Bridge struct {
		URL         string        `yaml:"url"`
		CallTimeout time.Duration `yaml:"call_timeout"`
	} `yaml:"bridge"`

	Engine struct {
		Pacing           time.Duration `yaml:"pacing"`
		StepWait         time.Duration `yaml:"step_wait"`
		SettleWait       time.Duration `yaml:"settle_wait"`
		TradeSettle      time.Duration `yaml:"trade_settle"`
		Commit           bool          `yaml:"commit"`
		NotifyOnChange   bool          `yaml:"notify_on_change"`
		SetupClicks      []Point       `yaml:"setup_clicks"`
		CommitClicks     []Point       `yaml:"commit_clicks"`
		BacktrackClicks  []Point       `yaml:"backtrack_clicks"`
		AnnounceSnapshot bool          `yaml:"announce_snapshot"`
		SnapshotCrop     Region        `yaml:"snapshot_crop"`
	} `yaml:"engine"`

	Summary struct {
		Interval          time.Duration `yaml:"interval"`
		AfterFirstPass    bool          `yaml:"after_first_pass"`
		ReportOnFirstPass bool          `yaml:"report_on_first_pass"`
	} `yaml:"summary"`

	Notify struct {
		Backend   string        `yaml:"backend"` // telegram, pushover or log
		Expire    time.Duration `yaml:"expire"`
		Images    bool          `yaml:"images"`
		QueueSize int           `yaml:"queue_size"`
		Rate      float64       `yaml:"rate"` // messages per second, 0 = unlimited
		Burst     int           `yaml:"burst"`
		LogDir    string        `yaml:"log_dir"`
		Telegram  struct {
			Token  string `yaml:"token"`
			ChatID int64  `yaml:"chat_id"`
		} `yaml:"telegram"`
		Pushover struct {
			Token string `yaml:"token"`
			User  string `yaml:"user"`
			URL   string `yaml:"url"`
		} `yaml:"pushover"`
	} `yaml:"notify"`

	Categories []CategoryConfig `yaml:"categories"`

	Storage struct {
		Path string `yaml:"path"` // empty disables the journal
	} `yaml:"storage"`

	Supervisor struct {
		Listen string `yaml:"listen"` // empty disables the HTTP surface
	} `yaml:"supervisor"`

	Logging struct {
		Level string `yaml:"level"`
		Dir   string `yaml:"dir"`
	} `yaml:"logging"`
}

// ConfigPath returns SLOTWATCH_CONFIG or DefaultConfigPath.
func ConfigPath() string {
	if p := os.Getenv("SLOTWATCH_CONFIG"); p != "" {
		return p
	}
	return DefaultConfigPath
}

// LoadConfig는 설정 파일을 읽고 파싱합니다.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseConfig(data)
}

// ParseConfig decodes YAML, applies env overrides and defaults, then validates.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// 보안 우선 - 환경 변수 오버라이드 지원
	if err := overrideWithEnv(&cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "slot-watch"
	}
	if c.Bridge.CallTimeout == 0 {
		c.Bridge.CallTimeout = defaultCallTimeout
	}
	if c.Engine.Pacing == 0 {
		c.Engine.Pacing = time.Second
	}
	if c.Notify.Backend == "" {
		c.Notify.Backend = "log"
	}
	if c.Logging.Dir == "" {
		c.Logging.Dir = "logs"
	}
	if c.Supervisor.Listen == "" {
		c.Supervisor.Listen = defaultListen
	}
}

func configErr(field string, format string, args ...any) error {
	return &domain.ConfigError{Field: field, Err: fmt.Errorf(format, args...)}
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	if !strings.HasPrefix(c.Bridge.URL, "ws://") && !strings.HasPrefix(c.Bridge.URL, "wss://") {
		return configErr("bridge.url", "invalid agent URL: %q", c.Bridge.URL)
	}
	for name, d := range map[string]time.Duration{
		"bridge.call_timeout": c.Bridge.CallTimeout,
		"engine.pacing":       c.Engine.Pacing,
		"engine.step_wait":    c.Engine.StepWait,
		"engine.settle_wait":  c.Engine.SettleWait,
		"engine.trade_settle": c.Engine.TradeSettle,
		"summary.interval":    c.Summary.Interval,
		"notify.expire":       c.Notify.Expire,
	} {
		if d < 0 {
			return configErr(name, "negative duration %s", d)
		}
	}
	if c.Engine.Commit && len(c.Engine.CommitClicks) == 0 {
		return configErr("engine.commit_clicks", "commit enabled without commit clicks")
	}
	for name, ps := range map[string][]Point{
		"engine.setup_clicks":     c.Engine.SetupClicks,
		"engine.commit_clicks":    c.Engine.CommitClicks,
		"engine.backtrack_clicks": c.Engine.BacktrackClicks,
	} {
		if err := checkPoints(name, ps...); err != nil {
			return err
		}
	}
	if err := checkRegion("engine.snapshot_crop", c.Engine.SnapshotCrop, true); err != nil {
		return err
	}

	switch c.Notify.Backend {
	case "telegram":
		if c.Notify.Telegram.Token == "" || c.Notify.Telegram.ChatID == 0 {
			return configErr("notify.telegram", "token and chat_id are required")
		}
	case "pushover":
		if c.Notify.Pushover.Token == "" || c.Notify.Pushover.User == "" {
			return configErr("notify.pushover", "token and user are required")
		}
	case "log":
	default:
		return configErr("notify.backend", "unknown backend %q", c.Notify.Backend)
	}
	if c.Notify.Rate < 0 || c.Notify.QueueSize < 0 || c.Notify.Burst < 0 {
		return configErr("notify", "rate, queue_size and burst must not be negative")
	}

	if len(c.Categories) == 0 {
		return &domain.ConfigError{Field: "categories", Err: domain.ErrEmptyTable}
	}
	for ci, cat := range c.Categories {
		field := fmt.Sprintf("categories[%d]", ci)
		if cat.Name == "" {
			return configErr(field+".name", "empty category name")
		}
		if err := checkPoints(field, cat.Select, cat.Back, cat.Close, cat.NextPage); err != nil {
			return err
		}
		if err := checkPoints(field+".filter", cat.Filter...); err != nil {
			return err
		}
		if err := checkRegion(field+".region", cat.Region, true); err != nil {
			return err
		}
		for si, s := range cat.Slots {
			sf := fmt.Sprintf("%s.slots[%d]", field, si)
			if s.Kind != "" && s.Kind != "number" && s.Kind != "text" {
				return configErr(sf+".kind", "unknown probe kind %q", s.Kind)
			}
			if err := checkPoints(sf+".button", s.Button); err != nil {
				return err
			}
			if len(s.Button) == 0 {
				return configErr(sf+".button", "missing button")
			}
			if err := checkRegion(sf+".region", s.Region, true); err != nil {
				return err
			}
		}
	}
	return nil
}

func checkPoints(field string, ps ...Point) error {
	for _, p := range ps {
		if len(p) != 0 && len(p) != 2 {
			return configErr(field, "point must be [x, y], got %v", []int(p))
		}
	}
	return nil
}

func checkRegion(field string, r Region, optional bool) error {
	if len(r) == 0 && optional {
		return nil
	}
	if len(r) != 2 {
		return configErr(field, "region must be [[x0, y0], [x1, y1]]")
	}
	return checkPoints(field, r...)
}

// SlotTable builds the slot table. Slot-level errors (labels, windows,
// regions) surface from domain validation.
func (c *Config) SlotTable() (*domain.SlotTable, error) {
	cats := make([]*domain.Category, 0, len(c.Categories))
	for _, cc := range c.Categories {
		cat := &domain.Category{
			Name:     cc.Name,
			Select:   optionalPoint(cc.Select),
			Back:     optionalPoint(cc.Back),
			Filter:   points(cc.Filter),
			Close:    optionalPoint(cc.Close),
			NextPage: optionalPoint(cc.NextPage),
			Images:   cc.Images,
		}
		for _, sc := range cc.Slots {
			region := sc.Region
			if len(region) == 0 {
				region = cc.Region
			}
			probe := domain.Probe{
				Kind:   domain.ProbeNumber,
				Button: sc.Button.Pt(),
				Region: region.Rect(),
			}
			if sc.Kind == "text" {
				probe.Kind = domain.ProbeText
				for _, r := range sc.Rules {
					probe.Rules = append(probe.Rules, domain.ContentRule{Needle: r.Needle, MinCount: r.MinCount})
				}
			}
			cat.Slots = append(cat.Slots, &domain.Slot{
				Label:  sc.Label,
				Window: domain.Window{Min: sc.Min, Max: sc.Max},
				Probe:  probe,
			})
		}
		cats = append(cats, cat)
	}
	return domain.NewSlotTable(cats)
}

// EngineConfig maps the engine section onto the controller configuration.
func (c *Config) EngineConfig() engine.Config {
	return engine.Config{
		Name:             c.App.Name,
		Pacing:           c.Engine.Pacing,
		StepWait:         c.Engine.StepWait,
		SettleWait:       c.Engine.SettleWait,
		TradeSettle:      c.Engine.TradeSettle,
		SetupClicks:      points(c.Engine.SetupClicks),
		CommitClicks:     points(c.Engine.CommitClicks),
		BacktrackClicks:  points(c.Engine.BacktrackClicks),
		AnnounceSnapshot: c.Engine.AnnounceSnapshot,
		SnapshotCrop:     c.Engine.SnapshotCrop.Rect(),
	}
}

// overrideWithEnv는 환경 변수가 존재할 경우 설정 값을 덮어씁니다.
func overrideWithEnv(cfg *Config) error {
	if token := os.Getenv("SLOTWATCH_TELEGRAM_TOKEN"); token != "" {
		cfg.Notify.Telegram.Token = token
	}
	if chat := os.Getenv("SLOTWATCH_TELEGRAM_CHAT"); chat != "" {
		id, err := strconv.ParseInt(chat, 10, 64)
		if err != nil {
			return &domain.ConfigError{Field: "SLOTWATCH_TELEGRAM_CHAT", Err: errors.New("chat id must be an integer")}
		}
		cfg.Notify.Telegram.ChatID = id
	}
	if token := os.Getenv("SLOTWATCH_PUSHOVER_TOKEN"); token != "" {
		cfg.Notify.Pushover.Token = token
	}
	if user := os.Getenv("SLOTWATCH_PUSHOVER_USER"); user != "" {
		cfg.Notify.Pushover.User = user
	}
	return nil
}
